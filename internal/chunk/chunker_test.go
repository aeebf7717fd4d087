package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t  \n"} {
		if got := Split(in, 10); len(got) != 0 {
			t.Errorf("Split(%q) = %q, want no chunks", in, got)
		}
	}
}

func TestSplit_SingleChunkUnderBudget(t *testing.T) {
	got := Split("the quick brown fox", 1000)
	if len(got) != 1 {
		t.Fatalf("got %d chunks, want 1", len(got))
	}
	if got[0] != "the quick brown fox" {
		t.Errorf("chunk = %q", got[0])
	}
}

func TestSplit_Boundaries(t *testing.T) {
	// "aaaa" costs 5, so two words fit in a budget of 10 and the third spills.
	got := Split("aaaa bbbb cccc dddd e", 10)
	want := []string{"aaaa bbbb", "cccc dddd", "e"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_NormalizesWhitespace(t *testing.T) {
	got := Split("  alpha\n\nbeta\tgamma  ", 1000)
	if len(got) != 1 || got[0] != "alpha beta gamma" {
		t.Errorf("got %q, want [\"alpha beta gamma\"]", got)
	}
}

func TestSplit_OverlongWord(t *testing.T) {
	long := strings.Repeat("x", 25)
	got := Split("a "+long+" b", 10)
	want := []string{"a", long, "b"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_OverlongFirstWordHasNoEmptyChunk(t *testing.T) {
	long := strings.Repeat("y", 30)
	got := Split(long+" tail", 10)
	if len(got) != 2 || got[0] != long || got[1] != "tail" {
		t.Errorf("got %q", got)
	}
}

func TestSplit_DefaultSize(t *testing.T) {
	words := make([]string, 400)
	for i := range words {
		words[i] = "word"
	}
	got := Split(strings.Join(words, " "), 0)
	// 400 words at 5 characters each cost 2000, so the default budget gives two chunks.
	if len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
}

func TestSplit_Properties(t *testing.T) {
	text := `Retrieval augmented generation pairs a language model with a similarity index.
	The index   stores embeddings of document chunks, and the model answers from whatever
	the index returns. Supercalifragilisticexpialidocious words still survive intact.`

	for _, budget := range []int{1, 5, 12, 40, 80, 1000} {
		chunks := Split(text, budget)

		if got, want := strings.Join(chunks, " "), strings.Join(strings.Fields(text), " "); got != want {
			t.Errorf("budget %d: rejoined chunks differ from word sequence\n got: %q\nwant: %q", budget, got, want)
		}

		for _, c := range chunks {
			if c == "" {
				t.Errorf("budget %d: empty chunk", budget)
			}
			if utf8.RuneCountInString(c) > budget && len(strings.Fields(c)) != 1 {
				t.Errorf("budget %d: multi-word chunk %q exceeds budget", budget, c)
			}
		}
	}
}

func TestSplit_CountsRunes(t *testing.T) {
	// Each word is four runes but eight bytes; a budget of 10 must fit two of them.
	got := Split("éééé éééé éééé", 10)
	if len(got) != 2 {
		t.Fatalf("got %q, want 2 chunks", got)
	}
}
