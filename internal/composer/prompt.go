package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/pdfrag/internal/engine"
	"github.com/kalambet/pdfrag/internal/retrieval"
)

// SystemPrompt instructs the model to answer from the retrieved context.
const SystemPrompt = "You are a helpful assistant. Use the provided context to answer the query. If images are relevant, mention them but do not describe their content."

// ImageNotice is appended to an answer when image matches were retrieved.
const ImageNotice = "\n\nRelevant images found (see paths below)."

// ImageRef points at an extracted image file and the text found around it.
type ImageRef struct {
	ImagePath string `json:"image_path"`
	Context   string `json:"context"`
}

// Partition is the result of splitting matches by record type.
type Partition struct {
	// Context is the concatenated text of text matches, one per line, in
	// result order.
	Context string
	Images  []ImageRef
	// Invalid lists ids of matches without a usable type.
	Invalid []string
	// Dropped lists ids of text matches left out to stay within a token
	// budget. Always empty when the Composer has no budget.
	Dropped []string
}

// Composer builds the chat messages sent for answer synthesis.
type Composer struct {
	// MaxContextTokens caps the text context. Zero means every text match
	// contributes.
	MaxContextTokens int
}

// New creates a Composer. maxContextTokens <= 0 disables the budget.
func New(maxContextTokens int) *Composer {
	return &Composer{MaxContextTokens: max(maxContextTokens, 0)}
}

// Partition walks matches in the order the index returned them. Text matches
// are appended to the context, skipping entries that would overrun a
// configured budget; image matches with a path become image references.
func (c *Composer) Partition(matches []retrieval.Match) Partition {
	var (
		p         Partition
		sb        strings.Builder
		remaining = c.MaxContextTokens
	)
	for _, m := range matches {
		switch m.Metadata.Type {
		case retrieval.TypeText:
			entry := m.Metadata.Text + "\n"
			tokens := EstimateTokens(entry)
			if c.MaxContextTokens > 0 && tokens > remaining {
				p.Dropped = append(p.Dropped, m.ID)
				continue
			}
			sb.WriteString(entry)
			remaining -= tokens
		case retrieval.TypeImage:
			if m.Metadata.ImagePath != "" {
				p.Images = append(p.Images, ImageRef{ImagePath: m.Metadata.ImagePath, Context: m.Metadata.Context})
			}
		default:
			p.Invalid = append(p.Invalid, m.ID)
		}
	}
	p.Context = sb.String()
	return p
}

// Messages returns the system instruction followed by a user message carrying
// the context and the query.
func (c *Composer) Messages(context, query string) []engine.Message {
	return []engine.Message{
		{Role: engine.RoleSystem, Content: SystemPrompt},
		{Role: engine.RoleUser, Content: fmt.Sprintf("Context:\n%s\n\nQuery: %s", context, query)},
	}
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
