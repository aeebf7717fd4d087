package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIEngine("sk-test", srv.URL+"/v1")
}

func TestOpenAIEngine_Chat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	e := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "The document covers traffic."}},
			},
		})
	})

	answer, err := e.Chat(context.Background(), "gpt-4o", []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "What is it about?"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "The document covers traffic." {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "gpt-4o" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "What is it about?" {
		t.Errorf("request = %+v", got)
	}
}

func TestOpenAIEngine_ChatWithImage(t *testing.T) {
	path := writePNG(t)
	var parts []map[string]any
	e := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content []map[string]any `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.Messages) == 1 {
			parts = body.Messages[0].Content
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "a red square"}}},
		})
	})

	if _, err := e.Chat(context.Background(), "gpt-4o", []Message{
		{Role: RoleUser, Content: "Describe this image.", Images: []string{path}},
	}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d content parts, want 2", len(parts))
	}
	if parts[0]["type"] != "text" || parts[1]["type"] != "image_url" {
		t.Errorf("part types = %v, %v", parts[0]["type"], parts[1]["type"])
	}
	img, _ := parts[1]["image_url"].(map[string]any)
	if url, _ := img["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q, want a png data URL", url)
	}
}

func TestOpenAIEngine_ChatError(t *testing.T) {
	e := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	})

	_, err := e.Chat(context.Background(), "gpt-4o", []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 401") || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("error = %q", err)
	}
}

func TestOpenAIEngine_Embed(t *testing.T) {
	var got struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	e := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float32{0.5, -0.25, 1}}},
		})
	})

	vec, err := e.Embed(context.Background(), "text-embedding-3-large", "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -0.25 || vec[2] != 1 {
		t.Errorf("vec = %v", vec)
	}
	if got.Model != "text-embedding-3-large" || len(got.Input) != 1 || got.Input[0] != "hello" {
		t.Errorf("request = %+v", got)
	}
}

func TestOpenAIEngine_EmbedEmptyData(t *testing.T) {
	e := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"list","data":[]}`))
	})
	if _, err := e.Embed(context.Background(), "text-embedding-3-large", "hello"); err == nil {
		t.Fatal("expected error for empty data")
	}
}

func TestOpenAIEngine_Models(t *testing.T) {
	e := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o","object":"model"},{"id":"text-embedding-3-large","object":"model"}]}`))
	})
	ctx := context.Background()

	if !e.IsRunning(ctx) {
		t.Error("IsRunning() = false, want true")
	}
	if !e.HasModel(ctx, "gpt-4o") {
		t.Error("HasModel(gpt-4o) = false, want true")
	}
	if e.HasModel(ctx, "gpt-3") {
		t.Error("HasModel(gpt-3) = true, want false")
	}
	if err := e.PullModel(ctx, "text-embedding-3-large", nil); err != nil {
		t.Errorf("PullModel of a served model: %v", err)
	}
	if err := e.PullModel(ctx, "llava", nil); err == nil {
		t.Error("PullModel of an unknown model succeeded")
	}
}

func TestOpenAIEngine_IsRunning_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if NewOpenAIEngine("sk-test", srv.URL+"/v1").IsRunning(context.Background()) {
		t.Error("IsRunning() = true, want false")
	}
}
