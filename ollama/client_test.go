package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"
)

func TestModelSupportsToolCalling(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.1:latest", true},
		{"Llama3.2:3b", true},
		{"llama3:8b", false},
		{"llama3-gradient:8b", false},
		{"qwen2.5-coder:7b", true},
		{"codellama:13b", false},
		{"some-new-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ModelSupportsToolCalling(tt.model); got != tt.want {
				t.Errorf("ModelSupportsToolCalling(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.BaseURL() != DefaultBaseURL || c.GetModel() != DefaultModel {
		t.Errorf("defaults = %s %s", c.BaseURL(), c.GetModel())
	}

	if _, err := NewClient("localhost", "m"); err == nil {
		t.Error("expected an error for a URL without scheme")
	}

	c.SetModel("qwen3")
	if !c.SupportsToolCalling() {
		t.Error("qwen3 should support tools")
	}
}

func TestChatStreamsResponses(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"m","message":{"role":"assistant","content":"Sunny"},"done":false}`)
		fmt.Fprintln(w, `{"model":"m","message":{"role":"assistant","content":" in Oslo"},"done":false}`)
		fmt.Fprintln(w, `{"model":"m","message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "m")
	if err != nil {
		t.Fatal(err)
	}

	var text strings.Builder
	done := false
	err = c.Chat(context.Background(), ChatRequest{
		Messages:  []api.Message{{Role: "user", Content: "Weather in Oslo?"}},
		MaxTokens: 100,
	}, func(resp api.ChatResponse) error {
		text.WriteString(resp.Message.Content)
		done = resp.Done
		return nil
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if text.String() != "Sunny in Oslo" || !done {
		t.Errorf("text = %q done = %v", text.String(), done)
	}
	if got.Model != "m" || got.Options["num_predict"] != float64(100) {
		t.Errorf("request model = %q options = %v", got.Model, got.Options)
	}
}
