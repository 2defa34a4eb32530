// Package ollama wraps the Ollama chat API for the streaming provider.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"

	"skycast/model"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.1:latest"

	pingTimeout = 5 * time.Second
)

// Client talks to one Ollama server. The active model can be changed while
// the client is shared.
type Client struct {
	api     *api.Client
	baseURL string

	mu    sync.RWMutex
	model string
}

// ChatRequest is one streamed chat call. MaxTokens of zero leaves
// num_predict at the server default.
type ChatRequest struct {
	Messages  []api.Message
	Tools     []api.Tool
	MaxTokens int
}

func NewClient(baseURL, modelName string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q: scheme and host required", baseURL)
	}

	return &Client{
		api:     api.NewClient(u, http.DefaultClient),
		baseURL: baseURL,
		model:   modelName,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat streams req with the active model. fn sees every response in order;
// an error from fn stops the stream and is returned.
func (c *Client) Chat(ctx context.Context, req ChatRequest, fn func(api.ChatResponse) error) error {
	stream := true
	chat := &api.ChatRequest{
		Model:    c.GetModel(),
		Messages: req.Messages,
		Tools:    req.Tools,
		Stream:   &stream,
	}
	if req.MaxTokens > 0 {
		chat.Options = map[string]any{"num_predict": req.MaxTokens}
	}
	return c.api.Chat(ctx, chat, fn)
}

func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.api.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, model.ModelInfo{Name: m.Name, Size: m.Size, Provider: "ollama"})
	}
	return models, nil
}

func (c *Client) SetModel(modelName string) {
	c.mu.Lock()
	c.model = modelName
	c.mu.Unlock()
}

func (c *Client) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	_, err := c.api.List(ctx)
	return err
}

// toolFamilies is checked in order, so a more specific prefix must come
// before a shorter one it extends (llama3.1 before llama3).
var toolFamilies = []struct {
	prefix string
	tools  bool
}{
	{"llama3.3", true},
	{"llama3.2", true},
	{"llama3.1", true},
	{"llama3-gradient", false},
	{"llama3", false},
	{"qwen", true},
	{"mistral", true},
	{"command-r", true},
	{"nemotron", true},
	{"granite3", true},
	{"codellama", false},
	{"deepseek", false},
	{"phi", false},
	{"gemma", false},
}

func (c *Client) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(c.GetModel())
}

// ModelSupportsToolCalling reports whether a model family is known to accept
// tool definitions. Unknown families report false.
func ModelSupportsToolCalling(modelName string) bool {
	name := strings.ToLower(modelName)
	for _, f := range toolFamilies {
		if strings.HasPrefix(name, f.prefix) {
			return f.tools
		}
	}
	return false
}
