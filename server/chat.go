package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"skycast/config"
	"skycast/model"
)

const (
	ConversationHeader = "X-Conversation-ID"

	// TurnErrorTrailer is set when a turn fails after part of the reply was
	// already streamed. A complete reply carries no value.
	TurnErrorTrailer = "X-Turn-Error"

	DefaultMaxConversations = 1024
	DefaultConversationIdle = time.Hour
)

// OrchestratorFactory builds the orchestrator for a new conversation.
type OrchestratorFactory func() (*model.Orchestrator, error)

// ChatHandler serves POST /chat. Each X-Conversation-ID keeps its own
// conversation; a request without the header starts a new one and the id is
// returned in the response header.
//
// Conversations idle for longer than IdleTimeout are dropped, and at most
// MaxConversations are kept; the least recently used idle one makes room.
type ChatHandler struct {
	factory OrchestratorFactory

	MaxConversations int
	IdleTimeout      time.Duration

	now           func() time.Time
	mu            sync.Mutex
	conversations map[string]*conversation
}

type conversation struct {
	orch     *model.Orchestrator
	lastUsed time.Time
}

func NewChatHandler(factory OrchestratorFactory) *ChatHandler {
	return &ChatHandler{
		factory:          factory,
		MaxConversations: DefaultMaxConversations,
		IdleTimeout:      DefaultConversationIdle,
		now:              time.Now,
		conversations:    make(map[string]*conversation),
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) orchestrator(id string) (string, *model.Orchestrator, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.evictIdle(now)

	if id != "" {
		if c, ok := h.conversations[id]; ok {
			c.lastUsed = now
			return id, c.orch, nil
		}
	} else {
		id = uuid.NewString()
	}

	if h.MaxConversations > 0 && len(h.conversations) >= h.MaxConversations && !h.evictOldest() {
		return "", nil, errTooManyConversations
	}

	o, err := h.factory()
	if err != nil {
		return "", nil, err
	}
	h.conversations[id] = &conversation{orch: o, lastUsed: now}
	return id, o, nil
}

var errTooManyConversations = errors.New("too many active conversations")

// busy reports whether a turn is running on o.
func busy(o *model.Orchestrator) bool {
	switch o.State() {
	case model.Streaming, model.DispatchingTools:
		return true
	}
	return false
}

func (h *ChatHandler) evictIdle(now time.Time) {
	if h.IdleTimeout <= 0 {
		return
	}
	for id, c := range h.conversations {
		if now.Sub(c.lastUsed) > h.IdleTimeout && !busy(c.orch) {
			delete(h.conversations, id)
			if config.DebugLog != nil {
				config.DebugLog.Printf("[SERVER] chat %s: evicted after %s idle", id, now.Sub(c.lastUsed).Round(time.Second))
			}
		}
	}
}

// evictOldest drops the least recently used conversation without a running
// turn. It reports whether one was dropped.
func (h *ChatHandler) evictOldest() bool {
	oldest := ""
	var at time.Time
	for id, c := range h.conversations {
		if busy(c.orch) {
			continue
		}
		if oldest == "" || c.lastUsed.Before(at) {
			oldest, at = id, c.lastUsed
		}
	}
	if oldest == "" {
		return false
	}
	delete(h.conversations, oldest)
	return true
}

// Len is the number of conversations held.
func (h *ChatHandler) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conversations)
}

// Forget drops a conversation. It reports whether the id was known.
func (h *ChatHandler) Forget(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conversations[id]
	delete(h.conversations, id)
	return ok
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Please provide your message.", http.StatusBadRequest)
		return
	}

	id, orch, err := h.orchestrator(r.Header.Get(ConversationHeader))
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[SERVER] chat: building orchestrator: %v", err)
		}
		status := http.StatusServiceUnavailable
		if errors.Is(err, errTooManyConversations) {
			status = http.StatusTooManyRequests
		}
		http.Error(w, "chat unavailable", status)
		return
	}

	w.Header().Set(ConversationHeader, id)
	rc := http.NewResponseController(w)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Trailer", TurnErrorTrailer)
		w.WriteHeader(http.StatusOK)
	}

	_, err = orch.RunTurn(r.Context(), req.Message, func(delta string) {
		start()
		w.Write([]byte(delta))
		rc.Flush()
	})
	if err == nil {
		start()
		return
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[SERVER] chat %s: %v", id, err)
	}
	switch {
	case started:
		w.Header().Set(TurnErrorTrailer, trailerValue(err))
	case errors.Is(err, model.ErrTurnInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case r.Context().Err() != nil:
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

// trailerValue flattens err onto one header line.
func trailerValue(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}
