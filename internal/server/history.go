package server

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Nohyunjin/omni-secretary/internal/llm"
)

const (
	historySessions = 512
	historyTTL      = 2 * time.Hour

	// historyMaxTurns bounds the messages kept per session so long
	// conversations do not grow the model context without limit.
	historyMaxTurns = 40
)

// HistoryStore keeps per-session conversation history. Sessions expire after
// a period of inactivity; an expired or unknown session simply starts empty.
type HistoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, []llm.Message]
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		cache: expirable.NewLRU[string, []llm.Message](historySessions, nil, historyTTL),
	}
}

// Get returns a copy of the session's history.
func (h *HistoryStore) Get(sessionID string) []llm.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs, ok := h.cache.Get(sessionID)
	if !ok {
		return nil
	}
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

// AppendTurn records one user/assistant exchange, trimming the oldest
// messages past the per-session bound.
func (h *HistoryStore) AppendTurn(sessionID, userText, assistantText string) {
	if sessionID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	msgs, _ := h.cache.Get(sessionID)
	msgs = append(msgs,
		llm.Message{Role: llm.RoleUser, Content: userText},
		llm.Message{Role: llm.RoleAssistant, Content: assistantText},
	)
	if len(msgs) > historyMaxTurns {
		msgs = msgs[len(msgs)-historyMaxTurns:]
	}
	h.cache.Add(sessionID, msgs)
}

// Clear drops one session's history.
func (h *HistoryStore) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache.Remove(sessionID)
}
