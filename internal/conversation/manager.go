// Package conversation keeps per-conversation message history in memory.
// The stored record is never trimmed; only the window handed to the model
// is bounded.
package conversation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Citations are only present on
// assistant messages that were grounded in retrieved passages.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Citations []Citation
}

// Citation mirrors the answer-level citation shape so stored history can
// be replayed with its provenance intact.
type Citation struct {
	Source  string
	Excerpt string
	Score   float64
}

// Conversation owns an ordered message list plus bookkeeping.
type Conversation struct {
	ID            string
	UserID        string
	Messages      []Message
	CreatedAt     time.Time
	UpdatedAt     time.Time
	TokenEstimate int
}

// Manager stores conversations keyed by id. Safe for concurrent use.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	now           func() time.Time
}

// NewManager creates an empty in-memory conversation store.
func NewManager() *Manager {
	return &Manager{
		conversations: make(map[string]*Conversation),
		now:           time.Now,
	}
}

// Append adds a message to a conversation, creating the conversation if
// the id is unknown or empty. Returns the conversation id.
func (m *Manager) Append(conversationID, userID string, msg Message) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	conv, ok := m.conversations[conversationID]
	if !ok {
		if conversationID == "" {
			conversationID = uuid.NewString()
		}
		conv = &Conversation{
			ID:        conversationID,
			UserID:    userID,
			CreatedAt: now,
		}
		m.conversations[conversationID] = conv
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now
	// Rough estimate, four characters per token.
	conv.TokenEstimate += len(msg.Content)/4 + 1

	return conv.ID
}

// Window returns the most recent maxHistory messages, oldest first. A
// non-positive maxHistory returns the full history. The returned slice
// is a copy.
func (m *Manager) Window(conversationID string, maxHistory int) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[conversationID]
	if !ok || len(conv.Messages) == 0 {
		return nil
	}

	messages := conv.Messages
	if maxHistory > 0 && len(messages) > maxHistory {
		messages = messages[len(messages)-maxHistory:]
	}

	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}

// Get returns a copy of the full conversation record.
func (m *Manager) Get(conversationID string) (*Conversation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, false
	}

	cp := *conv
	cp.Messages = make([]Message, len(conv.Messages))
	copy(cp.Messages, conv.Messages)
	return &cp, true
}

// ListByUser returns conversation ids owned by a user, most recently
// updated first.
func (m *Manager) ListByUser(userID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		id      string
		updated time.Time
	}
	var entries []entry
	for id, conv := range m.conversations {
		if conv.UserID == userID {
			entries = append(entries, entry{id, conv.UpdatedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].updated.After(entries[j].updated) })

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

// Clear empties a conversation's messages but keeps the record.
func (m *Manager) Clear(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv, ok := m.conversations[conversationID]; ok {
		conv.Messages = nil
		conv.TokenEstimate = 0
		conv.UpdatedAt = m.now()
	}
}

// Delete removes a conversation entirely.
func (m *Manager) Delete(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, conversationID)
}
