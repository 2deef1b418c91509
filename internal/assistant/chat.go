package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/findora/tool-radar/internal/llm"
	"github.com/findora/tool-radar/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDisabled is returned when no LLM is configured
	ErrDisabled = errors.New("assistant is disabled")
	// ErrSessionNotFound is returned for unknown or expired chat sessions
	ErrSessionNotFound = errors.New("chat session not found")
)

type chatEntry struct {
	mu       sync.Mutex
	session  llm.ChatSession
	lastUsed time.Time
}

// ChatManager owns the live chat sessions. Each conversation gets its own
// session which is torn down by Close or by Sweep once idle.
type ChatManager struct {
	chatter  llm.Chatter
	ttl      time.Duration
	now      func() time.Time
	mu       sync.Mutex
	sessions map[string]*chatEntry
}

// NewChatManager creates a chat manager. A nil chatter disables chat.
func NewChatManager(chatter llm.Chatter, ttl time.Duration) *ChatManager {
	return &ChatManager{
		chatter:  chatter,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*chatEntry),
	}
}

// Enabled reports whether chat is available
func (m *ChatManager) Enabled() bool {
	return m.chatter != nil
}

// Start opens a conversation grounded with the given catalog and returns its id
func (m *ChatManager) Start(ctx context.Context, tools []models.Tool) (string, error) {
	if !m.Enabled() {
		return "", ErrDisabled
	}

	session, err := m.chatter.NewChat(ctx, systemInstruction(tools))
	if err != nil {
		return "", fmt.Errorf("failed to start chat: %w", err)
	}

	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &chatEntry{session: session, lastUsed: m.now()}
	m.mu.Unlock()

	logrus.WithField("session_id", id).Debug("Started chat session")
	return id, nil
}

// Send posts a message to a conversation and returns the reply.
// Messages within one conversation are serialised.
func (m *ChatManager) Send(ctx context.Context, id, message string) (string, error) {
	if !m.Enabled() {
		return "", ErrDisabled
	}

	m.mu.Lock()
	entry, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastUsed = m.now()

	reply, err := entry.session.Send(ctx, message)
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Close tears down a conversation
func (m *ChatManager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	delete(m.sessions, id)
	return nil
}

// Sweep closes conversations idle for longer than the ttl
func (m *ChatManager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.sessions {
		if !entry.mu.TryLock() {
			// mid-message
			continue
		}
		idle := entry.lastUsed.Before(cutoff)
		entry.mu.Unlock()

		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of open conversations
func (m *ChatManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func systemInstruction(tools []models.Tool) string {
	var b strings.Builder
	b.WriteString("You are the Tool Radar assistant. Help users find AI tools that fit their task and budget. ")
	b.WriteString("Prefer tools with a real free tier, be explicit about signup, card and watermark requirements, ")
	b.WriteString("and only recommend tools from this catalog:\n")

	for _, t := range limitTools(tools, promptToolLimit) {
		fmt.Fprintf(&b, "- %s (%s, %s", t.Name, t.Category, t.Pricing.Model)
		if t.Pricing.FreeTier.Exists {
			fmt.Fprintf(&b, ", free tier: %s", t.Pricing.FreeTier.Limit)
		}
		if t.Pricing.PaidTier.StartPrice != "" && t.Pricing.PaidTier.StartPrice != "N/A" {
			fmt.Fprintf(&b, ", paid from %s", t.Pricing.PaidTier.StartPrice)
		}
		b.WriteString(")\n")
	}

	return b.String()
}
