package sms

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"contestlet-backend/internal/common/logger"
)

// SentMessage is one message recorded by the mock gateway.
type SentMessage struct {
	Phone      string
	Body       string
	ProviderID string
}

// MockGateway records messages in memory. Used in development and tests.
type MockGateway struct {
	mu       sync.Mutex
	messages []SentMessage

	// FailWith, when set, is returned from Send instead of recording.
	FailWith error
}

func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Send(ctx context.Context, phone, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailWith != nil {
		return "", g.FailWith
	}

	id := "mock-" + uuid.New().String()
	g.messages = append(g.messages, SentMessage{Phone: phone, Body: body, ProviderID: id})

	logger.Debug().Str("phone", phone).Str("provider_id", id).Msg("Mock SMS recorded")
	return id, nil
}

// Messages returns a copy of everything sent so far.
func (g *MockGateway) Messages() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SentMessage, len(g.messages))
	copy(out, g.messages)
	return out
}

// Last returns the most recent message, or false when none were sent.
func (g *MockGateway) Last() (SentMessage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.messages) == 0 {
		return SentMessage{}, false
	}
	return g.messages[len(g.messages)-1], true
}
