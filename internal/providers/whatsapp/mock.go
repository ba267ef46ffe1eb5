package whatsapp

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SentMessage is a survey the mock provider accepted.
type SentMessage struct {
	Request           SendSurveyRequest
	ExternalMessageID string
	SentAt            time.Time
}

// MockProvider accepts every send and records it in memory. Recipients listed
// in FailNumbers are rejected with ErrSendFailed.
type MockProvider struct {
	mu          sync.Mutex
	sent        []SentMessage
	failNumbers map[string]struct{}
	entropy     *ulid.MonotonicEntropy
}

func NewMockProvider(failNumbers ...string) *MockProvider {
	fail := make(map[string]struct{}, len(failNumbers))
	for _, number := range failNumbers {
		fail[strings.TrimSpace(number)] = struct{}{}
	}
	return &MockProvider{
		failNumbers: fail,
		entropy:     ulid.Monotonic(rand.Reader, 0),
	}
}

func (p *MockProvider) SendSurvey(ctx context.Context, req SendSurveyRequest) (SendSurveyResult, error) {
	if err := ctx.Err(); err != nil {
		return SendSurveyResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, fail := p.failNumbers[strings.TrimSpace(req.PhoneNumber)]; fail {
		return SendSurveyResult{}, ErrSendFailed
	}

	now := time.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), p.entropy)
	if err != nil {
		return SendSurveyResult{}, err
	}
	messageID := "wamid." + id.String()
	p.sent = append(p.sent, SentMessage{Request: req, ExternalMessageID: messageID, SentAt: now})
	return SendSurveyResult{ExternalMessageID: messageID}, nil
}

// Sent returns a copy of every accepted message.
func (p *MockProvider) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.sent))
	copy(out, p.sent)
	return out
}
