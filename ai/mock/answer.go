package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/scriptorium/ai"
)

// MockAnswerGenerator is a test double for ai.AnswerGenerator.
type MockAnswerGenerator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	// If nil, the answer echoes the question and cites every passage.
	GenerateAnswerFunc func(ctx context.Context, question string, passages []ai.Passage) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockAnswerGenerator creates a mock answer generator with default behavior.
func NewMockAnswerGenerator() *MockAnswerGenerator {
	return &MockAnswerGenerator{}
}

// GenerateAnswer records the call and returns the configured answer.
func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, question string, passages []ai.Passage) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, question, passages)
	}
	answer := "Answer to: " + question
	for i := range passages {
		answer += fmt.Sprintf(" [%d]", i+1)
	}
	return answer, nil
}

// CallCount returns the number of GenerateAnswer calls.
func (m *MockAnswerGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and the injected behavior.
func (m *MockAnswerGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.GenerateAnswerFunc = nil
}
