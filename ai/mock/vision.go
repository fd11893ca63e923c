package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/scriptorium/ai"
)

// MockVision is a test double for ai.VisionModel.
type MockVision struct {
	// ExtractTextFunc is called by ExtractText if set.
	// If nil, the image bytes are returned as the text with confidence 1.
	ExtractTextFunc func(ctx context.Context, image []byte, mimeType string, opts ai.VisionOptions) (*ai.VisionResult, error)

	mu        sync.Mutex
	callCount int
	options   []ai.VisionOptions
}

// NewMockVision creates a mock vision model with default behavior.
func NewMockVision() *MockVision {
	return &MockVision{}
}

// ExtractText records the call and returns the configured result.
func (m *MockVision) ExtractText(ctx context.Context, image []byte, mimeType string, opts ai.VisionOptions) (*ai.VisionResult, error) {
	m.mu.Lock()
	m.callCount++
	m.options = append(m.options, opts)
	m.mu.Unlock()

	if m.ExtractTextFunc != nil {
		return m.ExtractTextFunc(ctx, image, mimeType, opts)
	}
	return &ai.VisionResult{Text: strings.TrimSpace(string(image)), Confidence: 1}, nil
}

// CallCount returns the number of ExtractText calls.
func (m *MockVision) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Options returns the options passed to every call, in call order.
func (m *MockVision) Options() []ai.VisionOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.VisionOptions(nil), m.options...)
}

// Reset clears the call history and the injected behavior.
func (m *MockVision) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.options = nil
	m.ExtractTextFunc = nil
}
