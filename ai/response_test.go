package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/scriptorium/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisionPrompt(t *testing.T) {
	prompt := VisionPrompt(VisionOptions{
		Enhancement: core.EnhancementAggressive,
		DPI:         200,
		DomainHint:  core.DefaultDomainHint,
	})
	assert.Contains(t, prompt, core.DefaultDomainHint)
	assert.Contains(t, prompt, "200 DPI")
	assert.Contains(t, prompt, "heavily degraded")
	assert.Contains(t, prompt, `"confidence"`)

	bare := VisionPrompt(VisionOptions{})
	assert.NotContains(t, bare, "DPI")
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
	}
	for in, want := range tests {
		assert.Equal(t, want, StripCodeFence(in), "input %q", in)
	}
}

func TestParseVisionResponse(t *testing.T) {
	res, err := ParseVisionResponse("```json\n{\"text\": \" page1 text \", \"confidence\": 0.95}\n```")
	require.NoError(t, err)
	assert.Equal(t, "page1 text", res.Text)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)

	blank, err := ParseVisionResponse(`{"text": "", "confidence": 1}`)
	require.NoError(t, err)
	assert.Empty(t, blank.Text)

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty payload", "  ", core.ErrPermanent},
		{"not json", "The page says hello", core.ErrTransient},
		{"missing confidence", `{"text": "x"}`, core.ErrTransient},
		{"confidence out of range", `{"text": "x", "confidence": 3}`, core.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVisionResponse(tt.raw)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, core.ErrInvalidResponse)
		})
	}
}

type stubProvider struct {
	closed bool
}

func (s *stubProvider) Embedder() Embedder               { return nil }
func (s *stubProvider) Vision() VisionModel              { return nil }
func (s *stubProvider) GraphExtractor() GraphExtractor   { return nil }
func (s *stubProvider) AnswerGenerator() AnswerGenerator { return nil }
func (s *stubProvider) Close() error                     { s.closed = true; return nil }

type closingVision struct {
	closed bool
}

func (c *closingVision) ExtractText(context.Context, []byte, string, VisionOptions) (*VisionResult, error) {
	return &VisionResult{Text: "vertex"}, nil
}

func (c *closingVision) Close() error {
	c.closed = true
	return errors.New("close failed")
}

func TestWithVision(t *testing.T) {
	base := &stubProvider{}
	assert.Same(t, base, WithVision(base, nil))

	vision := &closingVision{}
	p := WithVision(base, vision)
	assert.Same(t, vision, p.Vision())

	err := p.Close()
	assert.Error(t, err)
	assert.True(t, base.closed)
	assert.True(t, vision.closed)
}
