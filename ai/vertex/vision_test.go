package vertex

import (
	"context"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVision_RequiresLocation(t *testing.T) {
	_, err := NewVision(context.Background(), "", "us-central1", "gemini-2.5-flash")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewVision(context.Background(), "proj", "us-central1", "")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestResponseText(t *testing.T) {
	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text(`{"text": "page2 text", `),
				genai.Blob{MIMEType: "image/png"},
				genai.Text(`"confidence": 0.4}`),
			}},
		}},
	}
	raw := responseText(resp)
	res, err := ai.ParseVisionResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "page2 text", res.Text)
	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
}

func TestExtractText_EmptyImage(t *testing.T) {
	v := &Vision{}
	_, err := v.ExtractText(context.Background(), nil, "image/png", ai.VisionOptions{})
	assert.ErrorIs(t, err, core.ErrPermanent)
	assert.NoError(t, v.Close())
}
