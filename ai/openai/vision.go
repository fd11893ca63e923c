package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/tmc/langchaingo/llms"
)

const visionSystemPrompt = "You are a meticulous transcriber of scanned historical medical literature. You output only JSON."

// Vision implements ai.VisionModel with a multimodal chat model.
type Vision struct {
	client llms.Model
	logger *slog.Logger
}

func newVision(config *ai.Config) (*Vision, error) {
	client, err := chatClient(config, config.VisionHost, config.VisionModel)
	if err != nil {
		return nil, err
	}
	return &Vision{
		client: client,
		logger: slog.Default().With("component", "openai-vision"),
	}, nil
}

// NewVision creates a page transcription service.
//
// Returns ai.VisionModel interface to enforce abstraction.
func NewVision(config *ai.Config) (ai.VisionModel, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return newVision(config)
}

// ExtractText sends the page image inline and decodes the JSON transcription.
func (v *Vision) ExtractText(ctx context.Context, image []byte, mimeType string, opts ai.VisionOptions) (*ai.VisionResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: %w: empty page image", core.ErrPermanent, core.ErrInvalidDocument)
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(visionSystemPrompt)},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(mimeType, image),
				llms.TextPart(ai.VisionPrompt(opts)),
			},
		},
	}

	response, err := v.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		v.logger.Error("failed to transcribe page", "bytes", len(image), "err", err)
		return nil, core.Classify(err)
	}
	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("%w: %w: no choices returned from model", core.ErrPermanent, core.ErrInvalidResponse)
	}

	result, err := ai.ParseVisionResponse(repairJSON(ai.StripCodeFence(response.Choices[0].Content)))
	if err != nil {
		v.logger.Warn("error parsing vision response", "response", response.Choices[0].Content, "err", err)
		return nil, err
	}

	v.logger.Debug("transcribed page", "chars", len(result.Text), "confidence", result.Confidence)
	return result, nil
}
