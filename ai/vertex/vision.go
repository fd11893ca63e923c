// Package vertex transcribes page images with Gemini models on Vertex AI.
package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
)

const systemPrompt = "You are a meticulous transcriber of scanned historical medical literature. You output only JSON."

// Vision implements ai.VisionModel on a Gemini model.
type Vision struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

var _ ai.VisionModel = (*Vision)(nil)

// NewVision connects to Vertex AI. Credentials come from the environment.
func NewVision(ctx context.Context, projectID, region, model string) (*Vision, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("%w: vertex project and region cannot be empty", core.ErrInvalidConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: vertex model cannot be empty", core.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	gm := client.GenerativeModel(model)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	gm.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	// Clinical descriptions of injuries trip the default filters.
	gm.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &Vision{
		client: client,
		model:  gm,
		logger: slog.Default().With("component", "vertex-vision", "model", model),
	}, nil
}

// ExtractText sends the page inline and decodes the JSON transcription.
func (v *Vision) ExtractText(ctx context.Context, image []byte, mimeType string, opts ai.VisionOptions) (*ai.VisionResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: %w: empty page image", core.ErrPermanent, core.ErrInvalidDocument)
	}

	resp, err := v.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(ai.VisionPrompt(opts)),
	)
	if err != nil {
		v.logger.Error("call to Vertex AI failed", "bytes", len(image), "err", err)
		return nil, core.Classify(err)
	}

	result, err := ai.ParseVisionResponse(responseText(resp))
	if err != nil {
		v.logger.Warn("error parsing vision response", "err", err)
		return nil, err
	}
	v.logger.Debug("transcribed page", "chars", len(result.Text), "confidence", result.Confidence)
	return result, nil
}

// Close releases the Vertex AI client.
func (v *Vision) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
