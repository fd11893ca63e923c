package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/scriptorium/core"
)

// enhancementInstructions tells the model how much restoration to attempt.
var enhancementInstructions = map[core.EnhancementLevel]string{
	core.EnhancementLight:      "The scan is clean. Transcribe it as printed.",
	core.EnhancementMedium:     "Expect faded ink, bleed-through and mild noise. Reconstruct characters only where the stroke shapes make them unambiguous.",
	core.EnhancementAggressive: "The scan is heavily degraded. Use contrast, context and typical typesetting of the period to recover damaged words, and lower your confidence accordingly.",
}

// VisionPrompt builds the instruction sent with a page image.
func VisionPrompt(opts VisionOptions) string {
	var b strings.Builder
	b.WriteString("Transcribe all text on this scanned page in reading order.\n")
	if opts.DomainHint != "" {
		fmt.Fprintf(&b, "The page comes from %s; preserve period spelling, Latin terms and anatomical names exactly.\n", opts.DomainHint)
	}
	if opts.DPI > 0 {
		fmt.Fprintf(&b, "The page was scanned at %d DPI.\n", opts.DPI)
	}
	if instr, ok := enhancementInstructions[opts.Enhancement]; ok {
		b.WriteString(instr)
		b.WriteString("\n")
	}
	b.WriteString(`Ignore running headers, page numbers and library stamps.
Return ONLY a valid JSON object:
{"text": "the transcribed text", "confidence": 0.0}
where confidence is your estimate between 0 and 1 that the transcription is correct.
If the page has no text, return an empty string with confidence 1.`)
	return b.String()
}

// StripCodeFence removes a surrounding markdown code fence from model output.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[\"") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type visionPayload struct {
	Text       *string  `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// ParseVisionResponse decodes the JSON a vision model returned for a page.
// An empty payload is permanent; anything else that does not decode into a
// text and a confidence in [0, 1] is transient since another sample may
// succeed.
func ParseVisionResponse(raw string) (*VisionResult, error) {
	raw = StripCodeFence(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %w: empty vision payload", core.ErrPermanent, core.ErrInvalidResponse)
	}

	var payload visionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", core.ErrTransient, core.ErrInvalidResponse, err)
	}
	if payload.Text == nil || payload.Confidence == nil {
		return nil, fmt.Errorf("%w: %w: vision payload lacks text or confidence", core.ErrTransient, core.ErrInvalidResponse)
	}
	if err := core.ValidateConfidence(*payload.Confidence); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransient, err)
	}
	return &VisionResult{Text: strings.TrimSpace(*payload.Text), Confidence: *payload.Confidence}, nil
}
