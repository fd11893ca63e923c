package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/tmc/langchaingo/llms"
)

// AnswerGenerator implements ai.AnswerGenerator with a chat model.
type AnswerGenerator struct {
	client llms.Model
	logger *slog.Logger
}

func newAnswerGenerator(config *ai.Config) (*AnswerGenerator, error) {
	client, err := chatClient(config, config.ChatHost, config.AnswerModel)
	if err != nil {
		return nil, err
	}
	return &AnswerGenerator{
		client: client,
		logger: slog.Default().With("component", "openai-answer"),
	}, nil
}

// GenerateAnswer answers question from the numbered passages.
func (a *AnswerGenerator) GenerateAnswer(ctx context.Context, question string, passages []ai.Passage) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, answerSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildAnswerPrompt(question, passages)),
	}

	response, err := a.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		a.logger.Error("failed to generate answer", "passages", len(passages), "err", err)
		return "", core.Classify(err)
	}
	if len(response.Choices) < 1 || strings.TrimSpace(response.Choices[0].Content) == "" {
		return "", fmt.Errorf("%w: %w: empty answer", core.ErrTransient, core.ErrInvalidResponse)
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
