// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.VisionModel,
// ai.GraphExtractor, ai.AnswerGenerator and ai.Provider for use in unit tests.
// The mocks allow tests to run without external AI service dependencies and
// enable controlled, deterministic behavior. They are safe for concurrent
// use once their function fields are set.
//
// # Usage in Tests
//
//	vision := mock.NewMockVision()
//	vision.ExtractTextFunc = func(ctx context.Context, image []byte, mime string, opts ai.VisionOptions) (*ai.VisionResult, error) {
//	    return &ai.VisionResult{Text: "page text", Confidence: 0.4}, nil
//	}
//
//	// Check call counts
//	count := vision.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockVision: Returns the image bytes as text with confidence 1
//   - MockGraphExtractor: Turns long words into co-occurring observations
//   - MockAnswerGenerator: Echoes the question and cites every passage
//   - MockProvider: Aggregates one of each
package mock
