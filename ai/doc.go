// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides abstractions for the AI capabilities used by Scriptorium.
//
// The pipeline depends on four capabilities, each behind an interface so the
// stages can be tested without external services:
//
//   - Embedder: Generates vector embeddings from text
//   - VisionModel: Transcribes a scanned page image into text with a confidence
//   - GraphExtractor: Proposes typed clinical entities and relationships
//   - AnswerGenerator: Answers a question from retrieved passages
//
// A Provider aggregates them for initialization and lifecycle management.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo (Ollama, vLLM, OpenAI)
//   - ai/vertex: Gemini page transcription on Vertex AI
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and count calls.
//
// # Error Classification
//
// Implementations wrap every failure in core.ErrTransient or
// core.ErrPermanent so the retry executor can decide whether to try again.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	page, err := provider.Vision().ExtractText(ctx, png, "image/png", ai.VisionOptions{
//	    Enhancement: core.EnhancementMedium,
//	    DPI:         300,
//	})
//	graph, err := provider.GraphExtractor().ExtractGraph(ctx, page.Text, ai.DefaultSchema())
package ai
