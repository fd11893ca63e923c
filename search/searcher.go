package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/retry"
	"github.com/poiesic/scriptorium/storage"
)

const (
	// verbatimBoost is added to passages containing every significant query word.
	verbatimBoost = 0.3
	// overfetch widens the index query to survive filtering of unready documents.
	overfetch = 3
	// excerptLength bounds the excerpt carried by a citation.
	excerptLength = 280
)

// NoPassagesAnswer is returned by Ask when no READY document matches.
const NoPassagesAnswer = "No processed document contains a passage relevant to this question."

// Citation points at one passage an answer may draw on.
type Citation struct {
	DocumentId core.ID
	FileName   string
	Title      string
	ChunkId    core.ChunkID
	PageStart  int
	PageEnd    int
	Score      float32
	Verbatim   bool // Passage contains every significant word of the question
	Excerpt    string
	text       string
}

// Answer is the result of Ask.
type Answer struct {
	Question  string
	Text      string
	Citations []*Citation
}

// Searcher answers questions from the vector index.
type Searcher struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	vectors   storage.VectorIndex
	answerer  ai.AnswerGenerator
	policy    retry.Policy
	exec      *retry.Executor
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the policy for index queries and answer generation.
// Default is retry.DefaultPolicy().
func WithRetryPolicy(policy retry.Policy) Option {
	return func(s *Searcher) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		s.policy = policy
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	documents storage.DocumentRepository,
	chunks storage.ChunkRepository,
	vectors storage.VectorIndex,
	provider ai.Provider,
	opts ...Option,
) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		documents: documents,
		chunks:    chunks,
		vectors:   vectors,
		answerer:  provider.AnswerGenerator(),
		policy:    retry.DefaultPolicy(),
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")

	exec, err := retry.New(s.policy, retry.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.exec = exec
	return s, nil
}

// Search returns up to topK citations for the question, best first.
func (s *Searcher) Search(ctx context.Context, question string, topK int) ([]*Citation, error) {
	return s.SearchWithMonitor(ctx, question, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each step.
func (s *Searcher) SearchWithMonitor(ctx context.Context, question string, topK int, monitor QueryMonitor) ([]*Citation, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}

	monitor.Start(question)

	var hits []*core.IndexHit
	_, err := s.exec.Do(ctx, "query-index", func(ctx context.Context) error {
		var err error
		hits, err = s.vectors.Query(ctx, question, topK*overfetch)
		return err
	})
	if err != nil {
		s.logger.Error("error querying vector index", "err", err)
		return nil, err
	}
	monitor.AfterIndexQuery(hits)

	documents := make(map[core.ID]*core.Document)
	citations := make([]*Citation, 0, len(hits))
	for _, hit := range hits {
		doc, ok := documents[hit.DocumentId]
		if !ok {
			doc, err = s.documents.Get(ctx, hit.DocumentId)
			if err != nil && !errors.Is(err, core.ErrNotFound) {
				return nil, err
			}
			documents[hit.DocumentId] = doc
		}
		if doc == nil {
			monitor.Skipped(hit, SkipDocumentMissing)
			continue
		}
		if doc.Status != core.StatusReady {
			monitor.Skipped(hit, SkipDocumentNotReady)
			continue
		}

		chunk, err := s.chunks.Get(ctx, hit.ChunkId)
		if errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("index entry without chunk", "chunk", hit.ChunkId)
			monitor.Skipped(hit, SkipChunkMissing)
			continue
		}
		if err != nil {
			return nil, err
		}

		citation := &Citation{
			DocumentId: doc.Id,
			FileName:   doc.FileName,
			Title:      doc.Title,
			ChunkId:    chunk.Id,
			PageStart:  chunk.PageStart,
			PageEnd:    chunk.PageEnd,
			Score:      hit.Score,
			Verbatim:   containsAllQueryWords(chunk.Text, question),
			Excerpt:    excerpt(chunk.Text, excerptLength),
			text:       chunk.Text,
		}
		if citation.Verbatim {
			citation.Score += verbatimBoost
		}
		monitor.Hit(citation)
		citations = append(citations, citation)
	}

	// Sort by score descending
	sort.SliceStable(citations, func(i, j int) bool {
		return citations[i].Score > citations[j].Score
	})
	if len(citations) > topK {
		citations = citations[:topK]
	}
	monitor.Finish(citations)
	return citations, nil
}

// Ask answers the question from up to topK passages and cites them.
func (s *Searcher) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	return s.AskWithMonitor(ctx, question, topK, nil)
}

// AskWithMonitor is Ask with callbacks at each step.
func (s *Searcher) AskWithMonitor(ctx context.Context, question string, topK int, monitor QueryMonitor) (*Answer, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	citations, err := s.SearchWithMonitor(ctx, question, topK, monitor)
	if err != nil {
		return nil, err
	}
	answer := &Answer{Question: strings.TrimSpace(question), Citations: citations}
	if len(citations) == 0 {
		answer.Text = NoPassagesAnswer
		return answer, nil
	}
	if s.answerer == nil {
		return nil, fmt.Errorf("%w: no answer generator", ErrAIProviderRequired)
	}

	passages := make([]ai.Passage, len(citations))
	for i, c := range citations {
		passages[i] = ai.Passage{ChunkId: c.ChunkId, Title: c.Title, Text: c.text}
	}
	_, err = s.exec.Do(ctx, "answer", func(ctx context.Context) error {
		var err error
		answer.Text, err = s.answerer.GenerateAnswer(ctx, answer.Question, passages)
		return err
	})
	if err != nil {
		s.logger.Error("error generating answer", "err", err)
		return nil, err
	}
	monitor.AfterAnswer(answer.Text)
	return answer, nil
}
