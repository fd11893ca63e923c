package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/ai/mock"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/retry"
	"github.com/poiesic/scriptorium/storage"
	"github.com/poiesic/scriptorium/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	mu      sync.Mutex
	started string
	hits    int
	skipped map[string]int
	answer  string
	final   int
}

func (m *recordingMonitor) Start(q string) { m.started = q }
func (m *recordingMonitor) AfterIndexQuery(hits []*core.IndexHit) {
	m.hits = len(hits)
}
func (m *recordingMonitor) Skipped(_ *core.IndexHit, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipped == nil {
		m.skipped = make(map[string]int)
	}
	m.skipped[reason]++
}
func (m *recordingMonitor) Hit(_ *Citation)           {}
func (m *recordingMonitor) AfterAnswer(answer string) { m.answer = answer }
func (m *recordingMonitor) Finish(c []*Citation)      { m.final = len(c) }

func setupStores(t *testing.T) (*badger.Stores, *mock.MockAnswerGenerator, ai.Provider) {
	t.Helper()
	answerer := mock.NewMockAnswerGenerator()
	provider := mock.NewMockProviderWithServices(nil, nil, nil, answerer)
	stores, err := badger.NewMemoryStores(provider.Embedder())
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores, answerer, provider
}

func newTestSearcher(t *testing.T, stores *badger.Stores, provider ai.Provider) *Searcher {
	t.Helper()
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	s, err := NewSearcher(stores.Documents, stores.Chunks, stores.Vectors, provider, WithRetryPolicy(policy))
	require.NoError(t, err)
	return s
}

// indexDocument stores a document with one chunk per text, indexed, and
// moves it to status.
func indexDocument(t *testing.T, stores *badger.Stores, name string, status core.Status, texts ...string) core.ID {
	t.Helper()
	ctx := context.Background()
	id := core.IDFromContent(name)
	doc := &core.Document{
		Id:       id,
		FileName: name + ".pdf",
		Title:    name,
		Settings: core.DefaultSettings(),
	}
	for i := range texts {
		doc.Pages = append(doc.Pages, core.Page{Index: i, ImageRef: storage.BlobRef(id, i), Text: texts[i], Status: core.PageExtracted})
	}
	_, err := stores.Documents.Create(ctx, doc)
	require.NoError(t, err)

	chunks := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &core.Chunk{
			Id:         core.NewChunkID(id, i),
			DocumentId: id,
			Ordinal:    i,
			PageStart:  i,
			PageEnd:    i,
			TokenCount: len(strings.Fields(text)),
			Text:       text,
			IndexRef:   string(core.NewChunkID(id, i)),
		}
		require.NoError(t, stores.Vectors.Upsert(ctx, chunks[i].Id, text, id))
	}
	require.NoError(t, stores.Chunks.Replace(ctx, id, chunks))

	path := []core.Status{
		core.StatusOCRInProgress, core.StatusOCRDone,
		core.StatusIndexingInProgress, core.StatusIndexed,
		core.StatusGraphInProgress, core.StatusReady,
	}
	current := core.StatusUploaded
	for _, next := range path {
		if current == status {
			break
		}
		_, err := stores.Documents.UpdateStatus(ctx, id, current, next)
		require.NoError(t, err)
		current = next
	}
	return id
}

func TestNewSearcher(t *testing.T) {
	stores, _, provider := setupStores(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(stores.Documents, stores.Chunks, stores.Vectors, provider)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(stores.Documents, stores.Chunks, stores.Vectors, provider, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(stores.Documents, stores.Chunks, stores.Vectors, provider, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("invalid retry policy", func(t *testing.T) {
		_, err := NewSearcher(stores.Documents, stores.Chunks, stores.Vectors, provider, WithRetryPolicy(retry.Policy{}))
		assert.ErrorIs(t, err, retry.ErrInvalidPolicy)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewSearcher(nil, stores.Chunks, stores.Vectors, provider)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil chunk repository", func(t *testing.T) {
		_, err := NewSearcher(stores.Documents, nil, stores.Vectors, provider)
		assert.Equal(t, ErrChunkRepositoryRequired, err)
	})

	t.Run("nil vector index", func(t *testing.T) {
		_, err := NewSearcher(stores.Documents, stores.Chunks, nil, provider)
		assert.Equal(t, ErrVectorIndexRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(stores.Documents, stores.Chunks, stores.Vectors, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestSearch_InvalidInput(t *testing.T) {
	stores, _, provider := setupStores(t)
	s := newTestSearcher(t, stores, provider)

	_, err := s.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = s.Search(context.Background(), "paralysis", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestAsk_EmptyDatabase(t *testing.T) {
	stores, answerer, provider := setupStores(t)
	s := newTestSearcher(t, stores, provider)

	answer, err := s.Ask(context.Background(), "what relieved the paralysis?", 5)
	require.NoError(t, err)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, NoPassagesAnswer, answer.Text)
	assert.Zero(t, answerer.CallCount())
}

func TestSearch_OnlyReadyDocuments(t *testing.T) {
	stores, _, provider := setupStores(t)
	s := newTestSearcher(t, stores, provider)

	ready := indexDocument(t, stores, "ready", core.StatusReady, "cupping relieved the paralysis", "rest for three weeks")
	indexDocument(t, stores, "indexed", core.StatusIndexed, "cupping relieved the paralysis again")

	monitor := &recordingMonitor{}
	citations, err := s.SearchWithMonitor(context.Background(), "cupping paralysis", 10, monitor)
	require.NoError(t, err)

	require.Len(t, citations, 2)
	for _, c := range citations {
		assert.Equal(t, ready, c.DocumentId)
		assert.Equal(t, "ready.pdf", c.FileName)
	}
	assert.Equal(t, "cupping paralysis", monitor.started)
	assert.Equal(t, 3, monitor.hits)
	assert.Equal(t, 1, monitor.skipped[SkipDocumentNotReady])
	assert.Equal(t, 2, monitor.final)
}

func TestSearch_VerbatimBoostAndOrder(t *testing.T) {
	stores, _, provider := setupStores(t)
	s := newTestSearcher(t, stores, provider)

	const exact = "the spinal cord was compressed by the fracture"
	indexDocument(t, stores, "case", core.StatusReady,
		"the patient walked again after a month",
		exact,
		"bleeding was stopped with a compress")

	citations, err := s.Search(context.Background(), exact, 2)
	require.NoError(t, err)
	require.Len(t, citations, 2)

	top := citations[0]
	assert.Equal(t, exact, top.Excerpt)
	assert.True(t, top.Verbatim)
	assert.InDelta(t, 1.0+verbatimBoost, top.Score, 1e-4)
	assert.Equal(t, 1, top.PageStart)
	assert.False(t, citations[1].Verbatim)
	assert.Greater(t, top.Score, citations[1].Score)
}

func TestAsk_CitesPassages(t *testing.T) {
	stores, answerer, provider := setupStores(t)
	s := newTestSearcher(t, stores, provider)
	indexDocument(t, stores, "case", core.StatusReady, "cupping relieved the paralysis", "rest for three weeks")

	var got []ai.Passage
	answerer.GenerateAnswerFunc = func(ctx context.Context, question string, passages []ai.Passage) (string, error) {
		got = passages
		return "Cupping relieved it [1].", nil
	}

	monitor := &recordingMonitor{}
	answer, err := s.AskWithMonitor(context.Background(), "  what relieved the paralysis? ", 5, monitor)
	require.NoError(t, err)
	assert.Equal(t, "what relieved the paralysis?", answer.Question)
	assert.Equal(t, "Cupping relieved it [1].", answer.Text)
	assert.Equal(t, answer.Text, monitor.answer)
	require.Len(t, answer.Citations, 2)
	require.Len(t, got, 2)
	for i, p := range got {
		assert.Equal(t, answer.Citations[i].ChunkId, p.ChunkId)
		assert.Equal(t, "case", p.Title)
		assert.NotEmpty(t, p.Text)
	}
}

func TestAsk_AnswerFailure(t *testing.T) {
	stores, answerer, provider := setupStores(t)
	s := newTestSearcher(t, stores, provider)
	indexDocument(t, stores, "case", core.StatusReady, "cupping relieved the paralysis")

	answerer.GenerateAnswerFunc = func(ctx context.Context, question string, passages []ai.Passage) (string, error) {
		return "", context.DeadlineExceeded
	}
	_, err := s.Ask(context.Background(), "paralysis", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransient)
	assert.Equal(t, 2, answerer.CallCount())
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", excerpt("  short\n text ", 50))

	long := strings.Repeat("vertebra ", 20)
	out := excerpt(long, 40)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 43)
	assert.False(t, strings.Contains(out, "vertebr..."), "should cut on a word boundary")
}

func TestContainsAllQueryWords(t *testing.T) {
	assert.True(t, containsAllQueryWords("The cord was compressed.", "was the cord compressed?"))
	assert.False(t, containsAllQueryWords("The cord was compressed.", "cord fracture"))
	assert.False(t, containsAllQueryWords("anything", "the of and"))
}
