package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/retry"
	"github.com/poiesic/scriptorium/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultConfidenceFloor is the OCR confidence below which a page is flagged.
const DefaultConfidenceFloor = 0.5

// DefaultLeaseTimeout is how long a stage run may go without renewing its
// lease before Resume treats it as dead.
const DefaultLeaseTimeout = time.Minute

// Repositories bundles the stores the pipeline reads and writes.
type Repositories struct {
	Documents storage.DocumentRepository
	Chunks    storage.ChunkRepository
	Vectors   storage.VectorIndex
	Graph     storage.GraphStore
	Blobs     storage.BlobStore
}

// Pipeline moves documents through OCR, indexing and graph extraction.
// Every status change goes through the document repository's
// compare-and-swap, so several pipelines may share the same stores.
type Pipeline struct {
	documents storage.DocumentRepository
	chunks    storage.ChunkRepository
	vectors   storage.VectorIndex
	graph     storage.GraphStore
	blobs     storage.BlobStore

	callConcurrency int
	docConcurrency  int
	policy          retry.Policy
	observer        retry.Observer
	confidenceFloor float64
	settings        core.Settings
	sectionTokens   int
	leaseTimeout    time.Duration

	calls   *dispatcher
	docPool *ants.Pool
	stages  map[core.Stage]stage
	runs    *registry
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithCallConcurrency bounds the remote calls in flight across all documents,
// e.g. pages in OCR and chunks in indexing.
// Default is 4.
func WithCallConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.callConcurrency = max(n, 1)
		return nil
	}
}

// WithDocumentConcurrency bounds the documents processed at once by Submit
// and Resume.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithDocumentConcurrency(n int) Option {
	return func(p *Pipeline) error {
		p.docConcurrency = max(n, 1)
		return nil
	}
}

// WithRetryPolicy sets the policy of every remote call.
// Default is retry.DefaultPolicy().
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		p.policy = policy
		return nil
	}
}

// WithAttemptObserver receives one event per remote call attempt.
func WithAttemptObserver(observer retry.Observer) Option {
	return func(p *Pipeline) error {
		p.observer = observer
		return nil
	}
}

// WithConfidenceFloor sets the OCR confidence below which pages are flagged.
// Default is DefaultConfidenceFloor.
func WithConfidenceFloor(floor float64) Option {
	return func(p *Pipeline) error {
		if err := core.ValidateConfidence(floor); err != nil {
			return fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
		}
		p.confidenceFloor = floor
		return nil
	}
}

// WithSettings sets the document settings that uploads override.
// Default is core.DefaultSettings().
func WithSettings(settings core.Settings) Option {
	return func(p *Pipeline) error {
		settings = core.DefaultSettings().Merge(settings)
		if err := core.ValidateSettings(settings); err != nil {
			return err
		}
		p.settings = settings
		return nil
	}
}

// WithSectionTokens bounds the tokens sent in one graph extraction call.
// Default is DefaultSectionTokens.
func WithSectionTokens(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("%w: section tokens must be positive, got %d", core.ErrInvalidConfig, n)
		}
		p.sectionTokens = n
		return nil
	}
}

// WithLeaseTimeout sets how long a stage run may go without renewing its
// lease. Runs renew three times per timeout; Resume only rewinds documents
// whose lease has lapsed.
// Default is DefaultLeaseTimeout.
func WithLeaseTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return fmt.Errorf("%w: lease timeout must be positive, got %s", core.ErrInvalidConfig, d)
		}
		p.leaseTimeout = d
		return nil
	}
}

// NewPipeline creates a pipeline over repos. The provider supplies the
// vision model and the graph extractor. Call Release when done.
func NewPipeline(repos Repositories, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	switch {
	case repos.Documents == nil:
		return nil, ErrDocumentRepositoryRequired
	case repos.Chunks == nil:
		return nil, ErrChunkRepositoryRequired
	case repos.Vectors == nil:
		return nil, ErrVectorIndexRequired
	case repos.Graph == nil:
		return nil, ErrGraphStoreRequired
	case repos.Blobs == nil:
		return nil, ErrBlobStoreRequired
	case provider == nil:
		return nil, ErrAIProviderRequired
	}
	vision := provider.Vision()
	if vision == nil {
		return nil, ErrVisionRequired
	}
	extractor := provider.GraphExtractor()
	if extractor == nil {
		return nil, fmt.Errorf("%w: graph extractor", ErrAIProviderRequired)
	}

	// Default document concurrency
	docConcurrency := runtime.NumCPU() / 2
	if docConcurrency < 1 {
		docConcurrency = 1
	}

	p := &Pipeline{
		documents:       repos.Documents,
		chunks:          repos.Chunks,
		vectors:         repos.Vectors,
		graph:           repos.Graph,
		blobs:           repos.Blobs,
		callConcurrency: 4,
		docConcurrency:  docConcurrency,
		policy:          retry.DefaultPolicy(),
		confidenceFloor: DefaultConfidenceFloor,
		settings:        core.DefaultSettings(),
		sectionTokens:   DefaultSectionTokens,
		leaseTimeout:    DefaultLeaseTimeout,
		runs:            newRegistry(),
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")

	exec, err := retry.New(p.policy, retry.WithLogger(p.logger), retry.WithObserver(p.observer))
	if err != nil {
		return nil, err
	}

	// Pools are created after options so they get the final sizes
	callPool, err := ants.NewPool(p.callConcurrency)
	if err != nil {
		return nil, err
	}
	docPool, err := ants.NewPool(p.docConcurrency)
	if err != nil {
		callPool.Release()
		return nil, err
	}
	p.calls = &dispatcher{pool: callPool, exec: exec}
	p.docPool = docPool

	p.stages = map[core.Stage]stage{
		core.StageOCR: &ocrStage{
			documents: p.documents,
			blobs:     p.blobs,
			vision:    vision,
			calls:     p.calls,
			floor:     p.confidenceFloor,
			logger:    p.logger.With("stage", core.StageOCR),
		},
		core.StageIndexing: &indexStage{
			documents: p.documents,
			chunks:    p.chunks,
			vectors:   p.vectors,
			calls:     p.calls,
			logger:    p.logger.With("stage", core.StageIndexing),
		},
		core.StageGraph: &graphStage{
			documents:     p.documents,
			chunks:        p.chunks,
			graph:         p.graph,
			extractor:     extractor,
			calls:         p.calls,
			sectionTokens: p.sectionTokens,
			logger:        p.logger.With("stage", core.StageGraph),
		},
	}
	return p, nil
}

// Settings returns the settings uploads start from.
func (p *Pipeline) Settings() core.Settings {
	return p.settings
}

// Process runs the document through every remaining stage and returns it in
// the state it was left in: READY, FAILED, or unchanged when another worker
// owns it. A stage failure is recorded on the document, not returned. The
// error is non-nil only when the run was cancelled or the stores failed.
func (p *Pipeline) Process(ctx context.Context, id core.ID) (*core.Document, error) {
	runCtx, finish, ok := p.runs.start(ctx, id)
	if !ok {
		p.logger.Debug("document already running in this process", "document", id)
		return p.documents.Get(ctx, id)
	}
	defer finish()
	return p.process(runCtx, id)
}

// Submit queues the document on the document pool and returns immediately.
// Use Wait to block until the run ends.
func (p *Pipeline) Submit(id core.ID) error {
	runCtx, finish, ok := p.runs.start(context.Background(), id)
	if !ok {
		return nil
	}
	err := p.docPool.Submit(func() {
		defer finish()
		if _, err := p.process(runCtx, id); err != nil {
			p.logger.Error("processing failed", "document", id, "err", err)
		}
	})
	if err != nil {
		finish()
		return fmt.Errorf("submit document %d: %w", id, err)
	}
	return nil
}

// Wait blocks until the in-flight run of the document in this process ends,
// then returns the document.
func (p *Pipeline) Wait(ctx context.Context, id core.ID) (*core.Document, error) {
	if done := p.runs.done(id); done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for document %d: %w", core.ErrCancelled, id, ctx.Err())
		}
	}
	return p.documents.Get(ctx, id)
}

func (p *Pipeline) process(ctx context.Context, id core.ID) (*core.Document, error) {
	logger := p.logger.With("document", id, "run", uuid.NewString())
	for {
		doc, err := p.documents.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		st, ok := core.NextStage(doc.Status)
		if !ok {
			// Terminal, or in progress under another worker.
			return doc, nil
		}
		if err := ctx.Err(); err != nil {
			return doc, fmt.Errorf("%w: before %s stage: %w", core.ErrCancelled, st, err)
		}
		advanced, err := p.runStage(ctx, logger, doc, st)
		if err != nil {
			return doc, err
		}
		if !advanced {
			return p.documents.Get(ctx, id)
		}
	}
}

// runStage claims the stage with a compare-and-swap that leases the
// document to this run, runs it while renewing the lease, and records the
// outcome. It reports whether the document advanced to the stage's done
// status.
func (p *Pipeline) runStage(ctx context.Context, logger *slog.Logger, doc *core.Document, st core.Stage) (bool, error) {
	token := uuid.NewString()
	logger = logger.With("stage", st, "lease", token)

	running, err := p.documents.Claim(ctx, doc.Id, st.Entry(), st.Running(), token)
	if errors.Is(err, core.ErrConflict) {
		logger.Debug("stage claimed by another worker")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim %s stage: %w", st, err)
	}

	start := time.Now()
	stageCtx, cancel := context.WithCancelCause(ctx)
	stop := p.renewLease(stageCtx, cancel, doc.Id, token, logger)
	err = p.stages[st].run(stageCtx, running)
	stop()
	lost := errors.Is(context.Cause(stageCtx), errLeaseLost)
	cancel(nil)

	switch {
	case err == nil:
	case ctx.Err() != nil || (errors.Is(err, core.ErrCancelled) && !lost):
		logger.Info("stage cancelled", "elapsed", time.Since(start))
		if errors.Is(err, core.ErrCancelled) {
			return false, err
		}
		return false, fmt.Errorf("%w: %s stage: %w", core.ErrCancelled, st, err)
	case lost || errors.Is(err, core.ErrConflict):
		logger.Info("document changed during stage, abandoning")
		return false, nil
	default:
		failure := core.Failure{Stage: st, Class: core.ClassOf(err), Detail: err.Error()}
		if _, ferr := p.documents.Fail(ctx, doc.Id, token, failure); ferr != nil && !errors.Is(ferr, core.ErrConflict) {
			return false, fmt.Errorf("record %s failure: %w", st, ferr)
		}
		logger.Warn("stage failed", "class", failure.Class, "err", err)
		return false, nil
	}

	_, err = p.documents.Release(ctx, doc.Id, token, st.Done())
	if errors.Is(err, core.ErrConflict) {
		logger.Info("document changed before stage completed")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("complete %s stage: %w", st, err)
	}
	logger.Info("stage complete", "elapsed", time.Since(start))
	return true, nil
}

// renewLease keeps the lease of token alive until the returned stop func is
// called. Losing the lease cancels ctx with errLeaseLost.
func (p *Pipeline) renewLease(ctx context.Context, cancel context.CancelCauseFunc, id core.ID, token string, logger *slog.Logger) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.leaseTimeout / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := p.documents.Renew(ctx, id, token)
			switch {
			case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrNotFound):
				logger.Warn("lease lost, stopping stage")
				cancel(errLeaseLost)
				return
			case err != nil:
				logger.Warn("failed to renew lease", "err", err)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// Retry moves a FAILED document back to the entry status of the stage that
// failed, counts the retry and processes it again.
func (p *Pipeline) Retry(ctx context.Context, id core.ID) (*core.Document, error) {
	doc, err := p.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != core.StatusFailed || doc.Failure == nil {
		return nil, fmt.Errorf("%w: document %d is %s", ErrNotFailed, id, doc.Status)
	}
	st := doc.Failure.Stage

	_, err = p.documents.Update(ctx, id, core.StatusFailed, func(d *core.Document) error {
		d.Retries.Increment(st)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count retry: %w", err)
	}
	if _, err := p.documents.UpdateStatus(ctx, id, core.StatusFailed, st.Entry()); err != nil {
		return nil, fmt.Errorf("rewind to %s: %w", st.Entry(), err)
	}
	p.logger.Info("retrying document", "document", id, "stage", st)
	return p.Process(ctx, id)
}

// Resume recovers after a crash. Documents left in progress whose lease has
// lapsed go back to their stage's entry status; documents still leased to a
// live run, here or in another process, are left alone. Every other
// unfinished document is then processed, and unfinished deletes are
// completed. It returns the number of documents resumed.
func (p *Pipeline) Resume(ctx context.Context) (int, error) {
	docs, err := p.documents.List(ctx, storage.DocumentFilter{Statuses: []core.Status{
		core.StatusUploaded,
		core.StatusOCRInProgress,
		core.StatusOCRDone,
		core.StatusIndexingInProgress,
		core.StatusIndexed,
		core.StatusGraphInProgress,
		core.StatusDeleted,
	}})
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.docConcurrency)
	resumed := 0
	for _, doc := range docs {
		if p.runs.active(doc.Id) {
			continue
		}
		id := doc.Id

		if doc.Status == core.StatusDeleted {
			g.Go(func() error {
				if err := p.Delete(gctx, id); err != nil && !errors.Is(err, core.ErrNotFound) {
					p.logger.Error("failed to complete delete", "document", id, "err", err)
				}
				return nil
			})
			continue
		}

		if st, ok := core.StageOf(doc.Status); ok {
			_, err := p.documents.Expire(ctx, id, st.Running(), st.Entry(), p.leaseTimeout)
			if errors.Is(err, core.ErrConflict) {
				p.logger.Debug("document held by a live run", "document", id, "status", doc.Status)
				continue
			}
			if err != nil {
				return resumed, fmt.Errorf("rewind document %d: %w", id, err)
			}
		}

		resumed++
		g.Go(func() error {
			if _, err := p.Process(gctx, id); err != nil {
				if errors.Is(err, core.ErrCancelled) {
					return err
				}
				p.logger.Error("failed to resume document", "document", id, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return resumed, err
	}
	p.logger.Info("resume complete", "documents", resumed)
	return resumed, nil
}

// Delete marks the document DELETED, cancels and awaits its in-flight run,
// then removes its index entries, graph provenance, chunks, page images and
// finally the record. Deleting a document whose cascade was interrupted
// completes it.
func (p *Pipeline) Delete(ctx context.Context, id core.ID) error {
	for {
		doc, err := p.documents.Get(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status == core.StatusDeleted {
			break
		}
		_, err = p.documents.UpdateStatus(ctx, id, doc.Status, core.StatusDeleted)
		if errors.Is(err, core.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("mark document %d deleted: %w", id, err)
		}
		break
	}

	if done := p.runs.cancel(id); done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("%w: awaiting run of document %d: %w", core.ErrCancelled, id, ctx.Err())
		}
	}

	cascade := []struct {
		op string
		fn func(ctx context.Context) error
	}{
		{"delete-index", func(ctx context.Context) error { return p.vectors.DeleteByDocument(ctx, id) }},
		{"delete-graph", func(ctx context.Context) error { return p.graph.DeleteByDocument(ctx, id) }},
		{"delete-chunks", func(ctx context.Context) error { return p.chunks.DeleteByDocument(ctx, id) }},
		{"delete-blobs", func(ctx context.Context) error { return p.blobs.DeleteDocument(ctx, id) }},
	}
	for _, step := range cascade {
		if err := p.calls.call(ctx, step.op, step.fn); err != nil {
			return fmt.Errorf("%s for document %d: %w", step.op, id, err)
		}
	}

	if err := p.documents.Delete(ctx, id); err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	p.logger.Info("document deleted", "document", id)
	return nil
}

// Get returns the document.
func (p *Pipeline) Get(ctx context.Context, id core.ID) (*core.Document, error) {
	return p.documents.Get(ctx, id)
}

// List returns the documents matching filter, oldest first.
func (p *Pipeline) List(ctx context.Context, filter storage.DocumentFilter) ([]*core.Document, error) {
	return p.documents.List(ctx, filter)
}

// Release cancels in-flight runs and releases the worker pools.
// Documents left in progress are picked up by Resume.
func (p *Pipeline) Release() {
	p.runs.cancelAll()
	if p.docPool != nil {
		p.docPool.Release()
	}
	if p.calls != nil && p.calls.pool != nil {
		p.calls.pool.Release()
	}
}
