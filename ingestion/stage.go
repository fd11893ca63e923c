package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/scriptorium/core"
)

// stage performs the work of one processing stage on a document that the
// orchestrator has already moved to the stage's running status. Results are
// persisted before run returns; run never changes the document status.
type stage interface {
	run(ctx context.Context, doc *core.Document) error
}

// leased wraps a document update so it applies only while the run that
// claimed doc still holds the stored document. A successful write counts as
// a heartbeat.
func leased(doc *core.Document, fn func(stored *core.Document) error) func(stored *core.Document) error {
	return func(stored *core.Document) error {
		if doc.Lease == nil || !stored.HeldBy(doc.Lease.Token) {
			return fmt.Errorf("%w: document %d is no longer leased to this run", core.ErrConflict, doc.Id)
		}
		if err := fn(stored); err != nil {
			return err
		}
		stored.Lease.Heartbeat = time.Now().UTC()
		return nil
	}
}

// replaceWarnings drops the document's warnings that match stage and keep
// reports false for, then appends add.
func replaceWarnings(doc *core.Document, st core.Stage, drop func(core.Warning) bool, add []core.Warning) {
	kept := doc.Warnings[:0:0]
	for _, w := range doc.Warnings {
		if w.Stage == st && drop(w) {
			continue
		}
		kept = append(kept, w)
	}
	doc.Warnings = append(kept, add...)
}

// artifactRef names what a stage produced for a document. Re-running the
// stage yields the same reference.
func artifactRef(kind string, id core.ID) string {
	return fmt.Sprintf("%s/%d", kind, id)
}
