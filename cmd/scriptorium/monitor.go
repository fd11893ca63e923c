package main

import (
	"fmt"
	"io"
	"time"

	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/search"
)

// verboseMonitor traces each query step to w.
type verboseMonitor struct {
	w     io.Writer
	start time.Time
}

var _ search.QueryMonitor = (*verboseMonitor)(nil)

func newVerboseMonitor(w io.Writer) *verboseMonitor {
	return &verboseMonitor{w: w}
}

func (m *verboseMonitor) Start(question string) {
	m.start = time.Now()
	fmt.Fprintf(m.w, "query: %q\n", question)
}

func (m *verboseMonitor) AfterIndexQuery(hits []*core.IndexHit) {
	fmt.Fprintf(m.w, "index returned %d hits (%s)\n", len(hits), m.elapsed())
}

func (m *verboseMonitor) Skipped(hit *core.IndexHit, reason string) {
	fmt.Fprintf(m.w, "  skip %s [%0.3f]: %s\n", hit.ChunkId, hit.Score, reason)
}

func (m *verboseMonitor) Hit(c *search.Citation) {
	verbatim := ""
	if c.Verbatim {
		verbatim = " verbatim"
	}
	fmt.Fprintf(m.w, "  hit  %s [%0.3f]%s\n", c.ChunkId, c.Score, verbatim)
}

func (m *verboseMonitor) AfterAnswer(answer string) {
	fmt.Fprintf(m.w, "answer generated, %d chars (%s)\n", len(answer), m.elapsed())
}

func (m *verboseMonitor) Finish(citations []*search.Citation) {
	fmt.Fprintf(m.w, "done: %d citations in %s\n\n", len(citations), m.elapsed())
}

func (m *verboseMonitor) elapsed() time.Duration {
	return time.Since(m.start).Round(time.Millisecond)
}
