package search

import (
	"github.com/poiesic/scriptorium/core"
)

// QueryMonitor provides hooks to observe a query.
// Implement this interface to track intermediate steps and results.
type QueryMonitor interface {
	Start(question string)
	AfterIndexQuery(hits []*core.IndexHit)
	Skipped(hit *core.IndexHit, reason string)
	Hit(citation *Citation)
	AfterAnswer(answer string)
	Finish(citations []*Citation)
}

// Reasons passed to QueryMonitor.Skipped.
const (
	SkipDocumentMissing  = "document missing"
	SkipDocumentNotReady = "document not ready"
	SkipChunkMissing     = "chunk missing"
)

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterIndexQuery(_ []*core.IndexHit) {}
func (n *noopMonitor) Skipped(_ *core.IndexHit, _ string) {}
func (n *noopMonitor) Hit(_ *Citation)                    {}
func (n *noopMonitor) AfterAnswer(_ string)               {}
func (n *noopMonitor) Finish(_ []*Citation)               {}
