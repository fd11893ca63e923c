// Package ingestion moves uploaded documents through OCR, indexing and
// graph extraction.
//
// A Pipeline owns the state machine:
//
//	UPLOADED -> OCR_IN_PROGRESS -> OCR_DONE -> INDEXING_IN_PROGRESS ->
//	INDEXED -> GRAPH_IN_PROGRESS -> READY
//
// with FAILED reachable from every in-progress status and DELETED from any.
// Each stage is claimed and completed with a compare-and-swap on the
// document repository; a worker that loses the swap stops without side
// effects, so several pipelines may share one store.
//
// Remote calls (vision, vector index, extractor) go through a retry.Executor
// and run on a bounded worker pool. Pages within OCR and chunks within
// indexing are dispatched concurrently; stages of one document never
// overlap.
//
// Usage:
//
//	p, err := ingestion.NewPipeline(repos, provider)
//	defer p.Release()
//	doc, err := p.Upload(ctx, ingestion.UploadRequest{FileName: "scan.pdf", Data: data})
//	doc, err = p.Process(ctx, doc.Id)
package ingestion
