package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/storage"
)

// DefaultSectionTokens bounds the text sent in one extraction call.
const DefaultSectionTokens = 4096

// section is a run of consecutive chunks extracted in one call.
type section struct {
	text string
	prov core.Provenance
}

// buildSections groups chunks into sections of at most maxTokens new tokens.
// A single chunk larger than maxTokens forms its own section.
func buildSections(documentID core.ID, text string, chunks []*core.Chunk, maxTokens int) ([]section, error) {
	var sections []section
	for start := 0; start < len(chunks); {
		end := start
		tokens := chunks[start].TokenCount
		for end+1 < len(chunks) {
			next := chunks[end+1]
			if tokens+next.TokenCount-next.Overlap > maxTokens {
				break
			}
			tokens += next.TokenCount - next.Overlap
			end++
		}

		first, last := chunks[start], chunks[end]
		if first.Start < 0 || last.End > len(text) || first.Start > last.End {
			return nil, fmt.Errorf("%w: %w: chunks %s..%s do not match the page text", core.ErrPermanent, core.ErrInvalidDocument, first.Id, last.Id)
		}
		ref := string(first.Id)
		if end > start {
			ref += ".." + string(last.Id)
		}
		sections = append(sections, section{
			text: text[first.Start:last.End],
			prov: core.Provenance{
				DocumentId: documentID,
				PageStart:  first.PageStart,
				PageEnd:    last.PageEnd,
				Ref:        ref,
			},
		})
		start = end + 1
	}
	return sections, nil
}

// graphStage extracts typed entities and relationships from the indexed
// text and writes them to the graph store, nodes before edges.
type graphStage struct {
	documents     storage.DocumentRepository
	chunks        storage.ChunkRepository
	graph         storage.GraphStore
	extractor     ai.GraphExtractor
	calls         *dispatcher
	sectionTokens int
	logger        *slog.Logger
}

func (s *graphStage) run(ctx context.Context, doc *core.Document) error {
	chunks, err := s.chunks.ListByDocument(ctx, doc.Id)
	if err != nil {
		return fmt.Errorf("list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: %w: document %d has no chunks", core.ErrPermanent, core.ErrInvalidDocument, doc.Id)
	}
	sections, err := buildSections(doc.Id, assembleText(doc.Pages).text, chunks, s.sectionTokens)
	if err != nil {
		return err
	}

	schema := ai.DefaultSchema()
	raws := make([]*ai.RawGraph, len(sections))
	err = s.calls.each(ctx, len(sections), func(ctx context.Context, i int) error {
		return s.calls.call(ctx, "extract", func(ctx context.Context) error {
			raw, err := s.extractor.ExtractGraph(ctx, sections[i].text, schema)
			if err != nil {
				return err
			}
			if raw == nil {
				return fmt.Errorf("%w: %w: extractor returned no graph for %s", core.ErrTransient, core.ErrInvalidResponse, sections[i].prov.Ref)
			}
			raws[i] = raw
			return nil
		})
	})
	if err != nil {
		return err
	}

	batch := newGraphBatch(doc)
	for i, raw := range raws {
		batch.add(raw, sections[i].prov)
	}

	// A previous run may have written part of the graph.
	err = s.calls.call(ctx, "clear-graph", func(ctx context.Context) error {
		return s.graph.DeleteByDocument(ctx, doc.Id)
	})
	if err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}

	nodes, edges := batch.nodeList(), batch.edgeList()
	if len(nodes) > 0 {
		err = s.calls.call(ctx, "write-nodes", func(ctx context.Context) error {
			return s.graph.WriteNodes(ctx, nodes)
		})
		if err != nil {
			return fmt.Errorf("write nodes: %w", err)
		}
	}
	if len(edges) > 0 {
		err = s.calls.call(ctx, "write-edges", func(ctx context.Context) error {
			return s.graph.WriteEdges(ctx, edges)
		})
		if err != nil {
			return fmt.Errorf("write edges: %w", err)
		}
	}

	var warnings []core.Warning
	if batch.droppedNodes > 0 {
		warnings = append(warnings, core.Warning{
			Stage:   core.StageGraph,
			Code:    core.WarningDroppedNodes,
			Page:    -1,
			Message: fmt.Sprintf("%d malformed nodes dropped", batch.droppedNodes),
		})
	}
	if batch.droppedEdges > 0 {
		warnings = append(warnings, core.Warning{
			Stage:   core.StageGraph,
			Code:    core.WarningDroppedEdges,
			Page:    -1,
			Message: fmt.Sprintf("%d malformed edges dropped", batch.droppedEdges),
		})
	}
	_, err = s.documents.Update(ctx, doc.Id, core.StatusGraphInProgress, leased(doc, func(stored *core.Document) error {
		replaceWarnings(stored, core.StageGraph, func(core.Warning) bool { return true }, warnings)
		return nil
	}))
	if err != nil {
		return fmt.Errorf("record graph warnings: %w", err)
	}
	if err := s.documents.AppendArtifact(ctx, doc.Id, core.ArtifactGraph, artifactRef("graph", doc.Id)); err != nil {
		return err
	}

	s.logger.Debug("graph written", "document", doc.Id,
		"sections", len(sections), "nodes", len(nodes), "edges", len(edges),
		"dropped_nodes", batch.droppedNodes, "dropped_edges", batch.droppedEdges)
	return nil
}
