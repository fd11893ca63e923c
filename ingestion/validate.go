package ingestion

import (
	"maps"

	"github.com/poiesic/scriptorium/ai"
	"github.com/poiesic/scriptorium/core"
)

// graphSource is written on every node the pipeline creates.
const graphSource = "scriptorium"

// graphBatch validates extractor output section by section and collects the
// surviving nodes and edges of one document, deduplicated.
type graphBatch struct {
	documentID core.ID
	title      string
	fileName   string
	metadata   map[string]string

	nodes     map[core.ID]*core.GraphNode
	nodeOrder []core.ID
	edges     map[core.ID]*core.GraphEdge
	edgeOrder []core.ID

	droppedNodes int
	droppedEdges int
}

func newGraphBatch(doc *core.Document) *graphBatch {
	return &graphBatch{
		documentID: doc.Id,
		title:      doc.Title,
		fileName:   doc.FileName,
		metadata: map[string]string{
			core.PropDocumentTitle: doc.Title,
			core.PropDocumentID:    doc.Id.String(),
			core.PropFileName:      doc.FileName,
			"source":               graphSource,
		},
		nodes: make(map[core.ID]*core.GraphNode),
		edges: make(map[core.ID]*core.GraphEdge),
	}
}

// add validates one extractor response. Nodes need a known type and a
// non-empty label. Edges need a known relation and both endpoints among the
// nodes of the same response. Anything else is dropped and counted.
func (b *graphBatch) add(raw *ai.RawGraph, prov core.Provenance) {
	prov.Title, prov.FileName = b.title, b.fileName
	local := make(map[string]core.ID, len(raw.Nodes))
	for _, rn := range raw.Nodes {
		nodeType, ok := core.ParseNodeType(rn.Type)
		label := core.NormalizeLabel(rn.ID)
		if !ok || label == "" {
			b.droppedNodes++
			continue
		}
		id := core.NodeID(nodeType, label)
		local[label] = id

		if node, ok := b.nodes[id]; ok {
			widen(&node.Provenance[0], prov)
			continue
		}
		props := make(map[string]string, len(rn.Properties)+len(b.metadata)+1)
		maps.Copy(props, rn.Properties)
		props["name"] = rn.ID
		maps.Copy(props, b.metadata)
		b.nodes[id] = &core.GraphNode{
			Id:         id,
			Type:       nodeType,
			Label:      label,
			Properties: props,
			Provenance: []core.Provenance{prov},
		}
		b.nodeOrder = append(b.nodeOrder, id)
	}

	for _, re := range raw.Edges {
		rel, ok := core.ParseRelationType(re.Type)
		source, sourceOK := local[core.NormalizeLabel(re.Source)]
		target, targetOK := local[core.NormalizeLabel(re.Target)]
		if !ok || !sourceOK || !targetOK || source == target {
			b.droppedEdges++
			continue
		}
		if !rel.Directed() && target < source {
			source, target = target, source
		}
		id := core.EdgeID(b.documentID, source, rel, target)
		if edge, ok := b.edges[id]; ok {
			widen(&edge.Provenance, prov)
			continue
		}
		b.edges[id] = &core.GraphEdge{
			Id:         id,
			Source:     source,
			Target:     target,
			Relation:   rel,
			Directed:   rel.Directed(),
			Properties: maps.Clone(re.Properties),
			Provenance: prov,
		}
		b.edgeOrder = append(b.edgeOrder, id)
	}
}

func (b *graphBatch) nodeList() []*core.GraphNode {
	out := make([]*core.GraphNode, len(b.nodeOrder))
	for i, id := range b.nodeOrder {
		out[i] = b.nodes[id]
	}
	return out
}

func (b *graphBatch) edgeList() []*core.GraphEdge {
	out := make([]*core.GraphEdge, len(b.edgeOrder))
	for i, id := range b.edgeOrder {
		out[i] = b.edges[id]
	}
	return out
}

// widen extends p's page range to cover other.
func widen(p *core.Provenance, other core.Provenance) {
	p.PageStart = min(p.PageStart, other.PageStart)
	p.PageEnd = max(p.PageEnd, other.PageEnd)
}
