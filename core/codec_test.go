package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode[T any](t *testing.T, c codec[T], v T) []byte {
	t.Helper()
	bs := make([]byte, c.Size(v))
	n := c.Marshal(v, bs)
	require.Equal(t, len(bs), n)
	return bs
}

func TestDocumentMUS(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	doc := Document{
		Id:         IDFromContent("scan"),
		FileName:   "scan.pdf",
		Title:      "On Spinal Irritation",
		UploadedAt: at,
		UpdatedAt:  at.Add(time.Minute),
		Status:     StatusFailed,
		Settings:   DefaultSettings(),
		Pages: []Page{
			{Index: 0, ImageRef: "1/00000", MIMEType: "application/pdf", Text: "Case I.", Confidence: 0.93, Status: PageExtracted},
			{Index: 1, ImageRef: "1/00001", MIMEType: "application/pdf", Status: PagePending},
		},
		Failure:   &Failure{Stage: StageIndexing, Class: ClassTransient, Detail: "timeout", At: at},
		Retries:   StageCounters{OCR: 1},
		Warnings:  []Warning{{Stage: StageOCR, Code: WarningLowConfidence, Page: 1, Message: "0.41"}},
		Artifacts: []Artifact{{Kind: ArtifactSource, Ref: "1/00000", CreatedAt: at}},
	}

	bs := encode(t, DocumentMUS, doc)
	got, n, err := DocumentMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
	assert.Equal(t, doc, got)

	t.Run("no failure", func(t *testing.T) {
		doc.Failure = nil
		got, _, err := DocumentMUS.Unmarshal(encode(t, DocumentMUS, doc))
		require.NoError(t, err)
		assert.Nil(t, got.Failure)
	})

	t.Run("leased", func(t *testing.T) {
		doc.Status = StatusOCRInProgress
		doc.Lease = &Lease{Token: "run-1", Heartbeat: at.Add(2 * time.Minute)}
		got, _, err := DocumentMUS.Unmarshal(encode(t, DocumentMUS, doc))
		require.NoError(t, err)
		assert.Equal(t, doc, got)
		assert.True(t, got.HeldBy("run-1"))
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := DocumentMUS.Unmarshal(bs[:len(bs)/2])
		assert.Error(t, err)
	})
}

func TestGraphMUS(t *testing.T) {
	node := GraphNode{
		Id:         NodeID(NodeClinicalObservation, "paralysis"),
		Type:       NodeClinicalObservation,
		Label:      "paralysis",
		Properties: map[string]string{"name": "Paralysis", "source": "llm_extraction"},
		Provenance: []Provenance{{DocumentId: 7, PageStart: 1, PageEnd: 2, Ref: "7-3", Title: "Case VII", FileName: "vii.pdf"}},
	}
	gotNode, _, err := GraphNodeMUS.Unmarshal(encode(t, GraphNodeMUS, node))
	require.NoError(t, err)
	assert.Equal(t, node, gotNode)

	edge := GraphEdge{
		Id:         EdgeID(7, 1, RelResultsIn, 2),
		Source:     1,
		Target:     2,
		Relation:   RelResultsIn,
		Directed:   true,
		Provenance: Provenance{DocumentId: 7, Ref: "section 0"},
	}
	gotEdge, _, err := GraphEdgeMUS.Unmarshal(encode(t, GraphEdgeMUS, edge))
	require.NoError(t, err)
	assert.Equal(t, edge, gotEdge)
}

func TestIndexEntryMUS(t *testing.T) {
	entry := IndexEntry{
		ChunkId:    NewChunkID(7, 0),
		DocumentId: 7,
		Text:       "the spinal cord",
		Vector:     []float32{0.6, -0.8, 0},
		UpdatedAt:  time.Unix(1700000000, 0).UTC(),
	}
	got, _, err := IndexEntryMUS.Unmarshal(encode(t, IndexEntryMUS, entry))
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestChunkMUS(t *testing.T) {
	chunk := Chunk{
		Id: NewChunkID(7, 2), DocumentId: 7, Ordinal: 2,
		PageStart: 1, PageEnd: 2, Start: 100, End: 900,
		TokenCount: 512, Overlap: 50, Text: "text", IndexRef: "7-2",
	}
	got, _, err := ChunkMUS.Unmarshal(encode(t, ChunkMUS, chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}
