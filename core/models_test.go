package core

import (
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromBytes([]byte(tt.content))

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() and IDFromBytes() disagree: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestParseID(t *testing.T) {
	id := IDFromContent("scan.pdf")
	got, err := ParseID(id.String())
	if err != nil {
		t.Fatalf("ParseID() error = %v", err)
	}
	if got != id {
		t.Errorf("ParseID() = %d, want %d", got, id)
	}

	if _, err := ParseID("not-a-number"); err == nil {
		t.Errorf("ParseID() accepted a malformed id")
	}
}

func TestChunkID(t *testing.T) {
	id := NewChunkID(ID(42), 7)
	if id != "42-7" {
		t.Fatalf("NewChunkID() = %q, want %q", id, "42-7")
	}

	doc, ordinal, err := id.Parse()
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc != 42 || ordinal != 7 {
		t.Errorf("Parse() = (%d, %d), want (42, 7)", doc, ordinal)
	}

	if _, _, err := ChunkID("garbage").Parse(); err == nil {
		t.Errorf("Parse() accepted a malformed chunk id")
	}
}

func TestSettings_Merge(t *testing.T) {
	base := DefaultSettings()
	merged := base.Merge(Settings{ChunkSize: 256, Enhancement: EnhancementAggressive})

	if merged.ChunkSize != 256 {
		t.Errorf("ChunkSize = %d, want 256", merged.ChunkSize)
	}
	if merged.Overlap != base.Overlap {
		t.Errorf("Overlap = %d, want default %d", merged.Overlap, base.Overlap)
	}
	if merged.Enhancement != EnhancementAggressive {
		t.Errorf("Enhancement = %q, want aggressive", merged.Enhancement)
	}
	if merged.DPI != 300 {
		t.Errorf("DPI = %d, want 300", merged.DPI)
	}
}

func TestNodeID(t *testing.T) {
	a := NodeID(NodeClinicalObservation, "Incomplete_Paralysis")
	b := NodeID(NodeClinicalObservation, "  incomplete   paralysis ")
	c := NodeID(NodeTherapeuticOutcome, "incomplete paralysis")

	if a != b {
		t.Errorf("NodeID() should ignore label formatting")
	}
	if a == c {
		t.Errorf("NodeID() should depend on node type")
	}
}

func TestStageCounters(t *testing.T) {
	var c StageCounters
	c.Increment(StageIndexing)
	c.Increment(StageIndexing)
	c.Increment(StageGraph)

	if c.Get(StageOCR) != 0 || c.Get(StageIndexing) != 2 || c.Get(StageGraph) != 1 {
		t.Errorf("unexpected counters %+v", c)
	}
}

func TestDocument_Lease(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	doc := &Document{}
	if doc.HeldBy("") || !doc.LeaseExpired(now, time.Minute) {
		t.Error("document without a lease should be expired and held by no one")
	}

	doc.Lease = &Lease{Token: "a", Heartbeat: now.Add(-30 * time.Second)}
	if !doc.HeldBy("a") || doc.HeldBy("b") {
		t.Error("lease should be held by its token only")
	}
	if doc.LeaseExpired(now, time.Minute) {
		t.Error("fresh heartbeat should not expire")
	}
	if !doc.LeaseExpired(now, 30*time.Second) {
		t.Error("heartbeat at the timeout should expire")
	}
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("NormalizeVector() = %v, want [0.6 0.8]", v)
	}

	zero := NormalizeVector([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("NormalizeVector() of zero vector = %v", zero)
	}

	if got := DotProduct([]float32{1, 2, 3}, []float32{4, 5}); got != 14 {
		t.Errorf("DotProduct() = %v, want 14", got)
	}
}
