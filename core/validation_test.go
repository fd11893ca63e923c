package core

import (
	"errors"
	"math"
	"testing"
)

func validDocument() *Document {
	return &Document{
		Id:       1,
		FileName: "scan.pdf",
		Status:   StatusUploaded,
		Settings: DefaultSettings(),
		Pages: []Page{
			{Index: 0, ImageRef: "1/00000", MIMEType: "application/pdf", Status: PagePending},
			{Index: 1, ImageRef: "1/00001", MIMEType: "application/pdf", Status: PagePending},
		},
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr error
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "200 dpi", mutate: func(s *Settings) { s.DPI = 200 }},
		{name: "zero chunk size", mutate: func(s *Settings) { s.ChunkSize = 0 }, wantErr: ErrInvalidConfig},
		{name: "negative overlap", mutate: func(s *Settings) { s.Overlap = -1 }, wantErr: ErrInvalidConfig},
		{name: "overlap equals size", mutate: func(s *Settings) { s.Overlap = s.ChunkSize }, wantErr: ErrInvalidConfig},
		{name: "unknown enhancement", mutate: func(s *Settings) { s.Enhancement = "extreme" }, wantErr: ErrInvalidConfig},
		{name: "unsupported dpi", mutate: func(s *Settings) { s.DPI = 150 }, wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := ValidateSettings(s)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSettings() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSettings() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Document) *Document
		wantErr error
	}{
		{
			name:   "valid document",
			mutate: func(d *Document) *Document { return d },
		},
		{
			name:    "nil document",
			mutate:  func(*Document) *Document { return nil },
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty file name",
			mutate:  func(d *Document) *Document { d.FileName = ""; return d },
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "no pages",
			mutate:  func(d *Document) *Document { d.Pages = nil; return d },
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "pages out of order",
			mutate:  func(d *Document) *Document { d.Pages[1].Index = 3; return d },
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "missing image reference",
			mutate:  func(d *Document) *Document { d.Pages[0].ImageRef = ""; return d },
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "bad settings",
			mutate:  func(d *Document) *Document { d.Settings.Overlap = 600; return d },
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.mutate(validDocument()))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfidence(t *testing.T) {
	for _, c := range []float64{0, 0.42, 1} {
		if err := ValidateConfidence(c); err != nil {
			t.Errorf("ValidateConfidence(%v) error = %v", c, err)
		}
	}
	for _, c := range []float64{-0.1, 1.01, math.NaN()} {
		if err := ValidateConfidence(c); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("ValidateConfidence(%v) error = %v, want ErrInvalidResponse", c, err)
		}
	}
}

func TestValidateNode(t *testing.T) {
	prov := []Provenance{{DocumentId: 1, PageStart: 0, PageEnd: 0, Ref: "1-0"}}

	tests := []struct {
		name    string
		node    *GraphNode
		wantErr error
	}{
		{
			name: "valid node",
			node: &GraphNode{Id: 5, Type: NodeClinicalObservation, Label: "incomplete paralysis", Provenance: prov},
		},
		{
			name:    "nil node",
			node:    nil,
			wantErr: ErrInvalidNode,
		},
		{
			name:    "unknown type",
			node:    &GraphNode{Id: 5, Type: "Disease", Label: "x", Provenance: prov},
			wantErr: ErrInvalidNode,
		},
		{
			name:    "blank label",
			node:    &GraphNode{Id: 5, Type: NodeSourceText, Label: " . ", Provenance: prov},
			wantErr: ErrInvalidNode,
		},
		{
			name:    "no provenance",
			node:    &GraphNode{Id: 5, Type: NodeSourceText, Label: "Fig. 3"},
			wantErr: ErrEmptyProvenance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNode(tt.node)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateNode() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateNode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEdge(t *testing.T) {
	prov := Provenance{DocumentId: 1, Ref: "section 0"}

	tests := []struct {
		name    string
		edge    *GraphEdge
		wantErr error
	}{
		{
			name: "valid directed edge",
			edge: &GraphEdge{Source: 1, Target: 2, Relation: RelPrecededBy, Directed: true, Provenance: prov},
		},
		{
			name: "valid undirected edge",
			edge: &GraphEdge{Source: 1, Target: 2, Relation: RelCoOccursWith, Directed: false, Provenance: prov},
		},
		{
			name:    "nil edge",
			wantErr: ErrInvalidEdge,
		},
		{
			name:    "unknown relation",
			edge:    &GraphEdge{Source: 1, Target: 2, Relation: "causes", Directed: true, Provenance: prov},
			wantErr: ErrInvalidEdge,
		},
		{
			name:    "directionality mismatch",
			edge:    &GraphEdge{Source: 1, Target: 2, Relation: RelCorroborates, Directed: true, Provenance: prov},
			wantErr: ErrInvalidEdge,
		},
		{
			name:    "missing endpoint",
			edge:    &GraphEdge{Source: 1, Relation: RelResultsIn, Directed: true, Provenance: prov},
			wantErr: ErrInvalidEdge,
		},
		{
			name:    "self loop",
			edge:    &GraphEdge{Source: 3, Target: 3, Relation: RelResultsIn, Directed: true, Provenance: prov},
			wantErr: ErrInvalidEdge,
		},
		{
			name:    "missing provenance",
			edge:    &GraphEdge{Source: 1, Target: 2, Relation: RelResultsIn, Directed: true},
			wantErr: ErrEmptyProvenance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEdge(tt.edge)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEdge() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEdge() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
