package core

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Documents and graph nodes derive it from their content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	return IDFromBytes([]byte(text))
}

// IDFromBytes generates a deterministic ID from raw bytes, e.g. an uploaded file.
func IDFromBytes(data []byte) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(data)
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ParseID parses the decimal form of an ID.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a document id", ErrInvalidDocument, s)
	}
	return ID(v), nil
}

// String returns the decimal form of the ID.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// EnhancementLevel names the preprocessing intensity requested from the vision model.
type EnhancementLevel string

const (
	EnhancementLight      EnhancementLevel = "light"
	EnhancementMedium     EnhancementLevel = "medium"
	EnhancementAggressive EnhancementLevel = "aggressive"
)

// DefaultDomainHint is sent to the vision model unless a document overrides it.
const DefaultDomainHint = "historical medical and spine-science literature"

// Settings holds the per-document processing configuration.
// Upload overrides replace individual non-zero fields of the pipeline defaults.
type Settings struct {
	ChunkSize   int
	Overlap     int
	Enhancement EnhancementLevel
	DPI         int
	DomainHint  string
}

// DefaultSettings returns the settings used when an upload supplies no overrides.
func DefaultSettings() Settings {
	return Settings{
		ChunkSize:   512,
		Overlap:     50,
		Enhancement: EnhancementMedium,
		DPI:         300,
		DomainHint:  DefaultDomainHint,
	}
}

// Merge returns s with every non-zero field of overrides applied.
func (s Settings) Merge(overrides Settings) Settings {
	if overrides.ChunkSize != 0 {
		s.ChunkSize = overrides.ChunkSize
	}
	if overrides.Overlap != 0 {
		s.Overlap = overrides.Overlap
	}
	if overrides.Enhancement != "" {
		s.Enhancement = overrides.Enhancement
	}
	if overrides.DPI != 0 {
		s.DPI = overrides.DPI
	}
	if overrides.DomainHint != "" {
		s.DomainHint = overrides.DomainHint
	}
	return s
}

// PageStatus tracks OCR progress for a single page.
type PageStatus int

const (
	// PagePending means the page has not been through OCR; its text is null.
	PagePending PageStatus = iota + 1
	// PageExtracted means OCR succeeded with acceptable confidence.
	PageExtracted
	// PageLowConfidence means OCR succeeded below the confidence floor.
	PageLowConfidence
)

func (s PageStatus) String() string {
	switch s {
	case PagePending:
		return "pending"
	case PageExtracted:
		return "extracted"
	case PageLowConfidence:
		return "low_confidence"
	default:
		return fmt.Sprintf("page_status(%d)", int(s))
	}
}

// Page is a single scanned page of a Document.
type Page struct {
	Index      int        // 0-based position in the document
	ImageRef   string     // Blob store reference of the page image
	MIMEType   string     // Media type of the page image
	Text       string     // Extracted text, meaningful once Status is not PagePending
	Confidence float64    // OCR confidence in [0, 1]
	Status     PageStatus // Per-page processing status
}

// HasText reports whether OCR has produced text for the page.
func (p *Page) HasText() bool {
	return p.Status == PageExtracted || p.Status == PageLowConfidence
}

// Warning is a non-fatal issue recorded against a document.
type Warning struct {
	Stage   Stage
	Code    string
	Page    int // -1 when the warning is not page specific
	Message string
}

// Warning codes.
const (
	WarningLowConfidence = "low_confidence"
	WarningEmptyText     = "empty_text"
	WarningDroppedNodes  = "dropped_nodes"
	WarningDroppedEdges  = "dropped_edges"
)

// Artifact is a reference to something a stage produced for a document.
type Artifact struct {
	Kind      string
	Ref       string
	CreatedAt time.Time
}

// Artifact kinds.
const (
	ArtifactSource = "source"
	ArtifactChunks = "chunks"
	ArtifactIndex  = "vector_index"
	ArtifactGraph  = "graph"
)

// Failure describes why a document is FAILED.
type Failure struct {
	Stage  Stage
	Class  ErrorClass
	Detail string
	At     time.Time
}

// StageCounters counts retries requested per stage.
type StageCounters struct {
	OCR      int
	Indexing int
	Graph    int
}

// Get returns the counter for the given stage.
func (c StageCounters) Get(stage Stage) int {
	switch stage {
	case StageOCR:
		return c.OCR
	case StageIndexing:
		return c.Indexing
	case StageGraph:
		return c.Graph
	}
	return 0
}

// Increment bumps the counter for the given stage.
func (c *StageCounters) Increment(stage Stage) {
	switch stage {
	case StageOCR:
		c.OCR++
	case StageIndexing:
		c.Indexing++
	case StageGraph:
		c.Graph++
	}
}

// Document is an uploaded file moving through the processing pipeline.
// It is owned by the document repository; status only changes through
// compare-and-swap updates.
type Document struct {
	Id         ID
	FileName   string
	Title      string
	UploadedAt time.Time
	UpdatedAt  time.Time
	Status     Status
	Settings   Settings
	Pages      []Page
	Failure    *Failure // Set while the document is FAILED
	Retries    StageCounters
	Warnings   []Warning
	Artifacts  []Artifact
	Lease      *Lease // Set while a stage run holds the document
}

// Lease records which stage run owns an in-progress document. The holder
// renews Heartbeat while it works; a lease whose heartbeat is older than
// the lease timeout belongs to a run that died.
type Lease struct {
	Token     string
	Heartbeat time.Time
}

// HeldBy reports whether the document is leased to the run with token.
func (d *Document) HeldBy(token string) bool {
	return d.Lease != nil && d.Lease.Token == token
}

// LeaseExpired reports whether no live run holds the document at now.
// A document without a lease is expired.
func (d *Document) LeaseExpired(now time.Time, timeout time.Duration) bool {
	return d.Lease == nil || now.Sub(d.Lease.Heartbeat) >= timeout
}

// ChunkID identifies a chunk deterministically by document and ordinal.
type ChunkID string

// NewChunkID builds the identifier of the ordinal-th chunk of a document.
func NewChunkID(documentID ID, ordinal int) ChunkID {
	return ChunkID(fmt.Sprintf("%d-%d", documentID, ordinal))
}

// Parse splits a ChunkID into its document ID and ordinal.
func (c ChunkID) Parse() (ID, int, error) {
	docPart, ordPart, ok := strings.Cut(string(c), "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: malformed chunk id %q", ErrNotFound, c)
	}
	doc, err := strconv.ParseUint(docPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed chunk id %q", ErrNotFound, c)
	}
	ord, err := strconv.Atoi(ordPart)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed chunk id %q", ErrNotFound, c)
	}
	return ID(doc), ord, nil
}

// Chunk is a bounded token window of document text submitted to the vector index.
type Chunk struct {
	Id         ChunkID
	DocumentId ID
	Ordinal    int
	PageStart  int // First page (inclusive) the chunk draws text from
	PageEnd    int // Last page (inclusive)
	Start      int // Byte offset into the concatenated document text
	End        int
	TokenCount int
	Overlap    int // Tokens shared with the preceding chunk
	Text       string
	IndexRef   string // Empty until the vector index accepts the chunk
}

// Provenance records where a derived artifact came from.
type Provenance struct {
	DocumentId ID
	PageStart  int
	PageEnd    int
	Ref        string // Chunk id or section label
	Title      string // Title of the source document
	FileName   string
}

// Node properties attributing a node to one of its source documents.
const (
	PropDocumentID    = "document_id"
	PropDocumentTitle = "document_title"
	PropFileName      = "file_name"
)

// GraphNode is a typed clinical entity in the knowledge graph.
// Nodes are shared across documents and keep one provenance entry per document.
type GraphNode struct {
	Id         ID
	Type       NodeType
	Label      string // Normalized label
	Properties map[string]string
	Provenance []Provenance
}

// NodeID derives the stable identifier of a node from its type and normalized label.
func NodeID(nodeType NodeType, label string) ID {
	return IDFromContent("(" + string(nodeType) + "," + NormalizeLabel(label) + ")")
}

// HasProvenance reports whether the node carries provenance from the given document.
func (n *GraphNode) HasProvenance(documentID ID) bool {
	for _, p := range n.Provenance {
		if p.DocumentId == documentID {
			return true
		}
	}
	return false
}

// Attribute points the node's document properties at the source of p.
func (n *GraphNode) Attribute(p Provenance) {
	if n.Properties == nil {
		n.Properties = make(map[string]string, 3)
	}
	n.Properties[PropDocumentID] = p.DocumentId.String()
	n.Properties[PropDocumentTitle] = p.Title
	n.Properties[PropFileName] = p.FileName
}

// GraphEdge is a typed relationship between two nodes, owned by one document.
type GraphEdge struct {
	Id         ID
	Source     ID
	Target     ID
	Relation   RelationType
	Directed   bool
	Properties map[string]string
	Provenance Provenance
}

// EdgeID derives the identifier of an edge within a document.
func EdgeID(documentID, source ID, relation RelationType, target ID) ID {
	return IDFromContent(fmt.Sprintf("%d|%d|%s|%d", documentID, source, relation, target))
}

// IndexEntry is a vector index record for one chunk.
type IndexEntry struct {
	ChunkId    ChunkID
	DocumentId ID
	Text       string
	Vector     []float32
	UpdatedAt  time.Time
}

// IndexHit is a single vector index query result.
type IndexHit struct {
	ChunkId    ChunkID
	DocumentId ID
	Score      float32
}
