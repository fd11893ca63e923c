package core

import (
	"errors"
	"math"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Binary codecs for persisted records. Each exposes the MUS serializer
// method set: Size, Marshal and Unmarshal.
var (
	IDMUS         = codec[ID]{put: putID, get: getID}
	DocumentMUS   = codec[Document]{put: putDocument, get: getDocument}
	ChunkMUS      = codec[Chunk]{put: putChunk, get: getChunk}
	GraphNodeMUS  = codec[GraphNode]{put: putNode, get: getNode}
	GraphEdgeMUS  = codec[GraphEdge]{put: putEdge, get: getEdge}
	IndexEntryMUS = codec[IndexEntry]{put: putIndexEntry, get: getIndexEntry}
)

var errCorruptLength = errors.New("corrupt record: length out of range")

type codec[T any] struct {
	put func(s sink, v T)
	get func(r *reader) T
}

// Size returns the number of bytes Marshal will write for v.
func (c codec[T]) Size(v T) int {
	s := &sizer{}
	c.put(s, v)
	return s.n
}

// Marshal writes v into bs, which must hold at least Size(v) bytes.
func (c codec[T]) Marshal(v T, bs []byte) int {
	w := &writer{bs: bs}
	c.put(w, v)
	return w.n
}

// Unmarshal decodes a value from bs and returns it with the bytes consumed.
func (c codec[T]) Unmarshal(bs []byte) (T, int, error) {
	r := &reader{bs: bs}
	v := c.get(r)
	if r.err != nil {
		var zero T
		return zero, r.n, r.err
	}
	return v, r.n, nil
}

type sink interface {
	Int(v int)
	Int64(v int64)
	Uint64(v uint64)
	String(v string)
	Bool(v bool)
}

type sizer struct{ n int }

func (s *sizer) Int(v int)       { s.n += varint.Int.Size(v) }
func (s *sizer) Int64(v int64)   { s.n += varint.Int64.Size(v) }
func (s *sizer) Uint64(v uint64) { s.n += varint.Uint64.Size(v) }
func (s *sizer) String(v string) { s.n += ord.String.Size(v) }
func (s *sizer) Bool(v bool)     { s.n += ord.Bool.Size(v) }

type writer struct {
	bs []byte
	n  int
}

func (w *writer) Int(v int)       { w.n += varint.Int.Marshal(v, w.bs[w.n:]) }
func (w *writer) Int64(v int64)   { w.n += varint.Int64.Marshal(v, w.bs[w.n:]) }
func (w *writer) Uint64(v uint64) { w.n += varint.Uint64.Marshal(v, w.bs[w.n:]) }
func (w *writer) String(v string) { w.n += ord.String.Marshal(v, w.bs[w.n:]) }
func (w *writer) Bool(v bool)     { w.n += ord.Bool.Marshal(v, w.bs[w.n:]) }

// reader decodes sequentially and latches the first error; later reads
// return zero values.
type reader struct {
	bs  []byte
	n   int
	err error
}

func (r *reader) Int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) Int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) String() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) Bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs[r.n:])
	r.n += n
	r.err = err
	return v
}

// count reads a collection length and rejects values that cannot fit in
// the remaining input.
func (r *reader) count() int {
	c := r.Int()
	if r.err == nil && (c < 0 || c > len(r.bs)-r.n) {
		r.err = errCorruptLength
		return 0
	}
	return c
}

// Shared field encoders

func putID(s sink, v ID) { s.Uint64(uint64(v)) }
func getID(r *reader) ID { return ID(r.Uint64()) }

func putFloat64(s sink, v float64) { s.Uint64(math.Float64bits(v)) }
func getFloat64(r *reader) float64 { return math.Float64frombits(r.Uint64()) }

// Timestamps are stored as Unix microseconds.
func putTime(s sink, t time.Time) { s.Int64(t.UnixMicro()) }
func getTime(r *reader) time.Time { return time.UnixMicro(r.Int64()).UTC() }

func putStringMap(s sink, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	s.Int(len(keys))
	for _, k := range keys {
		s.String(k)
		s.String(m[k])
	}
}

func getStringMap(r *reader) map[string]string {
	n := r.count()
	if n == 0 {
		return nil
	}
	m := make(map[string]string, n)
	for i := 0; i < n && r.err == nil; i++ {
		k := r.String()
		m[k] = r.String()
	}
	return m
}

func putVector(s sink, v []float32) {
	s.Int(len(v))
	for _, f := range v {
		s.Uint64(uint64(math.Float32bits(f)))
	}
}

func getVector(r *reader) []float32 {
	n := r.count()
	if n == 0 {
		return nil
	}
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(uint32(r.Uint64()))
	}
	return v
}

func putProvenance(s sink, p Provenance) {
	putID(s, p.DocumentId)
	s.Int(p.PageStart)
	s.Int(p.PageEnd)
	s.String(p.Ref)
	s.String(p.Title)
	s.String(p.FileName)
}

func getProvenance(r *reader) Provenance {
	return Provenance{
		DocumentId: getID(r),
		PageStart:  r.Int(),
		PageEnd:    r.Int(),
		Ref:        r.String(),
		Title:      r.String(),
		FileName:   r.String(),
	}
}

// Document

func putDocument(s sink, d Document) {
	putID(s, d.Id)
	s.String(d.FileName)
	s.String(d.Title)
	putTime(s, d.UploadedAt)
	putTime(s, d.UpdatedAt)
	s.Int(int(d.Status))

	s.Int(d.Settings.ChunkSize)
	s.Int(d.Settings.Overlap)
	s.String(string(d.Settings.Enhancement))
	s.Int(d.Settings.DPI)
	s.String(d.Settings.DomainHint)

	s.Int(len(d.Pages))
	for _, p := range d.Pages {
		s.Int(p.Index)
		s.String(p.ImageRef)
		s.String(p.MIMEType)
		s.String(p.Text)
		putFloat64(s, p.Confidence)
		s.Int(int(p.Status))
	}

	s.Bool(d.Failure != nil)
	if d.Failure != nil {
		s.String(string(d.Failure.Stage))
		s.String(string(d.Failure.Class))
		s.String(d.Failure.Detail)
		putTime(s, d.Failure.At)
	}

	s.Int(d.Retries.OCR)
	s.Int(d.Retries.Indexing)
	s.Int(d.Retries.Graph)

	s.Int(len(d.Warnings))
	for _, w := range d.Warnings {
		s.String(string(w.Stage))
		s.String(w.Code)
		s.Int(w.Page)
		s.String(w.Message)
	}

	s.Int(len(d.Artifacts))
	for _, a := range d.Artifacts {
		s.String(a.Kind)
		s.String(a.Ref)
		putTime(s, a.CreatedAt)
	}

	s.Bool(d.Lease != nil)
	if d.Lease != nil {
		s.String(d.Lease.Token)
		putTime(s, d.Lease.Heartbeat)
	}
}

func getDocument(r *reader) Document {
	var d Document
	d.Id = getID(r)
	d.FileName = r.String()
	d.Title = r.String()
	d.UploadedAt = getTime(r)
	d.UpdatedAt = getTime(r)
	d.Status = Status(r.Int())

	d.Settings.ChunkSize = r.Int()
	d.Settings.Overlap = r.Int()
	d.Settings.Enhancement = EnhancementLevel(r.String())
	d.Settings.DPI = r.Int()
	d.Settings.DomainHint = r.String()

	if n := r.count(); n > 0 {
		d.Pages = make([]Page, n)
		for i := range d.Pages {
			d.Pages[i] = Page{
				Index:      r.Int(),
				ImageRef:   r.String(),
				MIMEType:   r.String(),
				Text:       r.String(),
				Confidence: getFloat64(r),
				Status:     PageStatus(r.Int()),
			}
		}
	}

	if r.Bool() {
		d.Failure = &Failure{
			Stage:  Stage(r.String()),
			Class:  ErrorClass(r.String()),
			Detail: r.String(),
			At:     getTime(r),
		}
	}

	d.Retries.OCR = r.Int()
	d.Retries.Indexing = r.Int()
	d.Retries.Graph = r.Int()

	if n := r.count(); n > 0 {
		d.Warnings = make([]Warning, n)
		for i := range d.Warnings {
			d.Warnings[i] = Warning{
				Stage:   Stage(r.String()),
				Code:    r.String(),
				Page:    r.Int(),
				Message: r.String(),
			}
		}
	}

	if n := r.count(); n > 0 {
		d.Artifacts = make([]Artifact, n)
		for i := range d.Artifacts {
			d.Artifacts[i] = Artifact{
				Kind:      r.String(),
				Ref:       r.String(),
				CreatedAt: getTime(r),
			}
		}
	}

	if r.Bool() {
		d.Lease = &Lease{
			Token:     r.String(),
			Heartbeat: getTime(r),
		}
	}
	return d
}

// Chunk

func putChunk(s sink, c Chunk) {
	s.String(string(c.Id))
	putID(s, c.DocumentId)
	s.Int(c.Ordinal)
	s.Int(c.PageStart)
	s.Int(c.PageEnd)
	s.Int(c.Start)
	s.Int(c.End)
	s.Int(c.TokenCount)
	s.Int(c.Overlap)
	s.String(c.Text)
	s.String(c.IndexRef)
}

func getChunk(r *reader) Chunk {
	return Chunk{
		Id:         ChunkID(r.String()),
		DocumentId: getID(r),
		Ordinal:    r.Int(),
		PageStart:  r.Int(),
		PageEnd:    r.Int(),
		Start:      r.Int(),
		End:        r.Int(),
		TokenCount: r.Int(),
		Overlap:    r.Int(),
		Text:       r.String(),
		IndexRef:   r.String(),
	}
}

// Graph

func putNode(s sink, n GraphNode) {
	putID(s, n.Id)
	s.String(string(n.Type))
	s.String(n.Label)
	putStringMap(s, n.Properties)
	s.Int(len(n.Provenance))
	for _, p := range n.Provenance {
		putProvenance(s, p)
	}
}

func getNode(r *reader) GraphNode {
	n := GraphNode{
		Id:         getID(r),
		Type:       NodeType(r.String()),
		Label:      r.String(),
		Properties: getStringMap(r),
	}
	if c := r.count(); c > 0 {
		n.Provenance = make([]Provenance, c)
		for i := range n.Provenance {
			n.Provenance[i] = getProvenance(r)
		}
	}
	return n
}

func putEdge(s sink, e GraphEdge) {
	putID(s, e.Id)
	putID(s, e.Source)
	putID(s, e.Target)
	s.String(string(e.Relation))
	s.Bool(e.Directed)
	putStringMap(s, e.Properties)
	putProvenance(s, e.Provenance)
}

func getEdge(r *reader) GraphEdge {
	return GraphEdge{
		Id:         getID(r),
		Source:     getID(r),
		Target:     getID(r),
		Relation:   RelationType(r.String()),
		Directed:   r.Bool(),
		Properties: getStringMap(r),
		Provenance: getProvenance(r),
	}
}

// Vector index

func putIndexEntry(s sink, e IndexEntry) {
	s.String(string(e.ChunkId))
	putID(s, e.DocumentId)
	s.String(e.Text)
	putVector(s, e.Vector)
	putTime(s, e.UpdatedAt)
}

func getIndexEntry(r *reader) IndexEntry {
	return IndexEntry{
		ChunkId:    ChunkID(r.String()),
		DocumentId: getID(r),
		Text:       r.String(),
		Vector:     getVector(r),
		UpdatedAt:  getTime(r),
	}
}
