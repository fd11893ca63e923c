package chunker

import (
	"fmt"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/scriptorium/core"
)

// maxLookback caps how many tokens a window may give up to end on a sentence.
const maxLookback = 32

// Span is one window over the input text.
type Span struct {
	Ordinal    int
	Start      int // Byte offset of the first byte covered
	End        int // Byte offset one past the last byte covered
	TokenStart int // Index of the first token
	TokenEnd   int // Index one past the last token
	TokenCount int
	Overlap    int // Tokens shared with the previous span
}

// Text returns the slice of text covered by the span.
func (s Span) Text(text string) string {
	return text[s.Start:s.End]
}

// Chunker produces overlapping token windows.
type Chunker struct {
	size     int
	overlap  int
	lookback int
}

// New creates a Chunker. Both values must be positive and overlap must be
// smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d and overlap %d must be positive", core.ErrInvalidConfig, size, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", core.ErrInvalidConfig, overlap, size)
	}
	// A shortened window must still extend past the overlap or chunking
	// would stop advancing.
	lookback := min(size/8, maxLookback, size-overlap-1)
	return &Chunker{size: size, overlap: overlap, lookback: max(lookback, 0)}, nil
}

// Size returns the maximum tokens per span.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the tokens shared by consecutive spans.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns a lazy sequence of spans covering text. Text without any
// tokens yields nothing. The sequence can be ranged over more than once.
func (c *Chunker) Chunks(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		tokens := tokenize(text)
		n := len(tokens)
		if n == 0 {
			return
		}

		start, ordinal, overlap := 0, 0, 0
		for {
			end := c.cut(text, tokens, start)

			span := Span{
				Ordinal:    ordinal,
				Start:      tokens[start][0],
				End:        tokens[end-1][1],
				TokenStart: start,
				TokenEnd:   end,
				TokenCount: end - start,
				Overlap:    overlap,
			}
			if ordinal == 0 {
				span.Start = 0
			}
			if end == n {
				span.End = len(text)
			}
			if !yield(span) || end == n {
				return
			}

			start = end - c.overlap
			overlap = c.overlap
			ordinal++
		}
	}
}

// Collect drains Chunks into a slice.
func (c *Chunker) Collect(text string) []Span {
	var spans []Span
	for s := range c.Chunks(text) {
		spans = append(spans, s)
	}
	return spans
}

// cut picks the exclusive end token of the window that starts at start.
func (c *Chunker) cut(text string, tokens [][2]int, start int) int {
	hard := start + c.size
	if hard >= len(tokens) {
		return len(tokens)
	}
	for end := hard; end > hard-c.lookback; end-- {
		if endsSentence(text[tokens[end-1][0]:tokens[end-1][1]]) {
			return end
		}
	}
	return hard
}

// CountTokens returns the number of tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Reconstruct rebuilds the original text from spans by dropping the declared
// overlap tokens at the head of every span after the first.
func Reconstruct(text string, spans []Span) string {
	var b strings.Builder
	for i, s := range spans {
		piece := s.Text(text)
		if i > 0 {
			piece = piece[skipTokens(piece, s.Overlap):]
		}
		b.WriteString(piece)
	}
	return b.String()
}

// tokenize returns the byte range of every whitespace-delimited token.
func tokenize(text string) [][2]int {
	var tokens [][2]int
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, [2]int{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, [2]int{start, len(text)})
	}
	return tokens
}

// skipTokens returns the byte offset just past the first n tokens of s.
func skipTokens(s string, n int) int {
	offset := 0
	for ; n > 0; n-- {
		for offset < len(s) {
			r, size := utf8.DecodeRuneInString(s[offset:])
			if !unicode.IsSpace(r) {
				break
			}
			offset += size
		}
		for offset < len(s) {
			r, size := utf8.DecodeRuneInString(s[offset:])
			if unicode.IsSpace(r) {
				break
			}
			offset += size
		}
	}
	return offset
}

func endsSentence(token string) bool {
	token = strings.TrimRight(token, "\"')]")
	if token == "" {
		return false
	}
	switch token[len(token)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
