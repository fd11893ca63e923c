// Package chunker splits normalized document text into overlapping token
// windows for the vector index.
//
// A token is a maximal run of non-whitespace characters. Every window holds
// at most the configured number of tokens, and every window after the first
// starts exactly Overlap tokens before its predecessor ends, so the spans
// cover the input with no gaps:
//
//	c, err := chunker.New(512, 50)
//	if err != nil {
//		return err
//	}
//	for span := range c.Chunks(text) {
//		fmt.Println(span.Ordinal, span.TokenCount, span.Text(text))
//	}
//
// Window ends prefer a sentence boundary (a token ending in '.', '!' or '?')
// found within a short lookback before the hard token cut.
package chunker
