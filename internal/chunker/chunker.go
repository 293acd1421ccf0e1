// Package chunker splits raw document text into overlapping passages
// sized for embedding and retrieval.
//
// Splitting is pure string work: no I/O, no allocation beyond the
// returned slice. Chunks are verbatim substrings of the input, so the
// original text can be reconstructed by dropping each chunk's overlap
// prefix.
package chunker

import "strings"

// Options controls how text is split.
type Options struct {
	// MaxChunkSize is the target upper bound on chunk length in bytes.
	// A chunk may exceed it only when a single segment cannot be
	// flushed without dropping text.
	MaxChunkSize int

	// Overlap is the number of trailing bytes of a flushed chunk that
	// seed the next chunk.
	Overlap int

	// MinChunkSize is the minimum length a chunk must have to be
	// emitted. Trailing text shorter than this is dropped.
	MinChunkSize int

	// PreserveParagraphs splits on blank-line boundaries before
	// falling back to sentences. Useful for PDF-derived text.
	PreserveParagraphs bool
}

// DefaultOptions returns the splitting parameters used for uploads.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: 2000,
		Overlap:      200,
		MinChunkSize: 100,
	}
}

// ApplyDefaults fills unset fields from DefaultOptions.
func (o *Options) ApplyDefaults() {
	def := DefaultOptions()
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = def.MaxChunkSize
	}
	if o.Overlap < 0 {
		o.Overlap = def.Overlap
	}
	if o.MinChunkSize <= 0 {
		o.MinChunkSize = def.MinChunkSize
	}
	if o.Overlap >= o.MaxChunkSize {
		o.Overlap = def.Overlap
	}
}

// Split breaks text into ordered, overlapping chunks.
//
// Segments (paragraphs or sentences) are greedily accumulated into a
// running chunk. When the next segment would push the chunk past
// MaxChunkSize the chunk is flushed and the next one is seeded with
// the flushed chunk's overlap tail, trimmed forward to the nearest
// sentence boundary inside the overlap window. Input shorter than
// MinChunkSize yields no chunks.
func Split(text string, opts Options) []string {
	opts.ApplyDefaults()

	if len(text) < opts.MinChunkSize {
		return nil
	}

	segments := segment(text, opts)
	if len(segments) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, seg := range segments {
		if current.Len() > 0 && current.Len()+len(seg) > opts.MaxChunkSize {
			// Flush only when the accumulated chunk is large enough to
			// stand alone; otherwise keep growing past the bound rather
			// than emit an undersized fragment.
			if current.Len() >= opts.MinChunkSize {
				chunk := current.String()
				chunks = append(chunks, chunk)
				current.Reset()
				current.WriteString(overlapTail(chunk, opts.Overlap))
			}
		}
		current.WriteString(seg)
	}

	if current.Len() >= opts.MinChunkSize {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// segment splits text into raw segments that retain their original
// whitespace, so that concatenating them reproduces the input exactly.
func segment(text string, opts Options) []string {
	if !opts.PreserveParagraphs {
		return splitSentences(text, opts.MaxChunkSize)
	}

	var segments []string
	for _, para := range splitParagraphs(text) {
		if len(para) > opts.MaxChunkSize {
			segments = append(segments, splitSentences(para, opts.MaxChunkSize)...)
			continue
		}
		segments = append(segments, para)
	}
	return segments
}

// splitParagraphs cuts after each blank-line boundary, keeping the
// boundary bytes with the preceding paragraph.
func splitParagraphs(text string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if text[i] == '\n' && text[i+1] == '\n' {
			end := i + 2
			// Consume any further blank lines into the same boundary.
			for end < len(text) && text[end] == '\n' {
				end++
			}
			parts = append(parts, text[start:end])
			start = end
			i = end - 1
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// splitSentences cuts after sentence-terminal punctuation, keeping the
// terminator and any following whitespace with the sentence. Sentences
// longer than maxLen are hard-sliced.
func splitSentences(text string, maxLen int) []string {
	var parts []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}
		end := i + 1
		for end < len(text) && (text[end] == ' ' || text[end] == '\n' || text[end] == '\t' || text[end] == '\r') {
			end++
		}
		appendBounded(&parts, text[start:end], maxLen)
		start = end
		i = end - 1
	}
	if start < len(text) {
		appendBounded(&parts, text[start:], maxLen)
	}
	return parts
}

// appendBounded appends seg, hard-slicing it when it exceeds maxLen.
func appendBounded(parts *[]string, seg string, maxLen int) {
	for len(seg) > maxLen {
		*parts = append(*parts, seg[:maxLen])
		seg = seg[maxLen:]
	}
	if seg != "" {
		*parts = append(*parts, seg)
	}
}

// overlapTail returns the trailing overlap window of a flushed chunk,
// advanced to just past the first sentence boundary inside the window
// when one exists.
func overlapTail(chunk string, overlap int) string {
	if overlap <= 0 || len(chunk) == 0 {
		return ""
	}
	if overlap > len(chunk) {
		overlap = len(chunk)
	}
	tail := chunk[len(chunk)-overlap:]

	for i := 0; i < len(tail)-1; i++ {
		if isTerminator(tail[i]) && (tail[i+1] == ' ' || tail[i+1] == '\n') {
			trimmed := strings.TrimLeft(tail[i+1:], " \n\t\r")
			if trimmed != "" {
				return trimmed
			}
			return tail
		}
	}
	return tail
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}
