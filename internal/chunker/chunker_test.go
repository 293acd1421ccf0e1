package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberedText builds a plain-text document of exactly n bytes out of
// unique numbered sentences, so every substring occurs once.
func numberedText(n int) string {
	var b strings.Builder
	for i := 1; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence %04d explores one more oddly specific topic today. ", i)
	}
	return b.String()[:n]
}

func TestSplitShortInputProducesNoChunks(t *testing.T) {
	chunks := Split("too short", Options{MaxChunkSize: 2000, Overlap: 200, MinChunkSize: 100})
	assert.Empty(t, chunks)
}

func TestSplitSingleChunk(t *testing.T) {
	text := strings.Repeat("A plain sentence about photosynthesis. ", 10)
	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitFiveThousandCharScenario(t *testing.T) {
	// 5000-char plain text, default sizing: expect exactly 3 chunks,
	// each bounded, chunks 2 and 3 opening with the previous chunk's
	// overlap tail. Sentences are numbered so substring checks are
	// unambiguous.
	text := numberedText(5000)

	opts := Options{MaxChunkSize: 2000, Overlap: 200, MinChunkSize: 100}
	chunks := Split(text, opts)

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), opts.MaxChunkSize, "chunk %d too large", i)
		assert.GreaterOrEqual(t, len(c), opts.MinChunkSize, "chunk %d too small", i)
	}

	// Chunks 2 and 3 begin with a suffix of the preceding chunk.
	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		overlapLen := 0
		for l := min(len(prev), len(cur)); l > 0; l-- {
			if strings.HasSuffix(prev, cur[:l]) {
				overlapLen = l
				break
			}
		}
		assert.Greater(t, overlapLen, 0, "chunk %d has no overlap with its predecessor", i)
		assert.LessOrEqual(t, overlapLen, opts.Overlap)
	}
}

func TestSplitCoversInputLosslessly(t *testing.T) {
	text := numberedText(6400)

	chunks := Split(text, Options{MaxChunkSize: 800, Overlap: 100, MinChunkSize: 50})
	require.NotEmpty(t, chunks)

	// Every chunk is a verbatim substring; successive chunks overlap or
	// abut, and together they cover the input end to end.
	end := 0
	for i, c := range chunks {
		pos := strings.Index(text[max(0, end-len(c)):], c)
		require.GreaterOrEqual(t, pos, 0, "chunk %d not found in input", i)
		start := max(0, end-len(c)) + pos
		require.LessOrEqual(t, start, end, "gap before chunk %d", i)
		if start+len(c) > end {
			end = start + len(c)
		}
	}
	assert.Equal(t, len(text), end, "chunks do not cover the full input")
}

func TestSplitPreserveParagraphs(t *testing.T) {
	para := strings.Repeat("Cell walls give plants structure. ", 6)
	text := para + "\n\n" + para + "\n\n" + para

	chunks := Split(text, Options{MaxChunkSize: 300, Overlap: 40, MinChunkSize: 50, PreserveParagraphs: true})
	require.NotEmpty(t, chunks)

	// Paragraph boundaries are kept intact inside chunks.
	joined := strings.Join(chunks, "")
	assert.Contains(t, joined, "\n\n")
}

func TestSplitOversizedSentenceIsHardSliced(t *testing.T) {
	// A single run with no terminators must still be bounded.
	text := strings.Repeat("x", 5000)
	chunks := Split(text, Options{MaxChunkSize: 1000, Overlap: 100, MinChunkSize: 100})

	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c), 1000+100, "chunk %d exceeds bound with tolerance", i)
	}
}

func TestOverlapTailTrimsToSentenceBoundary(t *testing.T) {
	chunk := "First part of the text. The tail sentence starts here and continues."
	tail := overlapTail(chunk, 60)

	assert.True(t, strings.HasPrefix(tail, "The tail sentence"), "got %q", tail)
	assert.True(t, strings.HasSuffix(chunk, tail))
}

func TestOverlapTailWithoutBoundaryKeepsWindow(t *testing.T) {
	chunk := "no terminators here just a plain run of words without any punctuation"
	tail := overlapTail(chunk, 20)

	assert.Len(t, tail, 20)
	assert.True(t, strings.HasSuffix(chunk, tail))
}

func TestApplyDefaults(t *testing.T) {
	var opts Options
	opts.ApplyDefaults()

	assert.Equal(t, 2000, opts.MaxChunkSize)
	assert.Equal(t, 200, opts.Overlap)
	assert.Equal(t, 100, opts.MinChunkSize)
}
