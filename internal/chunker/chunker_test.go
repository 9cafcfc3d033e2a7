package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkSingleShortSection(t *testing.T) {
	doc := Normalize("# Intro\n\nThe Roman Empire began in 27 BC.")
	passages := New(DefaultConfig()).Chunk(context.Background(), doc, "rome.md", nil)
	require.Len(t, passages, 1)
	require.Equal(t, "The Roman Empire began in 27 BC.", passages[0].Content)
	require.Equal(t, "Intro", passages[0].Title)
	require.Equal(t, "rome.md", passages[0].Source)
	require.Equal(t, 1, passages[0].SequenceIndex)
}

func TestChunkPreambleHasEmptyTitle(t *testing.T) {
	doc := "Opening words\nsecond line\n## Part one\nbody one"
	passages := New(DefaultConfig()).Chunk(context.Background(), doc, "a.md", nil)
	require.Len(t, passages, 2)
	require.Equal(t, "", passages[0].Title)
	require.Equal(t, "Opening words\nsecond line", passages[0].Content)
	require.Equal(t, "Part one", passages[1].Title)
	require.Equal(t, "body one", passages[1].Content)
}

func TestChunkSkipsEmptySections(t *testing.T) {
	doc := "# Empty\n# Also empty\n\n### Filled\ntext\n#### Not a split\nmore"
	passages := New(DefaultConfig()).Chunk(context.Background(), doc, "a.md", nil)
	require.Len(t, passages, 1)
	require.Equal(t, "Filled", passages[0].Title)
	require.Equal(t, "text\n#### Not a split\nmore", passages[0].Content)
}

func TestChunkHeadingMarkupIsPlainText(t *testing.T) {
	doc := "## The **Punic** [Wars](http://example.com)\nCarthage and Rome."
	passages := New(DefaultConfig()).Chunk(context.Background(), doc, "a.md", nil)
	require.Len(t, passages, 1)
	require.Equal(t, "The Punic Wars", passages[0].Title)
}

func TestChunkThresholdIsStrict(t *testing.T) {
	c := New(DefaultConfig())
	atLimit := strings.Repeat("a", DefaultMaxTokens*charsPerToken)
	require.Equal(t, DefaultMaxTokens, EstimateTokens(atLimit))
	passages := c.Chunk(context.Background(), "# T\n"+atLimit, "a.md", nil)
	require.Len(t, passages, 1)
	require.Equal(t, atLimit, passages[0].Content)

	overLimit := strings.Repeat("a", DefaultMaxTokens*charsPerToken+1)
	require.Equal(t, DefaultMaxTokens+1, EstimateTokens(overLimit))
	passages = c.Chunk(context.Background(), "# T\n"+overLimit, "a.md", nil)
	require.Len(t, passages, 2)
	for _, p := range passages {
		require.Equal(t, "T", p.Title)
		require.LessOrEqual(t, len(p.Content), DefaultWindowSize)
	}
}

func TestChunkSequenceIsContiguousAcrossSections(t *testing.T) {
	long := strings.Repeat("word ", 1500)
	doc := "preamble\n# A\nshort\n## B\n" + long + "\n### C\nlast"
	passages := New(DefaultConfig()).Chunk(context.Background(), Normalize(doc), "a.md", nil)
	require.Greater(t, len(passages), 3)
	for i, p := range passages {
		require.Equal(t, i+1, p.SequenceIndex)
		require.NotEmpty(t, strings.TrimSpace(p.Content))
	}
}

func TestChunkSequenceIsOwnedPerCall(t *testing.T) {
	c := New(DefaultConfig())
	first := c.Chunk(context.Background(), "# A\none\n# B\ntwo", "a.md", nil)
	second := c.Chunk(context.Background(), "# A\none", "b.md", nil)
	require.Equal(t, 2, first[1].SequenceIndex)
	require.Equal(t, 1, second[0].SequenceIndex)

	seq := NewSequence()
	c.Chunk(context.Background(), "# A\none\n# B\ntwo", "a.md", seq)
	require.Equal(t, 3, seq.Next())
}

func TestSlidingWindowsCount(t *testing.T) {
	const size, overlap = 2000, 300
	step := size - overlap
	for _, l := range []int{1, step - 1, step, step + 1, size, 2*step + 5, 10000} {
		body := strings.Repeat("x", l)
		windows := SlidingWindows(body, size, overlap)
		require.Len(t, windows, (l+step-1)/step, "length %d", l)

		covered := make([]bool, l)
		for i, w := range windows {
			start := i * step
			require.Equal(t, body[start:start+len(w)], w)
			for j := start; j < start+len(w); j++ {
				covered[j] = true
			}
		}
		for j, ok := range covered {
			require.True(t, ok, "offset %d not covered for length %d", j, l)
		}
	}
}

func TestSlidingWindowsKeepsShortTail(t *testing.T) {
	windows := SlidingWindows(strings.Repeat("y", 3500), 2000, 300)
	require.Len(t, windows, 3)
	require.Len(t, windows[0], 2000)
	require.Len(t, windows[1], 1800)
	require.Len(t, windows[2], 100)
}

func TestSlidingWindowsMultibyte(t *testing.T) {
	body := strings.Repeat("é", 10)
	windows := SlidingWindows(body, 4, 1)
	require.Len(t, windows, 4)
	require.Equal(t, "éééé", windows[0])
	require.Equal(t, "é", windows[3])
}
