package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoderJoinsEventSplitAcrossReads(t *testing.T) {
	d := NewStreamDecoder(ExtractGeminiText)
	require.Empty(t, d.Feed([]byte(`data: {"candidates":[{"content":`)))
	require.Empty(t, d.Feed([]byte(`{"parts":[{"text":"a"},`)))
	require.Equal(t, []string{"abc"}, d.Feed([]byte(`{"text":"bc"}]}}]}`+"\n")))
	require.Empty(t, d.Flush())
}

func TestDecoderSkipsNonDataLinesAndSentinel(t *testing.T) {
	d := NewStreamDecoder(ExtractOpenAIText)
	input := ": keep-alive\n" +
		"event: message\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\r\n" +
		"\n" +
		"data:\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
		"data: [DONE]\n"
	require.Equal(t, []string{"Hel", "lo"}, d.Feed([]byte(input)))
}

func TestDecoderSkipsMalformedJSON(t *testing.T) {
	d := NewStreamDecoder(ExtractGeminiText)
	out := d.Feed([]byte("data: {not json\ndata: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"ok\"}]}}]}\n"))
	require.Equal(t, []string{"ok"}, out)
}

func TestDecoderSkipsEmptyText(t *testing.T) {
	d := NewStreamDecoder(ExtractGeminiText)
	require.Empty(t, d.Feed([]byte("data: {\"candidates\":[]}\ndata: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"\"}]}}]}\n")))
}

func TestDecoderFlushesUnterminatedLine(t *testing.T) {
	d := NewStreamDecoder(ExtractOpenAIText)
	require.Empty(t, d.Feed([]byte(`data: {"choices":[{"delta":{"content":"tail"}}]}`)))
	require.Equal(t, []string{"tail"}, d.Flush())
	require.Empty(t, d.Flush())
}
