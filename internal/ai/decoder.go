package ai

import (
	"bytes"
)

var (
	dataPrefix   = []byte("data:")
	doneSentinel = []byte("[DONE]")
)

// ExtractFunc pulls the text delta out of one event payload.
type ExtractFunc func(payload []byte) (string, error)

// StreamDecoder turns server-sent event bytes into text fragments. Bytes are
// buffered until a newline arrives, so an event split across reads is decoded
// once, when its line is complete.
type StreamDecoder struct {
	pending []byte
	extract ExtractFunc
}

func NewStreamDecoder(extract ExtractFunc) *StreamDecoder {
	return &StreamDecoder{extract: extract}
}

// Feed appends chunk and returns the fragments of every line it completed.
func (d *StreamDecoder) Feed(chunk []byte) []string {
	d.pending = append(d.pending, chunk...)
	var out []string
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		if frag, ok := d.decodeLine(d.pending[:idx]); ok {
			out = append(out, frag)
		}
		d.pending = d.pending[idx+1:]
	}
	if len(d.pending) == 0 {
		d.pending = nil
	} else {
		d.pending = append([]byte(nil), d.pending...)
	}
	return out
}

// Flush decodes whatever is left once the body has ended.
func (d *StreamDecoder) Flush() []string {
	rest := d.pending
	d.pending = nil
	var out []string
	for _, line := range bytes.Split(rest, []byte("\n")) {
		if frag, ok := d.decodeLine(line); ok {
			out = append(out, frag)
		}
	}
	return out
}

func (d *StreamDecoder) decodeLine(line []byte) (string, bool) {
	line = bytes.TrimRight(line, "\r")
	if !bytes.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := bytes.TrimSpace(line[len(dataPrefix):])
	if len(payload) == 0 || bytes.Equal(payload, doneSentinel) {
		return "", false
	}
	text, err := d.extract(payload)
	if err != nil || text == "" {
		return "", false
	}
	return text, true
}
