package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const (
	streamReadSize    = 4096
	maxErrorBodyBytes = 4096
)

type StreamState int

const (
	StateIdle StreamState = iota
	StateRequestSent
	StateStreaming
	StateCompleted
	StateFailed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestSent:
		return "request_sent"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	errStreamClosed  = errors.New("stream closed")
	errStreamNotOpen = errors.New("stream not open")
)

// Stream is one in-flight generation. It has a single consumer.
type Stream struct {
	state   StreamState
	body    io.ReadCloser
	decoder *StreamDecoder
	pending []string
	buf     []byte
	err     error
}

// OpenStream sends req and hands back a Stream once the provider answered
// with a success status. A non-2xx status is reported as ErrUpstream without
// touching the event decoder.
func OpenStream(client *http.Client, req *http.Request, extract ExtractFunc) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}
	s := NewStream(nil, extract)
	s.state = StateRequestSent
	resp, err := client.Do(req)
	if err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("%w: %v", appErr.ErrUpstream, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		s.state = StateFailed
		return nil, fmt.Errorf("%w: %s: %s", appErr.ErrUpstream, resp.Status, strings.TrimSpace(string(body)))
	}
	s.body = resp.Body
	s.state = StateStreaming
	return s, nil
}

// NewStream wraps an already open event body.
func NewStream(body io.ReadCloser, extract ExtractFunc) *Stream {
	s := &Stream{
		state:   StateIdle,
		body:    body,
		decoder: NewStreamDecoder(extract),
		buf:     make([]byte, streamReadSize),
	}
	if body != nil {
		s.state = StateStreaming
	}
	return s
}

func (s *Stream) State() StreamState {
	return s.state
}

// Recv returns the next text fragment. It returns io.EOF once the provider
// finished, ErrStreamTransport when the connection broke mid-stream, or the
// context error when ctx is done. Fragments decoded before a failure are
// still handed out first.
func (s *Stream) Recv(ctx context.Context) (string, error) {
	for {
		if len(s.pending) > 0 {
			frag := s.pending[0]
			s.pending = s.pending[1:]
			return frag, nil
		}
		switch s.state {
		case StateIdle, StateRequestSent:
			return "", errStreamNotOpen
		case StateCompleted:
			return "", io.EOF
		case StateFailed:
			return "", s.err
		}
		if err := ctx.Err(); err != nil {
			s.fail(err)
			continue
		}
		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.pending = append(s.pending, s.decoder.Feed(s.buf[:n])...)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			s.pending = append(s.pending, s.decoder.Flush()...)
			s.state = StateCompleted
			_ = s.body.Close()
		case ctx.Err() != nil:
			s.fail(ctx.Err())
		default:
			s.fail(fmt.Errorf("%w: %v", appErr.ErrStreamTransport, err))
		}
	}
}

func (s *Stream) fail(err error) {
	s.state = StateFailed
	s.err = err
	_ = s.body.Close()
}

// Close releases the connection. Recv after Close reports the stream as
// failed unless it had already completed.
func (s *Stream) Close() error {
	if s.state == StateStreaming {
		s.fail(errStreamClosed)
		s.pending = nil
	}
	return nil
}
