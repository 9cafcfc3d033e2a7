package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
)

type fakeEmbedder struct {
	mu        sync.Mutex
	dim       int
	fail      map[string]bool
	short     map[string]bool
	delay     time.Duration
	taskTypes map[string]int
	calls     int
	inFlight  int
	maxFlight int
	events    []string
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, fail: map[string]bool{}, short: map[string]bool{}, taskTypes: map[string]int{}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.taskTypes[taskType]++
	f.events = append(f.events, "start:"+text)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.events = append(f.events, "end:"+text)
		f.mu.Unlock()
	}()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[text] {
		return nil, errors.New("embedding service unavailable")
	}
	if f.short[text] {
		return make([]float32, f.dim-1), nil
	}
	vec := make([]float32, f.dim)
	vec[0] = float32(len(text))
	return vec, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }

func (f *fakeEmbedder) recordSleep() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "sleep")
}

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]*model.Passage
	failAt  int
}

func (w *fakeWriter) InsertBatch(ctx context.Context, passages []*model.Passage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAt > 0 && len(w.batches)+1 == w.failAt {
		return errors.New("connection refused")
	}
	cp := make([]*model.Passage, len(passages))
	copy(cp, passages)
	w.batches = append(w.batches, cp)
	return nil
}

func (w *fakeWriter) all() []*model.Passage {
	var out []*model.Passage
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

type fakeSearcher struct {
	results []*model.RetrievedPassage
	err     error
	owner   string
	limit   int
	calls   int
}

func (s *fakeSearcher) Search(ctx context.Context, vector []float32, ownerID string, limit int) ([]*model.RetrievedPassage, error) {
	s.calls++
	s.owner = ownerID
	s.limit = limit
	return s.results, s.err
}

type fakeStreamer struct {
	body  string
	err   error
	calls int
	req   ai.StreamRequest
}

func (s *fakeStreamer) Stream(ctx context.Context, req ai.StreamRequest) (*ai.Stream, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return ai.NewStream(io.NopCloser(strings.NewReader(s.body)), ai.ExtractOpenAIText), nil
}

func sseBody(fragments ...string) string {
	var sb strings.Builder
	for _, f := range fragments {
		data, _ := json.Marshal(map[string]interface{}{
			"choices": []interface{}{map[string]interface{}{"delta": map[string]string{"content": f}}},
		})
		sb.WriteString("data: ")
		sb.Write(data)
		sb.WriteString("\n\n")
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}
