package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
	TaskTypeQuery    = "RETRIEVAL_QUERY"
)

var ErrUnavailable = errors.New("ai provider unavailable")

type EmbedRequest struct {
	Model     string
	Text      string
	TaskType  string
	Dimension int
}

// StreamRequest is the two part prompt sent to a generation model.
type StreamRequest struct {
	SystemInstruction string
	UserMessage       string
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, req EmbedRequest) ([]float32, error)
}

type IStreamProvider interface {
	Name() string
	Stream(ctx context.Context, model string, req StreamRequest) (*Stream, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
	Dimension() int
}

type IStreamer interface {
	Stream(ctx context.Context, req StreamRequest) (*Stream, error)
}

type embedder struct {
	provider  IEmbedProvider
	model     string
	dimension int
}

func NewEmbedder(p IEmbedProvider, model string, dimension int) IEmbedder {
	return &embedder{provider: p, model: model, dimension: dimension}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, EmbedRequest{
		Model:     e.model,
		Text:      text,
		TaskType:  taskType,
		Dimension: e.dimension,
	})
}

func (e *embedder) ModelName() string {
	return e.model
}

func (e *embedder) Dimension() int {
	return e.dimension
}

type streamer struct {
	provider IStreamProvider
	model    string
}

func NewStreamer(p IStreamProvider, model string) IStreamer {
	return &streamer{provider: p, model: model}
}

func (s *streamer) Stream(ctx context.Context, req StreamRequest) (*Stream, error) {
	return s.provider.Stream(ctx, s.model, req)
}

type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)
type StreamProviderFactory func(args interface{}) (IStreamProvider, error)

var (
	embedRegistry  = map[string]EmbedProviderFactory{}
	streamRegistry = map[string]StreamProviderFactory{}
)

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	embedRegistry[key] = factory
}

func RegisterStream(name string, factory StreamProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	streamRegistry[key] = factory
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("ai.embed provider is required")
	}
	factory := embedRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func NewStreamProvider(name string, args interface{}) (IStreamProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("ai.generate provider is required")
	}
	factory := streamRegistry[key]
	if factory == nil {
		return nil, fmt.Errorf("unsupported stream provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
