package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type geminiConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type geminiEmbedProvider struct {
	apiKey string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func (p *geminiEmbedProvider) Name() string {
	return "gemini"
}

func (p *geminiEmbedProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.clientErr
}

func (p *geminiEmbedProvider) Embed(ctx context.Context, req EmbedRequest) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &genai.EmbedContentConfig{}
	if req.TaskType != "" {
		config.TaskType = req.TaskType
	}
	if req.Dimension > 0 {
		dim := int32(req.Dimension)
		config.OutputDimensionality = &dim
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		req.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

type geminiStreamProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiStreamRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiStreamEvent struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *geminiStreamProvider) Name() string {
	return "gemini"
}

func (p *geminiStreamProvider) Stream(ctx context.Context, model string, req StreamRequest) (*Stream, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	body := geminiStreamRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.UserMessage}}}},
	}
	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(p.baseURL, "/"), url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)
	return OpenStream(p.client, httpReq, ExtractGeminiText)
}

// ExtractGeminiText joins the text parts of the first candidate.
func ExtractGeminiText(payload []byte) (string, error) {
	var event geminiStreamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", err
	}
	if len(event.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, part := range event.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func decodeGeminiConfig(args interface{}) (*geminiConfig, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	return cfg, nil
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg, err := decodeGeminiConfig(args)
	if err != nil {
		return nil, err
	}
	return &geminiEmbedProvider{apiKey: cfg.APIKey}, nil
}

func createGeminiStreamFactory(args interface{}) (IStreamProvider, error) {
	cfg, err := decodeGeminiConfig(args)
	if err != nil {
		return nil, err
	}
	return &geminiStreamProvider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{},
	}, nil
}

func init() {
	RegisterEmbed("gemini", createGeminiEmbedFactory)
	RegisterStream("gemini", createGeminiStreamFactory)
}
