package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIChatMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type openAIEmbedProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func (p *openAIEmbedProvider) Name() string {
	return "openai"
}

// Embed ignores the task type; the endpoint has no equivalent.
func (p *openAIEmbedProvider) Embed(ctx context.Context, req EmbedRequest) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/embeddings"
	data, err := json.Marshal(openAIEmbedRequest{
		Model:      req.Model,
		Input:      req.Text,
		Dimensions: req.Dimension,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("openai request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai response has no embeddings")
	}
	return out.Data[0].Embedding, nil
}

// chatStreamProvider talks to any OpenAI compatible chat completions API.
type chatStreamProvider struct {
	name    string
	apiKey  string
	baseURL string
	headers map[string]string
	client  *http.Client
}

func (p *chatStreamProvider) Name() string {
	return p.name
}

func (p *chatStreamProvider) Stream(ctx context.Context, model string, req StreamRequest) (*Stream, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	messages := make([]openAIChatMsg, 0, 2)
	if req.SystemInstruction != "" {
		messages = append(messages, openAIChatMsg{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, openAIChatMsg{Role: "user", Content: req.UserMessage})
	data, err := json.Marshal(openAIChatRequest{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return OpenStream(p.client, httpReq, ExtractOpenAIText)
}

func ExtractOpenAIText(payload []byte) (string, error) {
	var event openAIStreamEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", err
	}
	if len(event.Choices) == 0 {
		return "", nil
	}
	return event.Choices[0].Delta.Content, nil
}

func decodeOpenAIConfig(args interface{}) (*openAIConfig, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return cfg, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg, err := decodeOpenAIConfig(args)
	if err != nil {
		return nil, err
	}
	return &openAIEmbedProvider{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{},
	}, nil
}

func createOpenAIStreamFactory(args interface{}) (IStreamProvider, error) {
	cfg, err := decodeOpenAIConfig(args)
	if err != nil {
		return nil, err
	}
	return &chatStreamProvider{
		name:    "openai",
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client:  &http.Client{},
	}, nil
}

func init() {
	RegisterEmbed("openai", createOpenAIEmbedFactory)
	RegisterStream("openai", createOpenAIStreamFactory)
}
