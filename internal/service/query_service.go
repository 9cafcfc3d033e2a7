package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/model"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

const (
	DefaultTopK       = 3
	snippetRunes      = 200
	untitledDocument  = "Untitled document"
	NoDocumentsAnswer = "I could not find any relevant documents to answer your question. Try uploading documents that cover this topic."
)

const DefaultSystemRole = `You are a knowledgeable research assistant.

Your job is to help users understand the material in their documents using ONLY the documents provided in the context section.`

const groundingRules = `1. Answer questions strictly using the information in the provided context documents
2. Do NOT use outside knowledge or assumptions
3. If the context does not contain enough information:
   - Clearly state what can be answered
   - Clearly state what is missing
4. Never invent dates, events, people, motivations, or outcomes
5. Always cite where the information comes from (example: "According to the Roman Empire Overview document...")
6. If multiple documents conflict, point out the differences
7. Keep everything less than 300 words`

const responseGuidelines = `- Be clear and factual
- Prefer timelines and cause -> effect explanations
- Use bullet points for complex events
- Include short quotes when helpful
- End longer responses with a concise summary`

type PassageSearcher interface {
	Search(ctx context.Context, vector []float32, ownerID string, limit int) ([]*model.RetrievedPassage, error)
}

type QueryConfig struct {
	TopK       int
	SystemRole string
	Dimension  int
	// EmbedTimeout bounds the query embedding request.
	EmbedTimeout time.Duration
}

// Answer is the outcome of a query. Stream is nil when nothing relevant was
// retrieved; Text then holds the reply.
type Answer struct {
	Citations []model.Citation
	Stream    *ai.Stream
	Text      string
}

type QueryService struct {
	embedder ai.IEmbedder
	searcher PassageSearcher
	streamer ai.IStreamer
	cfg      QueryConfig
}

func NewQueryService(embedder ai.IEmbedder, searcher PassageSearcher, streamer ai.IStreamer, cfg QueryConfig) *QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if strings.TrimSpace(cfg.SystemRole) == "" {
		cfg.SystemRole = DefaultSystemRole
	}
	if cfg.Dimension <= 0 && embedder != nil {
		cfg.Dimension = embedder.Dimension()
	}
	return &QueryService{embedder: embedder, searcher: searcher, streamer: streamer, cfg: cfg}
}

// EmbedQuery returns nil when the question cannot be embedded. The failure is
// logged, not returned.
func (s *QueryService) EmbedQuery(ctx context.Context, text string) []float32 {
	logger := logutil.GetLogger(ctx)
	if s.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		defer cancel()
	}
	vec, err := s.embedder.Embed(ctx, text, ai.TaskTypeQuery)
	if err != nil {
		logger.Error("query embedding failed", zap.Error(err))
		return nil
	}
	if len(vec) != s.cfg.Dimension {
		logger.Error("query embedding has unexpected dimension",
			zap.Int("dimension", len(vec)),
			zap.Int("expected", s.cfg.Dimension),
		)
		return nil
	}
	return vec
}

// Retrieve returns at most k of the owner's passages, most similar first.
func (s *QueryService) Retrieve(ctx context.Context, vector []float32, ownerID string, k int) ([]*model.RetrievedPassage, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}
	passages, err := s.searcher.Search(ctx, vector, ownerID, k)
	if err != nil {
		return nil, fmt.Errorf("search passages: %w", err)
	}
	if len(passages) == 0 {
		return nil, nil
	}
	return passages, nil
}

// BuildPrompt renders the system instruction and the user message holding
// the numbered context block and the question.
func (s *QueryService) BuildPrompt(question string, passages []*model.RetrievedPassage) ai.StreamRequest {
	var sys strings.Builder
	sys.WriteString(strings.TrimSpace(s.cfg.SystemRole))
	sys.WriteString("\n\nIMPORTANT RULES:\n")
	sys.WriteString(groundingRules)
	sys.WriteString("\n\nRESPONSE GUIDELINES:\n")
	sys.WriteString(responseGuidelines)

	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		blocks = append(blocks, fmt.Sprintf("[%d] (%s):\n%s", i+1, displaySource(&p.Passage), p.Content))
	}
	var user strings.Builder
	user.WriteString("Context:\n----\n")
	user.WriteString(strings.Join(blocks, "\n\n"))
	user.WriteString("\n----\n\nQuestion:\n")
	user.WriteString(strings.TrimSpace(question))

	return ai.StreamRequest{SystemInstruction: sys.String(), UserMessage: user.String()}
}

func (s *QueryService) BuildCitations(passages []*model.RetrievedPassage) []model.Citation {
	citations := make([]model.Citation, 0, len(passages))
	for _, p := range passages {
		citations = append(citations, model.Citation{
			ID:      fmt.Sprintf("%d", p.ID),
			Source:  displaySource(&p.Passage),
			Snippet: snippet(p.Content),
		})
	}
	return citations
}

// Answer retrieves context for question and opens the answer stream. The
// citations are complete before the first fragment can be read.
func (s *QueryService) Answer(ctx context.Context, ownerID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: query is required", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("owner_id", ownerID))

	vec := s.EmbedQuery(ctx, question)
	if vec == nil {
		logger.Warn("no query embedding, answering without context")
		return &Answer{Citations: []model.Citation{}, Text: NoDocumentsAnswer}, nil
	}
	passages, err := s.Retrieve(ctx, vec, ownerID, s.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		logger.Info("no passages retrieved")
		return &Answer{Citations: []model.Citation{}, Text: NoDocumentsAnswer}, nil
	}
	citations := s.BuildCitations(passages)
	stream, err := s.streamer.Stream(ctx, s.BuildPrompt(question, passages))
	if err != nil {
		logger.Error("open answer stream failed", zap.Error(err))
		if errors.Is(err, ai.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", appErr.ErrUpstream, err)
		}
		return nil, err
	}
	logger.Info("answer stream opened", zap.Int("passages", len(passages)))
	return &Answer{Citations: citations, Stream: stream}, nil
}

func displaySource(p *model.Passage) string {
	if s := strings.TrimSpace(p.Source); s != "" {
		return s
	}
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return untitledDocument
}

func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetRunes {
		return string(runes)
	}
	return string(runes[:snippetRunes])
}
