package chunker

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/model"
)

const (
	DefaultMaxTokens     = 700
	DefaultWindowSize    = 2000
	DefaultWindowOverlap = 300
	charsPerToken        = 4
)

var headingSplitRegex = regexp.MustCompile(`(?m)^#{1,3}[ \t]+`)

type Config struct {
	MaxTokens     int `json:"max_tokens"`
	WindowSize    int `json:"window_size"`
	WindowOverlap int `json:"window_overlap"`
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:     DefaultMaxTokens,
		WindowSize:    DefaultWindowSize,
		WindowOverlap: DefaultWindowOverlap,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.WindowOverlap < 0 || c.WindowOverlap >= c.WindowSize {
		c.WindowOverlap = 0
	}
	return c
}

// Sequence hands out passage indices for a single document. It must not be
// shared between ingestions.
type Sequence struct {
	next int
}

func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

func (s *Sequence) Next() int {
	v := s.next
	s.next++
	return v
}

type Chunker struct {
	cfg Config
	md  goldmark.Markdown
}

func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults(), md: goldmark.New()}
}

// Chunk splits normalized markdown into passages. Sections are delimited by
// level 1-3 headings; a section whose body exceeds the token budget is cut
// into overlapping fixed-size windows. When seq is nil a fresh one is used.
func (c *Chunker) Chunk(ctx context.Context, markdown string, source string, seq *Sequence) []*model.Passage {
	logger := logutil.GetLogger(ctx).With(zap.String("source", source))
	if seq == nil {
		seq = NewSequence()
	}
	now := time.Now().Unix()
	var passages []*model.Passage

	for i, section := range headingSplitRegex.Split(markdown, -1) {
		title, body := splitSection(section, i == 0)
		if body == "" {
			continue
		}
		title = c.headingText(title)
		tokens := EstimateTokens(body)
		if tokens > c.cfg.MaxTokens {
			windows := SlidingWindows(body, c.cfg.WindowSize, c.cfg.WindowOverlap)
			logger.Debug("section over budget, splitting",
				zap.String("title", title),
				zap.Int("tokens", tokens),
				zap.Int("windows", len(windows)),
			)
			for _, w := range windows {
				passages = append(passages, &model.Passage{
					Source:        source,
					Title:         title,
					Content:       w,
					SequenceIndex: seq.Next(),
					TokenSize:     EstimateTokens(w),
					Ctime:         now,
				})
			}
			continue
		}
		passages = append(passages, &model.Passage{
			Source:        source,
			Title:         title,
			Content:       body,
			SequenceIndex: seq.Next(),
			TokenSize:     tokens,
			Ctime:         now,
		})
	}
	logger.Info("chunking completed", zap.Int("total_chunks", len(passages)))
	return passages
}

// splitSection separates the heading line from the body. The text before the
// first heading has no heading line of its own.
func splitSection(section string, preamble bool) (string, string) {
	if preamble {
		return "", strings.TrimSpace(section)
	}
	title, body, _ := strings.Cut(section, "\n")
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

// headingText renders inline markup in a heading to plain text.
func (c *Chunker) headingText(title string) string {
	if title == "" {
		return ""
	}
	src := []byte("# " + title)
	doc := c.md.Parser().Parse(text.NewReader(src))
	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n, ok := node.(*ast.Text); ok {
			sb.Write(n.Segment.Value(src))
		}
		return ast.WalkContinue, nil
	})
	plain := strings.TrimSpace(sb.String())
	if plain == "" {
		return title
	}
	return plain
}

// EstimateTokens approximates the token count at four characters per token.
func EstimateTokens(s string) int {
	n := len([]rune(s))
	return (n + charsPerToken - 1) / charsPerToken
}

// SlidingWindows cuts s into windows of size characters whose starts are
// size-overlap apart. The last window may be shorter than size.
func SlidingWindows(s string, size, overlap int) []string {
	runes := []rune(s)
	if size <= 0 || len(runes) == 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	windows := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		w := string(runes[start:end])
		if strings.TrimSpace(w) == "" {
			continue
		}
		windows = append(windows, w)
	}
	return windows
}
