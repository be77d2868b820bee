package enrich

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/anthropic"
	"github.com/sells-group/leadgen/pkg/deepseek"
)

// ErrNoClassifier is returned when no model backend is configured.
var ErrNoClassifier = eris.New("enrich: no classifier configured")

// Classifier labels a company with an industry.
type Classifier interface {
	Classify(ctx context.Context, company, website string) (string, error)
}

const classifySystem = `You label businesses with their industry.
Answer with a short industry name of one to four words, such as "Plumbing" or "Commercial Roofing".
Answer "unknown" if the business cannot be identified. No punctuation, no explanation.`

// LLMClassifier asks DeepSeek first and falls back to Anthropic when
// DeepSeek is not configured or fails.
type LLMClassifier struct {
	deepseek       deepseek.Client
	anthropic      anthropic.Client
	anthropicModel string
}

// NewClassifier creates a classifier. Either client may be nil.
func NewClassifier(ds deepseek.Client, an anthropic.Client, anthropicModel string) *LLMClassifier {
	if anthropicModel == "" {
		anthropicModel = "claude-haiku-4-5-20251001"
	}
	return &LLMClassifier{deepseek: ds, anthropic: an, anthropicModel: anthropicModel}
}

// Classify returns an industry label, or "" when the model does not know.
func (c *LLMClassifier) Classify(ctx context.Context, company, website string) (string, error) {
	prompt := "Business: " + company
	if website != "" && website != model.NA {
		prompt += "\nWebsite: " + website
	}

	var dsErr error
	if c.deepseek != nil {
		out, err := c.deepseek.Chat(ctx, classifySystem, prompt)
		if err == nil {
			return cleanLabel(out), nil
		}
		dsErr = err
		zap.L().Warn("enrich: deepseek classify failed, trying anthropic",
			zap.String("company", company), zap.Error(err))
	}

	if c.anthropic == nil {
		if dsErr != nil {
			return "", eris.Wrap(dsErr, "enrich: classify")
		}
		return "", ErrNoClassifier
	}

	temp := 0.0
	resp, err := c.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       c.anthropicModel,
		MaxTokens:   32,
		System:      classifySystem,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "enrich: classify")
	}
	return cleanLabel(resp.Text()), nil
}

var titleCase = cases.Title(language.English)

// cleanLabel keeps the first line of a model answer, strips quotes and
// trailing punctuation, and title-cases it.
func cleanLabel(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'`.*")
	s = strings.TrimPrefix(s, "Industry:")
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unknown") || len(s) > 60 {
		return ""
	}
	return titleCase.String(strings.ToLower(s))
}

// ClassifyMissing fills NA industries in place, running up to concurrency
// classifications at once. Failures leave the field NA and are logged. It
// returns how many leads were labelled.
func ClassifyMissing(ctx context.Context, c Classifier, leads []model.LeadRecord, concurrency int) (int, error) {
	var labelled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i := range leads {
		if leads[i].Industry != model.NA && leads[i].Industry != "" {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			label, err := c.Classify(gctx, leads[i].Company, leads[i].Website)
			if err != nil {
				zap.L().Debug("enrich: classify lead", zap.String("company", leads[i].Company), zap.Error(err))
				return nil
			}
			if label != "" {
				leads[i].Industry = label
				labelled.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(labelled.Load()), ctx.Err()
}
