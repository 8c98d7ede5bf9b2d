package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"talentflow/internal/apperrors"
	"talentflow/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	geminiModel      = "gemini-2.5-flash"
	openRouterModel  = "openai/gpt-4o-mini"
	openRouterURL    = "https://openrouter.ai/api/v1/chat/completions"
	summarizeTimeout = 30 * time.Second
)

// SummarizeRequest carries everything the model needs to produce a
// short hiring-signal summary for one test result.
type SummarizeRequest struct {
	CandidateName string
	Position      string
	TestID        string
	Notes         string
	Evidence      []byte
	EvidenceMime  string
}

// Summarizer produces an AI summary for a test result. Implementations
// must treat the call as best-effort: callers never fail a workflow on a
// summarizer error.
type Summarizer interface {
	Summarize(ctx context.Context, req *SummarizeRequest) (string, error)
}

// NoopSummarizer stands in when no provider is configured. Every call
// fails as an upstream error so the surrounding workflow stays usable.
type NoopSummarizer struct{}

func (NoopSummarizer) Summarize(context.Context, *SummarizeRequest) (string, error) {
	return "", apperrors.Upstream(nil, "summarizer not configured")
}

type aiService struct {
	gemini      *genai.Client
	fallback    *resty.Client
	fallbackKey string
	maxRetries  int
	baseDelay   time.Duration
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// NewAIService wires the Gemini client as the primary provider and
// OpenRouter as the fallback. Either key may be empty; an empty primary
// key means every call goes straight to the fallback.
func NewAIService(ctx context.Context, geminiAPIKey, openRouterAPIKey string, m *metrics.Metrics, log *zap.Logger) (Summarizer, error) {
	svc := &aiService{
		fallbackKey: openRouterAPIKey,
		maxRetries:  3,
		baseDelay:   time.Second,
		metrics:     m,
		log:         log,
	}
	if geminiAPIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  geminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		svc.gemini = client
	}
	if openRouterAPIKey != "" {
		svc.fallback = resty.New().SetTimeout(summarizeTimeout)
	}
	if svc.gemini == nil && svc.fallback == nil {
		return nil, fmt.Errorf("no summarizer provider configured")
	}
	return svc, nil
}

func (s *aiService) Summarize(ctx context.Context, req *SummarizeRequest) (string, error) {
	prompt := buildSummaryPrompt(req)

	ctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	if s.gemini != nil {
		start := time.Now()
		summary, err := s.summarizeWithGemini(ctx, prompt, req)
		s.metrics.AICallDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			s.metrics.AICalls.WithLabelValues("gemini", "ok").Inc()
			return summary, nil
		}
		s.metrics.AICalls.WithLabelValues("gemini", "error").Inc()
		s.log.Warn("gemini summarize failed", zap.String("test_id", req.TestID), zap.Error(err))
		if s.fallback == nil {
			return "", apperrors.Upstream(err, "summarizer unavailable")
		}
	}

	start := time.Now()
	summary, err := s.summarizeWithOpenRouter(ctx, prompt)
	s.metrics.AICallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.AICalls.WithLabelValues("openrouter", "error").Inc()
		return "", apperrors.Upstream(err, "summarizer unavailable")
	}
	s.metrics.AICalls.WithLabelValues("openrouter", "ok").Inc()
	return summary, nil
}

func (s *aiService) summarizeWithGemini(ctx context.Context, prompt string, req *SummarizeRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(req.Evidence) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Evidence, req.EvidenceMime))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := s.gemini.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err == nil {
			text := strings.TrimSpace(result.Text())
			if text == "" {
				return "", fmt.Errorf("empty response from model")
			}
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
		s.log.Debug("retrying gemini call",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *aiService) summarizeWithOpenRouter(ctx context.Context, prompt string) (string, error) {
	resp, err := s.fallback.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+s.fallbackKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"model": openRouterModel,
			"messages": []map[string]string{
				{"role": "system", "content": "You summarize candidate test results for hiring teams."},
				{"role": "user", "content": prompt},
			},
		}).
		Post(openRouterURL)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("openrouter returned %d", resp.StatusCode())
	}

	text := strings.TrimSpace(gjson.Get(resp.String(), "choices.0.message.content").String())
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

func (s *aiService) backoff(attempt int) time.Duration {
	delay := s.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := err.(*genai.APIError); ok {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}

func buildSummaryPrompt(req *SummarizeRequest) string {
	var b strings.Builder
	b.WriteString("Summarize this candidate test result in 2-3 sentences for a hiring team.\n")
	b.WriteString("Focus on signal: what the result says about the candidate's fit.\n\n")
	fmt.Fprintf(&b, "Candidate: %s\n", req.CandidateName)
	if req.Position != "" {
		fmt.Fprintf(&b, "Position: %s\n", req.Position)
	}
	fmt.Fprintf(&b, "Test: %s\n", req.TestID)
	if req.Notes != "" {
		fmt.Fprintf(&b, "Reviewer notes: %s\n", req.Notes)
	}
	if len(req.Evidence) > 0 {
		b.WriteString("The attached file is the candidate's submitted evidence.\n")
	}
	return b.String()
}
