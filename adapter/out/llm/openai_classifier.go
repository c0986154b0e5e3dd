// Package llm implements the email classifier on the OpenAI API.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

const defaultModel = "gpt-4o-mini"

// classifierSystemPrompt pins the model to the closed category set.
// The output contract is JSON so a single parse failure is detectable
// rather than silently miscategorized.
const classifierSystemPrompt = `You are an email categorization assistant for an outreach tool.
Classify the email into exactly one of these categories:
- Interested: the sender shows interest in the product or offer
- Meeting Booked: a meeting was scheduled or confirmed
- Not Interested: the sender declines or shows no interest
- Spam: unsolicited bulk or irrelevant mail
- Out of Office: an automatic absence reply

Respond with JSON only, in this shape:
{"category": "<one of the five labels>", "confidence": <0.0-1.0>, "reasoning": "<one short sentence>"}`

// OpenAIClassifier implements out.Classifier with a chat completion
// call guarded by a circuit breaker.
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	cb          *gobreaker.CircuitBreaker
}

// Config holds the classifier settings.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewOpenAIClassifier creates a classifier client.
func NewOpenAIClassifier(cfg Config) *OpenAIClassifier {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 256
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "openai-classifier",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &OpenAIClassifier{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
		timeout:     timeout,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// classifierResponse is the model's JSON output contract.
type classifierResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classify sends the email text to the model and parses its verdict.
// The returned label is raw model output; normalization onto the
// category enum is the caller's job.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (*out.ClassifierResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty completion response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, fmt.Errorf("classifier call failed: %w", err)
	}

	return parseVerdict(raw.(string))
}

// parseVerdict decodes the model output, tolerating markdown fences
// some models wrap around JSON.
func parseVerdict(content string) (*out.ClassifierResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp classifierResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	if resp.Category == "" {
		return nil, fmt.Errorf("classifier response missing category")
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		resp.Confidence = 0
	}

	return &out.ClassifierResult{
		Label:      resp.Category,
		Confidence: resp.Confidence,
		Reasoning:  resp.Reasoning,
	}, nil
}
