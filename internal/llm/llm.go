package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/exambench/exambench/internal/llm/prompts"
)

// JudgeResult holds the LLM's review of a formatted document.
type JudgeResult struct {
	Verdict string   `json:"verdict"`
	Issues  []string `json:"issues"`
}

// Passed reports whether the judge accepted the document.
func (r *JudgeResult) Passed() bool {
	return strings.EqualFold(r.Verdict, "pass")
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.Variant
}

// New creates an LLM client using the given judge prompt variant.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid judge variant %q", variant)
	}
	if err := prompts.Load(prompts.Files); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.Variant(variant),
	}, nil
}

// Ping verifies the endpoint answers at all before any work is queued
// behind it.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

// FormatExam turns raw extracted exam text into a benchmark markdown
// document. The result still has to pass the validation pipeline; the
// model's output is never trusted as-is.
func (c *Client) FormatExam(ctx context.Context, raw string) (string, error) {
	prompt, err := prompts.BuildFormatPrompt(raw)
	if err != nil {
		return "", fmt.Errorf("build format prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("LLM format call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	doc := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("LLM formatted document", "bytes", len(doc))
	return doc + "\n", nil
}

// JudgeExam asks the LLM to review a formatted document and returns
// its verdict.
func (c *Client) JudgeExam(ctx context.Context, document string) (*JudgeResult, error) {
	prompt, err := prompts.BuildJudgePrompt(c.variant, document)
	if err != nil {
		return nil, fmt.Errorf("build judge prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM judge call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("LLM returned no choices for judging")
	}

	raw := resp.Choices[0].Message.Content
	result, err := parseJudgeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("parse judge response: %w (raw: %s)", err, raw)
	}
	return result, nil
}

func parseJudgeResult(raw string) (*JudgeResult, error) {
	var result JudgeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, err
	}
	switch strings.ToLower(result.Verdict) {
	case "pass", "fail":
		return &result, nil
	default:
		return nil, fmt.Errorf("unexpected verdict %q", result.Verdict)
	}
}
