// Package llm is the client for the external collaborators: the question
// generator, the answer evaluator, and the feedback summarizer, all served
// by one OpenAI-compatible endpoint.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/examforge/examforge/internal/llm/prompts"
	"github.com/examforge/examforge/internal/model"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return extractJSON(raw), nil
}

// extractJSON trims any stray text around the outermost JSON value. Some
// models wrap the object in prose or code fences despite the JSON response
// format.
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return s
	}
	return s[start : end+1]
}

// GenerateQuestions asks the generator for a full question set on a topic.
// The payloads are returned opaque; normalization happens at ingestion.
func (c *Client) GenerateQuestions(ctx context.Context, topic string, count int) ([]json.RawMessage, error) {
	raw, err := c.complete(ctx, prompts.Generate(topic, count), 0.5)
	if err != nil {
		return nil, err
	}
	set, err := parseGeneratedSet(raw)
	if err != nil {
		return nil, fmt.Errorf("parse generated set: %w (raw: %s)", err, raw)
	}
	return set, nil
}

// parseGeneratedSet accepts the shapes the generator has been observed to
// produce: a bare array, a {"questions": [...]} wrapper, or an object keyed
// "question 1", "question 2", ... with the payloads as values.
func parseGeneratedSet(raw string) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("neither array nor object: %w", err)
	}

	if wrapped, ok := obj["questions"]; ok {
		if err := json.Unmarshal(wrapped, &list); err != nil {
			return nil, fmt.Errorf("questions field is not a list: %w", err)
		}
		return list, nil
	}

	// Keyed-object shape. Order by the numeric suffix of the keys.
	type keyed struct {
		order   int
		payload json.RawMessage
	}
	var entries []keyed
	for key, payload := range obj {
		lower := strings.ToLower(key)
		if !strings.HasPrefix(lower, "question") {
			continue
		}
		// Require a numeric suffix so a bare question object's own
		// "question" field is not mistaken for a set entry.
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(lower, "question")))
		if err != nil {
			continue
		}
		entries = append(entries, keyed{order: n, payload: payload})
	}
	if len(entries) == 0 {
		// A single question object at the top level.
		if _, hasPrompt := obj["question"]; hasPrompt {
			return []json.RawMessage{json.RawMessage(raw)}, nil
		}
		if _, hasPrompt := obj["text"]; hasPrompt {
			return []json.RawMessage{json.RawMessage(raw)}, nil
		}
		return nil, fmt.Errorf("object contains no question entries")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	for _, e := range entries {
		list = append(list, e.payload)
	}
	return list, nil
}

// VerifyAnswer judges a chosen option against a question. The question
// payload is forwarded verbatim; the engine does not reinterpret it.
func (c *Client) VerifyAnswer(ctx context.Context, question json.RawMessage, chosen string) (model.Verdict, error) {
	raw, err := c.complete(ctx, prompts.Verify(string(question), chosen), 0.3)
	if err != nil {
		return model.Verdict{}, err
	}
	var verdict model.Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return model.Verdict{}, fmt.Errorf("parse verdict: %w (raw: %s)", err, raw)
	}
	return verdict, nil
}

// SubstituteQuestion asks the generator for a single replacement. The whole
// current set is sent keyed by position and the response must carry the
// replacement under the same position key.
func (c *Client) SubstituteQuestion(ctx context.Context, set map[string]json.RawMessage, positionKey, topic string) (json.RawMessage, error) {
	setJSON, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal question set: %w", err)
	}
	raw, err := c.complete(ctx, prompts.Substitute(string(setJSON), positionKey, topic), 0.5)
	if err != nil {
		return nil, err
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("parse substitution: %w (raw: %s)", err, raw)
	}
	replacement, ok := resp[positionKey]
	if !ok {
		// Tolerate a response with a single entry under a different key.
		if len(resp) == 1 {
			for _, v := range resp {
				return v, nil
			}
		}
		return nil, fmt.Errorf("substitution response missing key %q", positionKey)
	}
	return replacement, nil
}

// FinalFeedback produces the end-of-session narrative. Callers substitute a
// placeholder on failure; completion never blocks on this.
func (c *Client) FinalFeedback(ctx context.Context, summary model.Summary) (string, error) {
	raw, err := c.complete(ctx, prompts.Feedback(summary), 0.3)
	if err != nil {
		return "", err
	}
	var resp struct {
		Feedback string `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", fmt.Errorf("parse feedback: %w (raw: %s)", err, raw)
	}
	return resp.Feedback, nil
}
