package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// ChatRequest describes a minimal completion request used to probe a live
// endpoint. Provider, when set, pins routing to that provider with
// fallbacks disabled so the measured latency belongs to one endpoint.
type ChatRequest struct {
	Model     string
	Prompt    string
	Provider  string
	MaxTokens int
}

// ChatResult carries what a probe needs: the reply text, token usage,
// reported cost, and the provider that actually served the request.
type ChatResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Cost             string
	Provider         string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatProviderPrefs struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type chatReasoning struct {
	Effort  string `json:"effort"`
	Exclude bool   `json:"exclude"`
}

type chatCompletionRequest struct {
	Model            string             `json:"model"`
	Messages         []chatMessage      `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Provider         *chatProviderPrefs `json:"provider,omitempty"`
	Reasoning        *chatReasoning     `json:"reasoning,omitempty"`
	IncludeReasoning bool               `json:"include_reasoning"`
}

type chatCompletionResponse struct {
	Provider string `json:"provider"`
	Choices  []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int      `json:"prompt_tokens"`
		CompletionTokens int      `json:"completion_tokens"`
		Cost             *float64 `json:"cost"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// ChatCompletion sends a completion request and returns the parsed result.
// Reasoning is minimized so probe latency reflects plain generation.
func (c *Client) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	endpoint := c.baseURL + "/chat/completions"

	body := chatCompletionRequest{
		Model:            req.Model,
		Messages:         []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:        req.MaxTokens,
		Reasoning:        &chatReasoning{Effort: "low", Exclude: true},
		IncludeReasoning: false,
	}
	if req.Provider != "" {
		allow := false
		body.Provider = &chatProviderPrefs{
			Order:          []string{req.Provider},
			AllowFallbacks: &allow,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	resp, err := c.http.Post(ctx, endpoint, payload, c.headers())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, statusToError(resp.StatusCode, req.Model, string(resp.Body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling completion response: %w", err)
	}
	if parsed.Error != nil {
		return nil, &StatusError{Status: parsed.Error.Code, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response for %s", req.Model)
	}

	result := &ChatResult{
		Content:          parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		Provider:         parsed.Provider,
	}
	if parsed.Usage.Cost != nil {
		result.Cost = fmt.Sprintf("%g", *parsed.Usage.Cost)
	}
	if result.Provider == "" {
		result.Provider = resp.Header.Get("X-OpenRouter-Provider")
	}
	return result, nil
}
