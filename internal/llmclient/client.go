// Package llmclient is the single OpenAI-style chat/completions HTTP client
// shared by the summarizer (component E) and the PII masker's optional
// LLM-fallback pass (component D), so both speak the same request/response
// shape and timeout discipline.
//
// DESIGN: grounded on the teacher's external/llm_types.go
// (OpenAIChatRequest/OpenAIChatResponse) and the call pattern in
// internal/preemptive/summarizer.go's callAPI — a single endpoint, a model
// name, a system+user prompt pair, and a hard per-call timeout. The
// teacher's multi-provider routing (Anthropic, Gemini, Bedrock SigV4) is
// dropped: spec.md §4.E only asks for one reachable LLM for summarization,
// so CLIP speaks the one wire format (OpenAI-compatible, which every major
// local/hosted LLM gateway also accepts) instead of carrying three codecs
// for a feature the spec doesn't use.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/samteezy/clip/internal/utils"
)

// ChatMessage is one OpenAI-style chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []ChatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	Temperature         float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Result is the text and token accounting from a completed chat call.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Client issues chat/completions requests against one configured endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// New builds a Client. timeout bounds every call made through it.
func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// Chat sends a system+user prompt pair and returns the first completion.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (*Result, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxCompletionTokens: maxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	log.Debug().Str("baseUrl", c.baseURL).Str("model", c.model).Str("apiKey", utils.MaskKey(c.apiKey)).Msg("llmclient: sending chat request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat response contained no choices")
	}

	return &Result{
		Content:          parsed.Choices[0].Message.Content,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}
