// Package summarizer implements CLIP's compression stage (component E,
// spec.md §4.E): it hands a raw tool response to an external LLM and
// returns a shorter summary plus token accounting.
//
// DESIGN: grounded on the teacher's internal/preemptive/summarizer.go
// (single endpoint + model + system/user prompt + hard timeout) and its
// goal-aware/goal-agnostic prompt split in external/llm_prompts.go
// (SystemPromptQuerySpecific vs SystemPromptQueryAgnostic). CLIP's "query"
// is spec.md's optional per-call *goal* string instead of the teacher's
// conversation-level user question, but the query-aware/agnostic prompt
// branching is the same shape.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
	"github.com/samteezy/clip/internal/llmclient"
)

const (
	systemPromptGoalAware = `You summarize MCP tool call responses for an AI agent. Preserve information relevant to the agent's stated goal: file paths, identifiers, error messages, and concrete data the agent is likely to act on next. Remove redundant formatting, boilerplate, and repeated structure. Output only the summary, no preamble.`

	systemPromptGoalAgnostic = `You summarize MCP tool call responses for an AI agent. Preserve structural information: file paths, identifiers, error messages, and concrete data. Remove redundant formatting, boilerplate, and repeated structure. Output only the summary, no preamble.`
)

// Result is a completed summarization.
type Result struct {
	Summary        string
	OriginalTokens int
	SummaryTokens  int
}

// Summarizer calls an external LLM to compress tool responses.
type Summarizer struct {
	timeout time.Duration
}

// New builds a Summarizer. The LLM endpoint itself is supplied per-call via
// cfg; the pipeline passes the top-level compression llmConfig for every
// tool.
func New(timeout time.Duration) *Summarizer {
	return &Summarizer{timeout: timeout}
}

// Summarize compresses text down toward maxOutputTokens using cfg's
// endpoint. goal is the client-supplied high-level intent string, used
// only when goalAware is true (spec.md §4.E); it may be empty.
func (s *Summarizer) Summarize(ctx context.Context, text string, cfg config.LLMConfig, customInstructions string, maxOutputTokens int, goalAware bool, goal string) (*Result, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, clerr.NewSummarizerError("not configured", fmt.Errorf("llmConfig.baseUrl and llmConfig.model are required"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client := llmclient.New(cfg.BaseURL, cfg.APIKey, cfg.Model, s.timeout)

	systemPrompt := systemPromptGoalAgnostic
	if goalAware && goal != "" {
		systemPrompt = systemPromptGoalAware
	}
	if customInstructions != "" {
		systemPrompt += "\n\nAdditional instructions: " + customInstructions
	}

	userPrompt := buildUserPrompt(goalAware, goal, text)

	result, err := client.Chat(ctx, systemPrompt, userPrompt, maxOutputTokens)
	if err != nil {
		return nil, clerr.NewSummarizerError("chat completion failed", err)
	}
	if result.Content == "" {
		return nil, clerr.NewSummarizerError("empty summary", fmt.Errorf("llm returned no content"))
	}

	summaryTokens := result.CompletionTokens
	if summaryTokens == 0 {
		summaryTokens = EstimateTokens(result.Content)
	}

	return &Result{
		Summary:        result.Content,
		OriginalTokens: EstimateTokens(text),
		SummaryTokens:  summaryTokens,
	}, nil
}

func buildUserPrompt(goalAware bool, goal, text string) string {
	if goalAware && goal != "" {
		return fmt.Sprintf("Agent's goal: %s\n\nTool response to summarize:\n%s", goal, text)
	}
	return fmt.Sprintf("Tool response to summarize:\n%s", text)
}
