// Package masker implements CLIP's PII masking stage (component D,
// spec.md §4.D): deterministic regex-based redaction per configured
// piiTypes, with an optional LLM-fallback extraction pass when the regex
// pass's confidence is low.
//
// DESIGN: no teacher module does PII redaction directly, so this package
// is written in the teacher's idiom (small detector table, deterministic
// fixed-token replacement, zerolog warnings on degraded paths) rather than
// ported from an existing file. The LLM-fallback pass reuses
// internal/llmclient, the same HTTP client the summarizer uses, matching
// the teacher's practice of routing every outbound LLM call through one
// client shape (internal/compresr/client.go, external/llm.go).
package masker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
	"github.com/samteezy/clip/internal/llmclient"
)

// detector pairs a regex for one PII type with its fixed replacement
// token. The confidence heuristic that decides whether the LLM fallback
// pass should run lives in regexMask, not here.
type detector struct {
	piiType     string
	pattern     *regexp.Regexp
	replacement string
}

// detectors is intentionally a fixed table, not user-extensible: spec.md
// §4.D names exactly these five types.
var detectors = []detector{
	{
		piiType:     "email",
		pattern:     regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		replacement: "[REDACTED_EMAIL]",
	},
	{
		piiType:     "ssn",
		pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		replacement: "[REDACTED_SSN]",
	},
	{
		piiType:     "phone",
		pattern:     regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		replacement: "[REDACTED_PHONE]",
	},
	{
		piiType:     "credit_card",
		pattern:     regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
		replacement: "[REDACTED_CREDIT_CARD]",
	},
	{
		piiType:     "ip_address",
		pattern:     regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		replacement: "[REDACTED_IP]",
	},
}

// Masker applies MaskingPolicy to response text.
type Masker struct{}

// Result is the outcome of one masking pass.
type Result struct {
	Text         string
	Replacements int
	UsedFallback bool
}

// New builds a Masker.
func New() *Masker {
	return &Masker{}
}

// Mask redacts text per policy. The regex pass never fails; on the same
// input and policy it always produces byte-identical output (spec.md
// §4.D "Determinism"). If policy.LLMFallback is true and the regex pass's
// heuristic confidence falls below policy.LLMFallbackThreshold, a second
// LLM-based extraction pass runs over what the regex pass left behind. An
// LLM-fallback failure degrades to the regex-only result plus a logged
// warning; it never fails the call (spec.md §7).
func (m *Masker) Mask(ctx context.Context, text string, policy config.MaskingPolicy, llmCfg config.LLMConfig) Result {
	if !policy.Enabled || len(policy.PIITypes) == 0 {
		return Result{Text: text}
	}

	masked, count, confidence := regexMask(text, policy.PIITypes)

	if !policy.LLMFallback || confidence >= requiredConfidence(policy.LLMFallbackThreshold) {
		return Result{Text: masked, Replacements: count}
	}

	fallbackText, fallbackCount, err := m.llmFallback(ctx, masked, policy, llmCfg)
	if err != nil {
		log.Warn().Err(err).Msg("masker: llm fallback failed, degrading to regex-only result")
		return Result{Text: masked, Replacements: count}
	}
	return Result{Text: fallbackText, Replacements: count + fallbackCount, UsedFallback: true}
}

// regexMask applies every enabled detector once and reports a crude
// confidence score: 1.0 if no detector's pattern had a near-miss left in
// the text (a run of digits or an "@" that didn't match cleanly), lower
// otherwise. This is a heuristic, not a guarantee; it exists purely to
// decide whether the optional LLM pass is worth invoking.
func regexMask(text string, types map[string]bool) (masked string, replacements int, confidence float64) {
	masked = text
	for _, d := range detectors {
		if !types[d.piiType] {
			continue
		}
		matches := d.pattern.FindAllStringIndex(masked, -1)
		replacements += len(matches)
		masked = d.pattern.ReplaceAllString(masked, d.replacement)
	}

	confidence = 1.0
	if types["email"] && strings.Contains(masked, "@") {
		confidence = 0.5
	}
	if types["ssn"] && looksLikeLooseDigitRun(masked) {
		if confidence > 0.6 {
			confidence = 0.6
		}
	}
	return masked, replacements, confidence
}

var looseDigitRun = regexp.MustCompile(`\d{9,}`)

func looksLikeLooseDigitRun(s string) bool {
	return looseDigitRun.MatchString(s)
}

func requiredConfidence(threshold string) float64 {
	switch threshold {
	case "low":
		return 0.3
	case "high":
		return 0.9
	default: // "medium" and unrecognized values
		return 0.6
	}
}

func (m *Masker) llmFallback(ctx context.Context, text string, policy config.MaskingPolicy, cfg config.LLMConfig) (string, int, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return "", 0, clerr.NewMaskerError(fmt.Errorf("llmConfig.baseUrl and llmConfig.model are required for llmFallback"))
	}

	client := llmclient.New(cfg.BaseURL, cfg.APIKey, cfg.Model, config.DefaultMaskerLLMTimeout)
	systemPrompt := "You find and redact any remaining personally identifiable information in the text below. Replace each finding with a bracketed tag like [REDACTED_<TYPE>]. Output only the redacted text, nothing else."
	result, err := client.Chat(ctx, systemPrompt, text, len(text)/2+64)
	if err != nil {
		return "", 0, clerr.NewMaskerError(err)
	}
	return result.Content, strings.Count(result.Content, "[REDACTED_"), nil
}
