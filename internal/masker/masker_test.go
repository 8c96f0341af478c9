package masker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samteezy/clip/internal/config"
)

func policyWith(types ...string) config.MaskingPolicy {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return config.MaskingPolicy{Enabled: true, PIITypes: set, LLMFallbackThreshold: "medium"}
}

func TestMask_RedactsEmail(t *testing.T) {
	m := New()
	r := m.Mask(context.Background(), "contact me at jane.doe@example.com please", policyWith("email"), config.LLMConfig{})
	assert.Equal(t, "contact me at [REDACTED_EMAIL] please", r.Text)
	assert.Equal(t, 1, r.Replacements)
}

func TestMask_RedactsSSN(t *testing.T) {
	m := New()
	r := m.Mask(context.Background(), "ssn: 123-45-6789 on file", policyWith("ssn"), config.LLMConfig{})
	assert.Equal(t, "ssn: [REDACTED_SSN] on file", r.Text)
}

func TestMask_Deterministic(t *testing.T) {
	m := New()
	policy := policyWith("email", "phone")
	text := "reach jane@example.com or 555-123-4567"

	r1 := m.Mask(context.Background(), text, policy, config.LLMConfig{})
	r2 := m.Mask(context.Background(), text, policy, config.LLMConfig{})
	assert.Equal(t, r1.Text, r2.Text)
}

func TestMask_DisabledIsNoop(t *testing.T) {
	m := New()
	policy := config.MaskingPolicy{Enabled: false}
	r := m.Mask(context.Background(), "jane@example.com", policy, config.LLMConfig{})
	assert.Equal(t, "jane@example.com", r.Text)
	assert.Equal(t, 0, r.Replacements)
}

func TestMask_NoPIITypesIsNoop(t *testing.T) {
	m := New()
	policy := config.MaskingPolicy{Enabled: true, PIITypes: map[string]bool{}}
	r := m.Mask(context.Background(), "jane@example.com", policy, config.LLMConfig{})
	assert.Equal(t, "jane@example.com", r.Text)
}

func TestMask_FallbackFailureDegradesGracefully(t *testing.T) {
	m := New()
	policy := policyWith("email")
	policy.LLMFallback = true
	policy.LLMFallbackThreshold = "high" // the leftover "@" keeps confidence at 0.5, below 0.9, so fallback is attempted

	r := m.Mask(context.Background(), "jane@example.com or ops@internal", policy, config.LLMConfig{}) // no llm configured -> fallback errors
	assert.Equal(t, "[REDACTED_EMAIL] or ops@internal", r.Text, "must degrade to regex-only output rather than fail")
	assert.False(t, r.UsedFallback)
}
