// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// POLICY DEFAULTS (built-in fallback when no config layer sets a field)
// =============================================================================

// DefaultCompressionEnabled is whether compression is on absent any config.
const DefaultCompressionEnabled = false

// DefaultTokenThreshold is the response size (tokens) above which a result
// becomes a summarization candidate.
const DefaultTokenThreshold = 2000

// DefaultMaxOutputTokens bounds the summarizer's output absent config.
const DefaultMaxOutputTokens = 500

// DefaultMaskingEnabled is whether PII masking is on absent any config.
const DefaultMaskingEnabled = false

// DefaultLLMFallbackThreshold is the masker's ambiguity threshold absent config.
const DefaultLLMFallbackThreshold = "medium"

// DefaultCacheEnabled is whether the response cache is on absent any config.
const DefaultCacheEnabled = true

// DefaultCacheTTL is the response cache entry lifetime absent config.
const DefaultCacheTTL = 10 * time.Minute

// =============================================================================
// RETRY ESCALATION
// =============================================================================

// DefaultEscalationWindow is the repeat-call detection window absent config.
const DefaultEscalationWindow = 60 * time.Second

// DefaultEscalationMultiplier is the per-repeat token multiplier absent config.
const DefaultEscalationMultiplier = 2.0

// DefaultEscalationCapLevels bounds how many times the multiplier compounds,
// per spec.md's recommendation (open question: cap = 3).
const DefaultEscalationCapLevels = 3

// =============================================================================
// TIMEOUTS
// =============================================================================

// DefaultUpstreamTimeout bounds a single upstream tools/call.
const DefaultUpstreamTimeout = 60 * time.Second

// DefaultSummarizerTimeout bounds a single summarizer HTTP call.
const DefaultSummarizerTimeout = 30 * time.Second

// DefaultMaskerLLMTimeout bounds a single masker LLM-fallback call.
const DefaultMaskerLLMTimeout = 15 * time.Second

// =============================================================================
// CACHE MAINTENANCE
// =============================================================================

// DefaultSweepInterval is how often the cache's optional periodic sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// =============================================================================
// MISC
// =============================================================================

// QualifiedNameSeparator joins an upstream id and a tool name into a
// qualified tool name. Reserved: upstream ids and tool names must not
// contain it.
const QualifiedNameSeparator = "__"

// BypassArgumentKey is the reserved argument key a client sets to skip the
// response cache for a single call (spec.md open question, recommended
// resolution).
const BypassArgumentKey = "__clip_bypass_cache"

// GoalArgumentKey is the reserved argument key a client sets to carry its
// high-level intent for goal-aware compression (spec.md §4.D: "the user's
// high-level intent carried by the client ... when transport supplies it").
// MCP's tools/call has no standard field for this, so CLIP reserves an
// argument key the same way it reserves BypassArgumentKey.
const GoalArgumentKey = "__clip_goal"
