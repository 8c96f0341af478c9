// Package config defines CLIP's configuration data model: the three-level
// partial-record tree (global defaults -> upstream defaults -> tool
// overrides) described in spec.md §3-4, plus the fully-resolved policy
// structs the policy resolver produces.
//
// Partial records (all fields optional pointers/zero-value-means-absent)
// model each config layer; resolved structs (all fields present) are what
// internal/policy hands back to callers. This mirrors the teacher's
// partial-vs-resolved struct pairing in internal/compresr/types.go.
package config

import "time"

// Transport identifies how CLIP connects to an upstream MCP server.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportSSE   Transport = "sse"
)

// Config is the top-level configuration document (spec.md §6).
type Config struct {
	Upstreams   []UpstreamConfig    `json:"upstreams"`
	Compression *CompressionPartial `json:"compression,omitempty"`
	Masking     *MaskingPartial     `json:"masking,omitempty"`
	Defaults    *Defaults           `json:"defaults,omitempty"`
	Logging     *LoggingConfig      `json:"logging,omitempty"`
}

// LoggingConfig controls the ambient zerolog setup.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // "debug", "info", "warn", "error"
	Pretty bool   `json:"pretty,omitempty"` // console-writer output instead of JSON lines
}

// Defaults holds the global-scope partial policy records (spec.md §3:
// "defaults may hold compression, masking, cache sub-records").
type Defaults struct {
	Compression *CompressionPartial `json:"compression,omitempty"`
	Masking     *MaskingPartial     `json:"masking,omitempty"`
	Cache       *CachePartial       `json:"cache,omitempty"`
}

// UpstreamConfig describes one upstream MCP server (spec.md §3).
type UpstreamConfig struct {
	ID        string                `json:"id"`
	Name      string                `json:"name,omitempty"`
	Transport Transport             `json:"transport"`
	Command   string                `json:"command,omitempty"`
	Args      []string              `json:"args,omitempty"`
	Env       []string              `json:"env,omitempty"`
	URL       string                `json:"url,omitempty"`
	Defaults  *Defaults             `json:"defaults,omitempty"`
	Tools     map[string]ToolConfig `json:"tools,omitempty"`
}

// ToolConfig is a partial, per-tool override record (spec.md §3). All
// fields are optional; an absent field means "inherit".
type ToolConfig struct {
	Hidden               *bool               `json:"hidden,omitempty"`
	OverwriteDescription *string             `json:"overwriteDescription,omitempty"`
	HideParameters       []string            `json:"hideParameters,omitempty"`
	ParameterOverrides   map[string]any      `json:"parameterOverrides,omitempty"`
	Compression          *CompressionPartial `json:"compression,omitempty"`
	Masking              *MaskingPartial     `json:"masking,omitempty"`
	Cache                *CachePartial       `json:"cache,omitempty"`
}

// CompressionPartial is a partial compression-policy record; any field may
// be nil/absent, meaning "inherit from the next layer down".
type CompressionPartial struct {
	Enabled            *bool                   `json:"enabled,omitempty"`
	TokenThreshold     *int                    `json:"tokenThreshold,omitempty"`
	MaxOutputTokens    *int                    `json:"maxOutputTokens,omitempty"`
	CustomInstructions *string                 `json:"customInstructions,omitempty"`
	GoalAware          *bool                   `json:"goalAware,omitempty"`
	RetryEscalation    *RetryEscalationPartial `json:"retryEscalation,omitempty"`
	BypassEnabled      *bool                   `json:"bypassEnabled,omitempty"`
	LLMConfig          *LLMConfig              `json:"llmConfig,omitempty"`
}

// RetryEscalationPartial is the global-only retry-escalation record
// (spec.md §3: "RetryEscalation (global)").
type RetryEscalationPartial struct {
	Enabled         *bool    `json:"enabled,omitempty"`
	WindowSeconds   *int     `json:"windowSeconds,omitempty"`
	TokenMultiplier *float64 `json:"tokenMultiplier,omitempty"`
}

// LLMConfig describes how to reach the summarizing LLM (spec.md §6).
type LLMConfig struct {
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
	APIKey  string `json:"apiKey,omitempty"`
}

// MaskingPartial is a partial masking-policy record.
type MaskingPartial struct {
	Enabled              *bool      `json:"enabled,omitempty"`
	PIITypes             []string   `json:"piiTypes,omitempty"`
	LLMFallback          *bool      `json:"llmFallback,omitempty"`
	LLMFallbackThreshold *string    `json:"llmFallbackThreshold,omitempty"`
	LLMConfig            *LLMConfig `json:"llmConfig,omitempty"`
}

// CachePartial is a partial cache-policy record.
type CachePartial struct {
	Enabled    *bool `json:"enabled,omitempty"`
	TTLSeconds *int  `json:"ttlSeconds,omitempty"`
}

// --- Resolved (fully-specified) policy structs, produced by internal/policy ---

// CompressionPolicy is the fully resolved compression policy for one
// qualified tool name (spec.md §3, all fields always populated).
type CompressionPolicy struct {
	Enabled            bool
	TokenThreshold     int
	MaxOutputTokens    int
	CustomInstructions string
	GoalAware          bool
}

// MaskingPolicy is the fully resolved masking policy for one qualified tool
// name.
type MaskingPolicy struct {
	Enabled              bool
	PIITypes             map[string]bool
	LLMFallback          bool
	LLMFallbackThreshold string // "low" | "medium" | "high"
}

// CachePolicy is the fully resolved cache policy for one qualified tool
// name.
type CachePolicy struct {
	Enabled bool
	TTL     time.Duration
}

// RetryEscalation is the resolved global retry-escalation policy.
type RetryEscalation struct {
	Enabled         bool
	Window          time.Duration
	TokenMultiplier float64
	CapLevels       int
}
