// Package policy implements CLIP's policy resolver (component A,
// spec.md §4.A): it merges the three config layers (global defaults ->
// upstream defaults -> tool overrides) into fully-resolved per-tool
// policies, field by field, most-specific-wins.
//
// DESIGN: mirrors the teacher's partial-record merge pattern
// (internal/config + internal/pipes/pipe.go layering pipe config under
// gateway config), generalized to the tool/upstream/global three-level
// tree spec.md §3-4 specifies. The merge is a fixed-depth field lookup, not
// a recursive deep-merge — cyclic inheritance is impossible by construction
// (spec.md §9).
package policy

import (
	"time"

	"github.com/samteezy/clip/internal/config"
)

// Resolver answers policy queries for qualified tool names by layering a
// loaded Config. It holds no mutable state beyond the config itself, so a
// single Resolver can be shared by every caller.
type Resolver struct {
	cfg *config.Config

	// upstreamByID indexes cfg.Upstreams for O(1) lookup.
	upstreamByID map[string]*config.UpstreamConfig
}

// New builds a Resolver over cfg. cfg is never mutated afterward — configs
// are immutable after load (spec.md §3 "Lifecycles").
func New(cfg *config.Config) *Resolver {
	r := &Resolver{cfg: cfg, upstreamByID: make(map[string]*config.UpstreamConfig, len(cfg.Upstreams))}
	for i := range cfg.Upstreams {
		r.upstreamByID[cfg.Upstreams[i].ID] = &cfg.Upstreams[i]
	}
	return r
}

// layers resolves the upstream and tool config layers relevant to qn.
// Either may be nil if the qualified tool name, its upstream, or its tool
// entry doesn't exist. Per spec.md §4.A, a nonexistent qualified tool still
// returns usable (empty/default) results rather than raising.
func (r *Resolver) layers(qn string) (upstream *config.UpstreamConfig, tool *config.ToolConfig) {
	upstreamID, toolName, ok := config.SplitQualified(qn)
	if !ok {
		return nil, nil
	}
	upstream = r.upstreamByID[upstreamID]
	if upstream == nil || upstream.Tools == nil {
		return upstream, nil
	}
	if t, ok := upstream.Tools[toolName]; ok {
		return upstream, &t
	}
	return upstream, nil
}

// compressionLayers returns the compression partial at each scope, most to
// least specific, for qn. Any entry may be nil.
func (r *Resolver) compressionLayers(qn string) (tool, upstream, global, top *config.CompressionPartial) {
	u, t := r.layers(qn)
	if t != nil {
		tool = t.Compression
	}
	if u != nil && u.Defaults != nil {
		upstream = u.Defaults.Compression
	}
	if r.cfg.Defaults != nil {
		global = r.cfg.Defaults.Compression
	}
	top = r.cfg.Compression
	return
}

func (r *Resolver) maskingLayers(qn string) (tool, upstream, global, top *config.MaskingPartial) {
	u, t := r.layers(qn)
	if t != nil {
		tool = t.Masking
	}
	if u != nil && u.Defaults != nil {
		upstream = u.Defaults.Masking
	}
	if r.cfg.Defaults != nil {
		global = r.cfg.Defaults.Masking
	}
	top = r.cfg.Masking
	return
}

func (r *Resolver) cacheLayers(qn string) (tool, upstream, global *config.CachePartial) {
	u, t := r.layers(qn)
	if t != nil {
		tool = t.Cache
	}
	if u != nil && u.Defaults != nil {
		upstream = u.Defaults.Cache
	}
	if r.cfg.Defaults != nil {
		global = r.cfg.Defaults.Cache
	}
	return
}

// ResolveCompressionPolicy computes the effective CompressionPolicy for qn
// (spec.md §4.A).
func (r *Resolver) ResolveCompressionPolicy(qn string) config.CompressionPolicy {
	tool, upstream, global, top := r.compressionLayers(qn)

	return config.CompressionPolicy{
		Enabled:            resolveBool(config.DefaultCompressionEnabled, boolField(tool, upstream, global, top, func(p *config.CompressionPartial) *bool { return p.Enabled })),
		TokenThreshold:     resolveInt(config.DefaultTokenThreshold, intField(tool, upstream, global, top, func(p *config.CompressionPartial) *int { return p.TokenThreshold })),
		MaxOutputTokens:    resolveInt(config.DefaultMaxOutputTokens, intField(tool, upstream, global, top, func(p *config.CompressionPartial) *int { return p.MaxOutputTokens })),
		CustomInstructions: resolveString("", stringField(tool, upstream, global, top, func(p *config.CompressionPartial) *string { return p.CustomInstructions })),
		GoalAware:          resolveBool(false, boolField(tool, upstream, global, top, func(p *config.CompressionPartial) *bool { return p.GoalAware })),
	}
}

// ResolveMaskingPolicy computes the effective MaskingPolicy for qn.
// piiTypes is replaced wholesale by the most specific layer that sets it,
// never unioned (spec.md §4.A, P2).
func (r *Resolver) ResolveMaskingPolicy(qn string) config.MaskingPolicy {
	tool, upstream, global, top := r.maskingLayers(qn)

	var piiTypes []string
	for _, p := range []*config.MaskingPartial{tool, upstream, global, top} {
		if p != nil && p.PIITypes != nil {
			piiTypes = p.PIITypes
			break
		}
	}
	set := make(map[string]bool, len(piiTypes))
	for _, t := range piiTypes {
		set[t] = true
	}

	return config.MaskingPolicy{
		Enabled:              resolveBool(config.DefaultMaskingEnabled, boolField(tool, upstream, global, top, func(p *config.MaskingPartial) *bool { return p.Enabled })),
		PIITypes:             set,
		LLMFallback:          resolveBool(false, boolField(tool, upstream, global, top, func(p *config.MaskingPartial) *bool { return p.LLMFallback })),
		LLMFallbackThreshold: resolveString(config.DefaultLLMFallbackThreshold, stringField(tool, upstream, global, top, func(p *config.MaskingPartial) *string { return p.LLMFallbackThreshold })),
	}
}

// ResolveCachePolicy computes the effective CachePolicy for qn.
func (r *Resolver) ResolveCachePolicy(qn string) config.CachePolicy {
	tool, upstream, global := r.cacheLayers(qn)

	ttlSeconds := resolveInt(int(config.DefaultCacheTTL/time.Second), intField3(tool, upstream, global, func(p *config.CachePartial) *int { return p.TTLSeconds }))

	return config.CachePolicy{
		Enabled: resolveBool(config.DefaultCacheEnabled, boolField3(tool, upstream, global, func(p *config.CachePartial) *bool { return p.Enabled })),
		TTL:     time.Duration(ttlSeconds) * time.Second,
	}
}

// GetHiddenParameters returns the hideParameters list for qn, empty if none.
func (r *Resolver) GetHiddenParameters(qn string) []string {
	_, tool := r.layers(qn)
	if tool == nil {
		return nil
	}
	return tool.HideParameters
}

// GetParameterOverrides returns the parameterOverrides map for qn, empty if
// none.
func (r *Resolver) GetParameterOverrides(qn string) map[string]any {
	_, tool := r.layers(qn)
	if tool == nil {
		return nil
	}
	return tool.ParameterOverrides
}

// IsToolHidden reports whether qn resolves to hidden=true (spec.md I2).
func (r *Resolver) IsToolHidden(qn string) bool {
	_, tool := r.layers(qn)
	return tool != nil && tool.Hidden != nil && *tool.Hidden
}

// GetDescriptionOverride returns the overwriteDescription for qn, or nil if
// not set.
func (r *Resolver) GetDescriptionOverride(qn string) *string {
	_, tool := r.layers(qn)
	if tool == nil {
		return nil
	}
	return tool.OverwriteDescription
}

// IsGoalAwareEnabled is a convenience accessor equivalent to
// ResolveCompressionPolicy(qn).GoalAware.
func (r *Resolver) IsGoalAwareEnabled(qn string) bool {
	return r.ResolveCompressionPolicy(qn).GoalAware
}

// GetRetryEscalation returns the global retry-escalation policy, or a
// disabled zero-value policy if not configured (spec.md: global only).
func (r *Resolver) GetRetryEscalation() config.RetryEscalation {
	var p *config.RetryEscalationPartial
	if r.cfg.Compression != nil {
		p = r.cfg.Compression.RetryEscalation
	}
	if p == nil {
		return config.RetryEscalation{}
	}
	return config.RetryEscalation{
		Enabled:         p.Enabled != nil && *p.Enabled,
		Window:          time.Duration(resolveInt(int(config.DefaultEscalationWindow/time.Second), p.WindowSeconds)) * time.Second,
		TokenMultiplier: resolveFloat(config.DefaultEscalationMultiplier, p.TokenMultiplier),
		CapLevels:       config.DefaultEscalationCapLevels,
	}
}

// IsBypassEnabled reports whether the global cache-bypass feature is on
// (spec.md: global only).
func (r *Resolver) IsBypassEnabled() bool {
	if r.cfg.Compression == nil || r.cfg.Compression.BypassEnabled == nil {
		return false
	}
	return *r.cfg.Compression.BypassEnabled
}

// SummarizerLLMConfig returns the configured summarizer endpoint.
func (r *Resolver) SummarizerLLMConfig() config.LLMConfig {
	if r.cfg.Compression == nil || r.cfg.Compression.LLMConfig == nil {
		return config.LLMConfig{}
	}
	return *r.cfg.Compression.LLMConfig
}

// MaskerLLMConfig returns the configured masking-fallback LLM endpoint.
func (r *Resolver) MaskerLLMConfig() config.LLMConfig {
	if r.cfg.Masking == nil || r.cfg.Masking.LLMConfig == nil {
		return config.LLMConfig{}
	}
	return *r.cfg.Masking.LLMConfig
}

// --- field-wise merge helpers: walk layers most-to-least specific and
// return the first non-nil pointer. ---

func boolField[P any](tool, upstream, global, top *P, get func(*P) *bool) *bool {
	for _, p := range []*P{tool, upstream, global, top} {
		if p == nil {
			continue
		}
		if v := get(p); v != nil {
			return v
		}
	}
	return nil
}

func boolField3[P any](tool, upstream, global *P, get func(*P) *bool) *bool {
	return boolField(tool, upstream, global, (*P)(nil), get)
}

func intField[P any](tool, upstream, global, top *P, get func(*P) *int) *int {
	for _, p := range []*P{tool, upstream, global, top} {
		if p == nil {
			continue
		}
		if v := get(p); v != nil {
			return v
		}
	}
	return nil
}

func intField3[P any](tool, upstream, global *P, get func(*P) *int) *int {
	return intField(tool, upstream, global, (*P)(nil), get)
}

func stringField[P any](tool, upstream, global, top *P, get func(*P) *string) *string {
	for _, p := range []*P{tool, upstream, global, top} {
		if p == nil {
			continue
		}
		if v := get(p); v != nil {
			return v
		}
	}
	return nil
}

func resolveBool(def bool, p *bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func resolveInt(def int, p *int) int {
	if p == nil {
		return def
	}
	return *p
}

func resolveFloat(def float64, p *float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func resolveString(def string, p *string) string {
	if p == nil {
		return def
	}
	return *p
}
