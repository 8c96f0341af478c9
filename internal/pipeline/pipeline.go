// Package pipeline implements CLIP's call pipeline (component G, spec.md
// §4.G), the fixed orchestration every "tools/call" passes through: policy
// resolution, parameter rewriting, cache lookup, a single-flight upstream
// call, masking, compression, and escalation bookkeeping.
//
// DESIGN: grounded on the teacher's tool_output pipe orchestration
// (internal/pipes/tool_output/tool_output.go's Process/compressAllTools),
// which strings together the same cache-check -> compute -> cache-write
// shape around an expensive transform. CLIP's pipeline generalizes that to
// a real upstream MCP call plus the mask/compress/escalate chain spec.md
// §4.G specifies, and fixes the step order the teacher's pipe left
// implicit: cache -> mask -> compress, never reordered, so a cached entry
// is always fully shaped (spec.md §4.G "Ordering is fixed").
package pipeline

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/samteezy/clip/internal/cache"
	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
	"github.com/samteezy/clip/internal/escalation"
	"github.com/samteezy/clip/internal/masker"
	"github.com/samteezy/clip/internal/monitoring"
	"github.com/samteezy/clip/internal/policy"
	"github.com/samteezy/clip/internal/summarizer"
	"github.com/samteezy/clip/internal/upstream"
)

// Upstreams is the subset of *upstream.Registry the pipeline depends on;
// narrowed to an interface so pipeline tests can substitute a fake without
// spawning real child processes.
type Upstreams interface {
	CallTool(ctx context.Context, qn string, args map[string]any) (*mcp.CallToolResult, error)
}

// ShapedResponse is the fully-processed result the pipeline returns and
// the cache stores, so a cache hit never needs to re-run masking or
// summarization (spec.md §4.G).
type ShapedResponse struct {
	Text             string
	IsError          bool
	Compressed       bool
	CompressionError string
	MaskedCount      int

	// OtherContent carries every upstream content block that isn't text
	// (images, embedded resources, audio) untouched through the pipeline.
	// Masking and summarization only ever operate on Text (spec.md §3:
	// "content entries possibly replaced... other content blocks untouched").
	OtherContent []mcp.Content
}

// Pipeline wires components A-F into the fixed order spec.md §4.G
// describes.
type Pipeline struct {
	resolver   *policy.Resolver
	upstreams  Upstreams
	cache      *cache.Cache
	masker     *masker.Masker
	summarizer *summarizer.Summarizer
	escalation *escalation.Tracker
	metrics    *monitoring.MetricsCollector
}

// New builds a Pipeline from its components.
func New(resolver *policy.Resolver, upstreams Upstreams, c *cache.Cache, m *masker.Masker, s *summarizer.Summarizer, e *escalation.Tracker) *Pipeline {
	return &Pipeline{resolver: resolver, upstreams: upstreams, cache: c, masker: m, summarizer: s, escalation: e}
}

// WithMetrics attaches an operational metrics collector; every call, cache
// hit/miss/bypass, compression attempt, masking pass, and escalation
// activation records into it. Optional: a Pipeline with no collector
// attached records nothing and behaves identically otherwise.
func (p *Pipeline) WithMetrics(m *monitoring.MetricsCollector) *Pipeline {
	p.metrics = m
	return p
}

// CallTool runs qn(args) through the full pipeline. goal is the optional
// client-supplied high-level intent string used by goal-aware compression.
func (p *Pipeline) CallTool(ctx context.Context, qn string, args map[string]any, goal string) (*ShapedResponse, error) {
	resp, err := p.callTool(ctx, qn, args, goal)
	if p.metrics != nil {
		p.metrics.RecordCall(err == nil)
	}
	return resp, err
}

func (p *Pipeline) callTool(ctx context.Context, qn string, args map[string]any, goal string) (*ShapedResponse, error) {
	// Step 1: hidden check. Existence is enforced at dispatch: the upstream
	// registry returns clerr.ErrToolNotFound for a name outside its catalog.
	if p.resolver.IsToolHidden(qn) {
		return nil, clerr.ErrToolNotFound
	}

	// Step 2: strip hideParameters, apply parameterOverrides (override wins).
	effectiveArgs := applyParameterPolicy(args, p.resolver.GetHiddenParameters(qn), p.resolver.GetParameterOverrides(qn))

	bypass := isBypassRequested(effectiveArgs) && p.resolver.IsBypassEnabled()
	delete(effectiveArgs, config.BypassArgumentKey)

	build := func(ctx context.Context) (any, error) {
		return p.buildResponse(ctx, qn, effectiveArgs, goal)
	}

	cachePolicy := p.resolver.ResolveCachePolicy(qn)

	if bypass || !cachePolicy.Enabled {
		if bypass && p.metrics != nil {
			p.metrics.RecordCacheBypass()
		}
		resp, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return resp.(*ShapedResponse), nil
	}

	key, err := cache.Key(qn, effectiveArgs)
	if err != nil {
		// spec.md §7: a CacheError (hash/serialization failure) degrades to a
		// cache miss, it never fails the call — same degrade recordEscalation
		// applies below for the identical cache.Key failure.
		log.Warn().Err(err).Str("tool", qn).Msg("pipeline: cache key failed, bypassing cache")
		resp, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return resp.(*ShapedResponse), nil
	}

	result, hit, err := p.cache.GetOrCompute(ctx, key, cachePolicy.TTL, build)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		if hit {
			p.metrics.RecordCacheHit()
		} else {
			p.metrics.RecordCacheMiss()
		}
	}
	return result.(*ShapedResponse), nil
}

// buildResponse is the single-flight builder: upstream call, mask,
// compression decision, summarize, escalation bookkeeping (steps 5-9).
func (p *Pipeline) buildResponse(ctx context.Context, qn string, args map[string]any, goal string) (*ShapedResponse, error) {
	// Step 5: call upstream. Errors propagate; negatives are never cached
	// because GetOrCompute only stores successful builds.
	raw, err := p.upstreams.CallTool(ctx, qn, args)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordUpstreamError()
		}
		return nil, err
	}

	text := upstream.TextContent(raw)
	resp := &ShapedResponse{Text: text, IsError: raw.IsError, OtherContent: upstream.NonTextContent(raw)}

	// Step 6: mask.
	maskingPolicy := p.resolver.ResolveMaskingPolicy(qn)
	if maskingPolicy.Enabled {
		maskResult := p.masker.Mask(ctx, resp.Text, maskingPolicy, p.resolver.MaskerLLMConfig())
		resp.Text = maskResult.Text
		resp.MaskedCount = maskResult.Replacements
		if p.metrics != nil {
			p.metrics.RecordMasked(maskResult.Replacements)
		}
	}

	// Steps 7-9 share a single escalation update: spec.md §4.F computes the
	// new count and the factor to use for *this* call in the same operation,
	// so F is updated exactly once per call regardless of which branch below
	// is taken, and the factor it returns is only consumed if step 8 runs.
	factor := p.recordEscalation(qn, args)
	if factor > 1.0 && p.metrics != nil {
		p.metrics.RecordEscalation()
	}

	// Step 7: compression decision.
	compressionPolicy := p.resolver.ResolveCompressionPolicy(qn)
	if !compressionPolicy.Enabled {
		return resp, nil
	}
	if summarizer.EstimateTokens(resp.Text) < compressionPolicy.TokenThreshold {
		return resp, nil
	}

	// Step 8: summarize, with escalation factor applied to maxOutputTokens
	// only (spec.md §4.F: "The factor multiplies maxOutputTokens only, not
	// tokenThreshold").
	effectiveMaxTokens := int(float64(compressionPolicy.MaxOutputTokens) * factor)

	originalTokens := summarizer.EstimateTokens(resp.Text)
	summary, err := p.summarizer.Summarize(ctx, resp.Text, p.resolver.SummarizerLLMConfig(), compressionPolicy.CustomInstructions, effectiveMaxTokens, compressionPolicy.GoalAware, goal)
	if err != nil {
		log.Warn().Err(err).Str("tool", qn).Msg("pipeline: summarization failed, serving masked original")
		resp.CompressionError = err.Error()
		if p.metrics != nil {
			p.metrics.RecordCompression(false, 0, 0)
		}
		return resp, nil
	}

	resp.Text = summary.Summary
	resp.Compressed = true
	if p.metrics != nil {
		p.metrics.RecordCompression(true, originalTokens, summarizer.EstimateTokens(resp.Text))
	}

	// Step 10: return; caching happens in CallTool via GetOrCompute.
	return resp, nil
}

// recordEscalation performs step 9 (spec.md §4.F): it updates the tracker
// for (qn, args) and returns the escalation factor produced by that same
// update. If retry escalation is disabled, it returns 1.0 without touching
// tracker state.
func (p *Pipeline) recordEscalation(qn string, args map[string]any) float64 {
	esc := p.resolver.GetRetryEscalation()
	if !esc.Enabled {
		return 1.0
	}
	key, err := cache.Key(qn, args)
	if err != nil {
		return 1.0
	}
	return p.escalation.RecordAndFactor(key, esc)
}

// applyParameterPolicy strips hideParameters and overlays parameterOverrides
// (override always wins) onto a copy of args, using gjson/sjson so nested
// dotted paths in hideParameters/parameterOverrides are honored the same
// way the teacher patches provider-specific JSON bodies.
func applyParameterPolicy(args map[string]any, hideParams []string, overrides map[string]any) map[string]any {
	if len(hideParams) == 0 && len(overrides) == 0 {
		return cloneArgs(args)
	}

	raw, err := sjsonMarshal(args)
	if err != nil {
		return cloneArgs(args)
	}

	for _, field := range hideParams {
		raw, _ = sjson.Delete(raw, field)
	}
	for field, value := range overrides {
		raw, _ = sjson.Set(raw, field, value)
	}

	result := gjson.Parse(raw)
	out := map[string]any{}
	result.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func sjsonMarshal(args map[string]any) (string, error) {
	if args == nil {
		return "{}", nil
	}
	raw := "{}"
	var err error
	for k, v := range args {
		raw, err = sjson.Set(raw, k, v)
		if err != nil {
			return "", err
		}
	}
	return raw, nil
}

// isBypassRequested reports whether args carries the reserved bypass flag
// (spec.md §9: __clip_bypass_cache).
func isBypassRequested(args map[string]any) bool {
	v, ok := args[config.BypassArgumentKey]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// ToCallToolResult converts a ShapedResponse back into the MCP wire shape
// the front-end returns to the client. The (possibly masked/summarized)
// text comes first, followed by every non-text block the upstream
// returned, untouched (spec.md §3).
func ToCallToolResult(resp *ShapedResponse) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, 1+len(resp.OtherContent))
	if resp.Text != "" {
		content = append(content, mcp.TextContent{Type: "text", Text: resp.Text})
	}
	content = append(content, resp.OtherContent...)

	return &mcp.CallToolResult{
		IsError: resp.IsError,
		Content: content,
	}
}
