package upstream

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
)

// Status is the lifecycle state of one upstream connection, exposed via
// Registry.Status for diagnostics.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusFailed       Status = "failed"
	StatusDisconnected Status = "disconnected"
)

// ToolDescriptor is a qualified, catalog-ready view of one upstream tool
// (spec.md §4.B: "listTools() -> list<ToolDescriptor>").
type ToolDescriptor struct {
	QualifiedName string
	UpstreamID    string
	ToolName      string
	Tool          mcp.Tool
}

// ResourceDescriptor pairs an upstream-reported resource with the upstream
// that owns it, for the front-end to aggregate into resources/list.
type ResourceDescriptor struct {
	UpstreamID string
	Resource   mcp.Resource
}

// PromptDescriptor pairs an upstream-reported prompt with the upstream that
// owns it, for the front-end to aggregate into prompts/list.
type PromptDescriptor struct {
	UpstreamID string
	Prompt     mcp.Prompt
}

// upstreamState tracks one configured upstream's live connection and last
// known tool/resource/prompt catalog.
type upstreamState struct {
	cfg       config.UpstreamConfig
	client    *Client
	status    Status
	tools     []mcp.Tool
	resources []mcp.Resource
	prompts   []mcp.Prompt
}

// Registry owns one Client per configured upstream (spec.md §4.B). It
// starts every upstream at Start, keeps unreachable upstreams out of the
// catalog instead of failing the whole process, and answers listTools /
// callTool / shutdown for the pipeline and front-end.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*upstreamState
}

// NewRegistry builds a Registry for the given upstream configs. Connections
// are not opened until Start is called.
func NewRegistry(upstreams []config.UpstreamConfig) *Registry {
	r := &Registry{
		order: make([]string, 0, len(upstreams)),
		byID:  make(map[string]*upstreamState, len(upstreams)),
	}
	for _, u := range upstreams {
		r.order = append(r.order, u.ID)
		r.byID[u.ID] = &upstreamState{cfg: u, client: NewClient(u), status: StatusDisconnected}
	}
	return r
}

// Start connects every configured upstream. Per spec.md §4.B, a failure to
// start one upstream is logged and excludes it from the catalog; it never
// prevents the others from starting (degraded mode, not fatal).
func (r *Registry) Start(ctx context.Context) {
	for _, id := range r.order {
		r.mu.RLock()
		st := r.byID[id]
		r.mu.RUnlock()

		if err := st.client.Connect(ctx); err != nil {
			log.Error().Err(err).Str("upstream", id).Msg("upstream failed to start; excluding from catalog")
			r.mu.Lock()
			st.status = StatusFailed
			r.mu.Unlock()
			continue
		}

		tools, err := st.client.ListTools(ctx)
		if err != nil {
			log.Error().Err(err).Str("upstream", id).Msg("upstream tools/list failed; excluding from catalog")
			r.mu.Lock()
			st.status = StatusFailed
			r.mu.Unlock()
			continue
		}

		r.mu.Lock()
		st.tools = tools
		st.status = StatusConnected
		r.mu.Unlock()
		log.Info().Str("upstream", id).Int("tools", len(tools)).Msg("upstream connected")

		// Resources and prompts are optional MCP capabilities: most upstreams
		// expose only tools, so a failure here is logged at debug and the
		// upstream simply contributes none, rather than being excluded from
		// the catalog the way a tools/list failure above does.
		if resources, err := st.client.ListResources(ctx); err != nil {
			log.Debug().Err(err).Str("upstream", id).Msg("upstream does not expose resources")
		} else {
			r.mu.Lock()
			st.resources = resources
			r.mu.Unlock()
		}

		if prompts, err := st.client.ListPrompts(ctx); err != nil {
			log.Debug().Err(err).Str("upstream", id).Msg("upstream does not expose prompts")
		} else {
			r.mu.Lock()
			st.prompts = prompts
			r.mu.Unlock()
		}
	}
}

// ListTools returns the qualified, unfiltered catalog across every
// currently-connected upstream (spec.md §4.B). Policy filtering — hidden
// tools, description overrides, stripped parameters — is applied by the
// front-end, one layer up, since it owns the Resolver.
func (r *Registry) ListTools() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ToolDescriptor
	for _, id := range r.order {
		st := r.byID[id]
		if st.status != StatusConnected {
			continue
		}
		for _, t := range st.tools {
			out = append(out, ToolDescriptor{
				QualifiedName: config.Qualify(id, t.Name),
				UpstreamID:    id,
				ToolName:      t.Name,
				Tool:          t,
			})
		}
	}
	return out
}

// CallTool dispatches a call to the upstream owning qn. Returns
// clerr.ErrToolNotFound if qn doesn't resolve to a connected upstream's
// current catalog, or clerr.ErrUpstreamUnavailable if the upstream's
// session has since died.
func (r *Registry) CallTool(ctx context.Context, qn string, args map[string]any) (*mcp.CallToolResult, error) {
	upstreamID, toolName, ok := config.SplitQualified(qn)
	if !ok {
		return nil, clerr.ErrToolNotFound
	}

	r.mu.RLock()
	st, exists := r.byID[upstreamID]
	r.mu.RUnlock()
	if !exists {
		return nil, clerr.ErrToolNotFound
	}

	r.mu.RLock()
	connected := st.status == StatusConnected
	known := false
	for _, t := range st.tools {
		if t.Name == toolName {
			known = true
			break
		}
	}
	r.mu.RUnlock()
	if !connected {
		return nil, clerr.NewUpstreamError(upstreamID, clerr.ErrUpstreamUnavailable)
	}
	if !known {
		return nil, clerr.ErrToolNotFound
	}

	callCtx, cancel := context.WithTimeout(ctx, config.DefaultUpstreamTimeout)
	defer cancel()
	result, err := st.client.CallTool(callCtx, toolName, args)
	if err != nil {
		r.markDead(upstreamID)
		return nil, err
	}
	return result, nil
}

// ListResources returns every connected upstream's advertised resources,
// each paired with its owning upstream id.
func (r *Registry) ListResources() []ResourceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ResourceDescriptor
	for _, id := range r.order {
		st := r.byID[id]
		if st.status != StatusConnected {
			continue
		}
		for _, res := range st.resources {
			out = append(out, ResourceDescriptor{UpstreamID: id, Resource: res})
		}
	}
	return out
}

// resourceOwner returns the single connected upstream exposing uri, or
// ok=false if zero or more than one does (spec.md §4.H: ambiguous or
// missing resources both resolve to not-found, never a guess).
func (r *Registry) resourceOwner(uri string) (upstreamID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owner string
	count := 0
	for _, id := range r.order {
		st := r.byID[id]
		if st.status != StatusConnected {
			continue
		}
		for _, res := range st.resources {
			if res.URI == uri {
				owner = id
				count++
				break
			}
		}
	}
	if count != 1 {
		return "", false
	}
	return owner, true
}

// ReadResource routes a resources/read to the single upstream owning uri.
func (r *Registry) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	upstreamID, ok := r.resourceOwner(uri)
	if !ok {
		return nil, clerr.ErrResourceNotFound
	}

	r.mu.RLock()
	st, exists := r.byID[upstreamID]
	r.mu.RUnlock()
	if !exists || st.status != StatusConnected {
		return nil, clerr.NewUpstreamError(upstreamID, clerr.ErrUpstreamUnavailable)
	}

	result, err := st.client.ReadResource(ctx, uri)
	if err != nil {
		r.markDead(upstreamID)
		return nil, err
	}
	return result, nil
}

// ListPrompts returns every connected upstream's advertised prompts, each
// paired with its owning upstream id.
func (r *Registry) ListPrompts() []PromptDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []PromptDescriptor
	for _, id := range r.order {
		st := r.byID[id]
		if st.status != StatusConnected {
			continue
		}
		for _, p := range st.prompts {
			out = append(out, PromptDescriptor{UpstreamID: id, Prompt: p})
		}
	}
	return out
}

// promptOwner mirrors resourceOwner for prompt names.
func (r *Registry) promptOwner(name string) (upstreamID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var owner string
	count := 0
	for _, id := range r.order {
		st := r.byID[id]
		if st.status != StatusConnected {
			continue
		}
		for _, p := range st.prompts {
			if p.Name == name {
				owner = id
				count++
				break
			}
		}
	}
	if count != 1 {
		return "", false
	}
	return owner, true
}

// GetPrompt routes a prompts/get to the single upstream owning name.
func (r *Registry) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	upstreamID, ok := r.promptOwner(name)
	if !ok {
		return nil, clerr.ErrPromptNotFound
	}

	r.mu.RLock()
	st, exists := r.byID[upstreamID]
	r.mu.RUnlock()
	if !exists || st.status != StatusConnected {
		return nil, clerr.NewUpstreamError(upstreamID, clerr.ErrUpstreamUnavailable)
	}

	result, err := st.client.GetPrompt(ctx, name, args)
	if err != nil {
		r.markDead(upstreamID)
		return nil, err
	}
	return result, nil
}

// markDead flips an upstream to disconnected and drops it from the catalog
// after its session dies mid-run (spec.md §4.B failure semantics).
func (r *Registry) markDead(upstreamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byID[upstreamID]
	if !ok {
		return
	}
	st.status = StatusDisconnected
	st.tools = nil
	st.resources = nil
	st.prompts = nil
}

// Status reports the current lifecycle state of every configured upstream,
// keyed by upstream id.
func (r *Registry) Status() map[string]Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Status, len(r.order))
	for _, id := range r.order {
		out[id] = r.byID[id].status
	}
	return out
}

// Shutdown closes every upstream connection. Errors are logged, not
// returned, since shutdown happens on process exit and must not block on
// a single misbehaving child.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		st := r.byID[id]
		if err := st.client.Close(); err != nil {
			log.Warn().Err(err).Str("upstream", id).Msg("error closing upstream connection")
		}
	}
}
