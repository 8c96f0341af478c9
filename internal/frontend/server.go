// Package frontend implements CLIP's proxy front-end (component H, spec.md
// §4.H): the MCP server CLIP presents to the client. It advertises the
// policy-filtered, unioned tool catalog and dispatches "tools/call" into
// the pipeline, and forwards resources/prompts verbs to whichever single
// upstream owns them.
//
// DESIGN: grounded on the teacher-adjacent kagenti-mcp-gateway broker
// (_examples/other_examples/aeb4c588_kagenti-mcp-gateway__internal-broker-broker.go.go),
// which builds a server.MCPServer with server.Hooks for request logging and
// wires discovered upstream tools in as server.ServerTool{Tool, Handler}
// values. CLIP reuses that shape but sources its catalog from
// internal/upstream.Registry and routes tools/call through
// internal/pipeline instead of forwarding raw. Resource/prompt forwarding
// (AddResource/AddPrompt registration, ambiguous-owner handling) is
// grounded on bascanada-logviewer's cmd/mcp.go, the only mark3labs/mcp-go
// server-side example in the pack that registers resources and prompts
// rather than only tools.
package frontend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
	"github.com/samteezy/clip/internal/pipeline"
	"github.com/samteezy/clip/internal/policy"
	"github.com/samteezy/clip/internal/upstream"
)

const (
	serverName    = "clip"
	serverVersion = "0.1.0"
)

// Pipeline is the subset of *pipeline.Pipeline the front-end depends on,
// narrowed to an interface so frontend tests can substitute a fake.
type Pipeline interface {
	CallTool(ctx context.Context, qn string, args map[string]any, goal string) (*pipeline.ShapedResponse, error)
}

// Catalog is the subset of *upstream.Registry the front-end depends on.
type Catalog interface {
	ListTools() []upstream.ToolDescriptor
	ListResources() []upstream.ResourceDescriptor
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
	ListPrompts() []upstream.PromptDescriptor
	GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error)
}

// Server presents an MCP server to the client, backed by a Catalog for
// discovery and a Pipeline for dispatch.
type Server struct {
	mcpServer *server.MCPServer
	catalog   Catalog
	resolver  *policy.Resolver
	pipeline  Pipeline
}

// New builds a Server. Call Refresh once the catalog is populated (i.e.
// after upstream.Registry.Start) to advertise tools to the client.
func New(catalog Catalog, resolver *policy.Resolver, p Pipeline) *Server {
	hooks := &server.Hooks{}
	hooks.AddBeforeAny(func(_ context.Context, _ any, method mcp.MCPMethod, _ any) {
		log.Debug().Str("method", string(method)).Msg("frontend: request")
	})
	hooks.AddOnError(func(_ context.Context, _ any, method mcp.MCPMethod, _ any, err error) {
		log.Warn().Err(err).Str("method", string(method)).Msg("frontend: request failed")
	})

	s := &Server{
		catalog:  catalog,
		resolver: resolver,
		pipeline: p,
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithHooks(hooks),
	)
	return s
}

// Refresh rebuilds the advertised tool catalog from the registry's current
// connected upstreams, applying hidden-tool, description-override, and
// parameter-stripping policy (spec.md §4.H). Call after Start and whenever
// the upstream set changes (e.g. after a markDead prunes a dead upstream).
func (s *Server) Refresh() {
	descriptors := s.catalog.ListTools()
	tools := make([]server.ServerTool, 0, len(descriptors))

	for _, d := range descriptors {
		if s.resolver.IsToolHidden(d.QualifiedName) {
			continue
		}
		tools = append(tools, server.ServerTool{
			Tool:    s.shapeTool(d),
			Handler: s.handlerFor(d.QualifiedName),
		})
	}

	s.mcpServer.SetTools(tools...)
	s.refreshResources()
	s.refreshPrompts()
	log.Info().Int("tools", len(tools)).Msg("frontend: catalog refreshed")
}

// refreshResources registers every resource exposed by exactly one upstream
// (spec.md §4.H: "if exactly one upstream exposes the named resource, route
// there; else return a not-found"). A URI exposed by zero or several
// upstreams is simply never registered, so the client's resources/list
// never advertises it and a read of it falls through to mcp-go's own
// not-found handling — the same "else" outcome without needing a second
// ambiguity check at read time.
func (s *Server) refreshResources() {
	descriptors := s.catalog.ListResources()
	owners := make(map[string]int, len(descriptors))
	for _, d := range descriptors {
		owners[d.Resource.URI]++
	}
	for _, d := range descriptors {
		if owners[d.Resource.URI] != 1 {
			log.Warn().Str("uri", d.Resource.URI).Msg("frontend: resource exposed by multiple upstreams, not advertising")
			continue
		}
		s.mcpServer.AddResource(d.Resource, s.readResource)
	}
}

// refreshPrompts mirrors refreshResources for prompts, keyed by name.
func (s *Server) refreshPrompts() {
	descriptors := s.catalog.ListPrompts()
	owners := make(map[string]int, len(descriptors))
	for _, d := range descriptors {
		owners[d.Prompt.Name]++
	}
	for _, d := range descriptors {
		if owners[d.Prompt.Name] != 1 {
			log.Warn().Str("prompt", d.Prompt.Name).Msg("frontend: prompt exposed by multiple upstreams, not advertising")
			continue
		}
		s.mcpServer.AddPrompt(d.Prompt, s.getPrompt)
	}
}

// readResource forwards a resources/read to whichever single upstream owns
// the requested URI.
func (s *Server) readResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result, err := s.catalog.ReadResource(ctx, req.Params.URI)
	if err != nil {
		return nil, err
	}
	return result.Contents, nil
}

// getPrompt forwards a prompts/get to whichever single upstream owns the
// requested name.
func (s *Server) getPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return s.catalog.GetPrompt(ctx, req.Params.Name, req.Params.Arguments)
}

// shapeTool applies the qualified name, description override, and
// hidden-parameter stripping from the resolver onto the upstream-reported
// mcp.Tool, producing what the client actually sees.
func (s *Server) shapeTool(d upstream.ToolDescriptor) mcp.Tool {
	tool := d.Tool
	tool.Name = d.QualifiedName

	if override := s.resolver.GetDescriptionOverride(d.QualifiedName); override != nil {
		tool.Description = *override
	}

	hidden := s.resolver.GetHiddenParameters(d.QualifiedName)
	if len(hidden) > 0 && tool.InputSchema.Properties != nil {
		props := make(map[string]any, len(tool.InputSchema.Properties))
		for k, v := range tool.InputSchema.Properties {
			props[k] = v
		}
		for _, h := range hidden {
			delete(props, h)
		}
		tool.InputSchema.Properties = props
		tool.InputSchema.Required = filterOut(tool.InputSchema.Required, hidden)
	}

	return tool
}

func filterOut(names []string, drop []string) []string {
	if len(names) == 0 {
		return names
	}
	dropSet := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !dropSet[n] {
			out = append(out, n)
		}
	}
	return out
}

// handlerFor builds the mcp-go tool handler for qn, dispatching into the
// pipeline and converting its ShapedResponse into the MCP wire shape.
func (s *Server) handlerFor(qn string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID := uuid.NewString()

		argsRaw, _ := req.Params.Arguments.(map[string]any)
		args := make(map[string]any, len(argsRaw))
		for k, v := range argsRaw {
			args[k] = v
		}
		goal, _ := args[config.GoalArgumentKey].(string)
		delete(args, config.GoalArgumentKey)

		log.Debug().Str("request_id", requestID).Str("tool", qn).Msg("frontend: dispatching tools/call")

		resp, err := s.pipeline.CallTool(ctx, qn, args, goal)
		if err != nil {
			log.Warn().Str("request_id", requestID).Str("tool", qn).Err(err).Msg("frontend: tools/call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return pipeline.ToCallToolResult(resp), nil
	}
}

// ServeStdio runs the front-end over stdio until the context is canceled or
// the underlying transport closes, matching spec.md §6's stdio CLI surface.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return clerr.NewProtocolError(fmt.Errorf("frontend: stdio server exited: %w", err))
	}
	return nil
}

// MCPServer exposes the underlying *server.MCPServer for callers that need
// to register it with an HTTP mux (SSE transport) instead of stdio.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
