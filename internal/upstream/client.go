// Package upstream wraps the mark3labs/mcp-go client SDK and manages the
// pool of upstream MCP server connections CLIP proxies for (component B,
// spec.md §4.B).
//
// DESIGN: client.go is grounded directly on
// Jint8888-Pocket-Omega/internal/mcp/client.go, generalized so Connect
// performs the same handshake under either transport and CallTool returns
// the full *mcp.CallToolResult (not flattened text) so the pipeline can
// mask/summarize text content while leaving other content blocks untouched.
// ListResources/ReadResource/ListPrompts/GetPrompt are grounded on
// stacklok-toolhive's pkg/vmcp/session mcpConnectedBackend, the only
// mark3labs/mcp-go-based example in the pack that forwards resources and
// prompts to a backend MCP server rather than just tools.
package upstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
)

// clientName/clientVersion identify CLIP to upstream servers during the MCP
// initialize handshake.
const (
	clientName    = "clip"
	clientVersion = "0.1.0"
)

// Client wraps a single upstream MCP server connection. It is safe for
// concurrent use.
type Client struct {
	id  string
	cfg config.UpstreamConfig

	mu    sync.RWMutex
	inner client.MCPClient
}

// NewClient creates an unconnected Client for cfg. Call Connect before
// ListTools or CallTool.
func NewClient(cfg config.UpstreamConfig) *Client {
	return &Client{id: cfg.ID, cfg: cfg}
}

// ID returns the upstream id this client was built for.
func (c *Client) ID() string { return c.id }

// Connect starts the transport (spawning the child process for stdio, or
// opening the SSE stream) and performs the MCP initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	var inner client.MCPClient

	switch c.cfg.Transport {
	case config.TransportStdio:
		cli, err := client.NewStdioMCPClient(c.cfg.Command, c.cfg.Env, c.cfg.Args...)
		if err != nil {
			return clerr.NewUpstreamError(c.id, fmt.Errorf("start stdio process: %w", err))
		}
		inner = cli

	case config.TransportSSE:
		cli, err := client.NewSSEMCPClient(c.cfg.URL)
		if err != nil {
			return clerr.NewUpstreamError(c.id, fmt.Errorf("create sse client: %w", err))
		}
		if err := cli.Start(ctx); err != nil {
			return clerr.NewUpstreamError(c.id, fmt.Errorf("start sse client: %w", err))
		}
		inner = cli

	default:
		return clerr.NewUpstreamError(c.id, fmt.Errorf("unsupported transport %q", c.cfg.Transport))
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}

	if _, err := inner.Initialize(ctx, initReq); err != nil {
		_ = inner.Close()
		return clerr.NewUpstreamError(c.id, fmt.Errorf("initialize: %w", err))
	}

	c.mu.Lock()
	c.inner = inner
	c.mu.Unlock()
	return nil
}

// Connected reports whether the handshake has completed and no Close has
// happened since.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner != nil
}

// ListTools returns the raw tool catalog this upstream advertises.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	inner, err := c.session()
	if err != nil {
		return nil, err
	}
	result, err := inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, clerr.NewUpstreamError(c.id, fmt.Errorf("list tools: %w", err))
	}
	return result.Tools, nil
}

// CallTool invokes name on this upstream with args and returns the raw
// result, content blocks intact. Masking and summarization happen upstream
// of this call, in the pipeline.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	inner, err := c.session()
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := inner.CallTool(ctx, req)
	if err != nil {
		return nil, clerr.NewUpstreamError(c.id, fmt.Errorf("call tool %q: %w", name, err))
	}
	return result, nil
}

// ListResources returns the raw resource catalog this upstream advertises.
// Not every upstream supports resources; callers should treat an error here
// as "no resources from this upstream" rather than a fatal condition.
func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	inner, err := c.session()
	if err != nil {
		return nil, err
	}
	result, err := inner.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, clerr.NewUpstreamError(c.id, fmt.Errorf("list resources: %w", err))
	}
	return result.Resources, nil
}

// ReadResource reads uri from this upstream.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	inner, err := c.session()
	if err != nil {
		return nil, err
	}
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	result, err := inner.ReadResource(ctx, req)
	if err != nil {
		return nil, clerr.NewUpstreamError(c.id, fmt.Errorf("read resource %q: %w", uri, err))
	}
	return result, nil
}

// ListPrompts returns the raw prompt catalog this upstream advertises.
func (c *Client) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	inner, err := c.session()
	if err != nil {
		return nil, err
	}
	result, err := inner.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, clerr.NewUpstreamError(c.id, fmt.Errorf("list prompts: %w", err))
	}
	return result.Prompts, nil
}

// GetPrompt resolves name from this upstream.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	inner, err := c.session()
	if err != nil {
		return nil, err
	}
	req := mcp.GetPromptRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := inner.GetPrompt(ctx, req)
	if err != nil {
		return nil, clerr.NewUpstreamError(c.id, fmt.Errorf("get prompt %q: %w", name, err))
	}
	return result, nil
}

// Close terminates the connection and releases resources.
func (c *Client) Close() error {
	c.mu.Lock()
	inner := c.inner
	c.inner = nil
	c.mu.Unlock()

	if inner == nil {
		return nil
	}
	return inner.Close()
}

func (c *Client) session() (client.MCPClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.inner == nil {
		return nil, clerr.ErrUpstreamUnavailable
	}
	return c.inner, nil
}

// TextContent concatenates the text content blocks of result, mirroring
// the teacher's flattening in CallTool's original shape where callers only
// care about the textual payload (used by the masker and summarizer, which
// only operate on text).
func TextContent(result *mcp.CallToolResult) string {
	var out string
	for _, block := range result.Content {
		if tc, ok := block.(mcp.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}

// NonTextContent returns every content block of result that isn't
// mcp.TextContent (images, embedded resources, audio), in original order.
// The pipeline carries these through untouched: masking and summarization
// only ever see the flattened text from TextContent.
func NonTextContent(result *mcp.CallToolResult) []mcp.Content {
	var out []mcp.Content
	for _, block := range result.Content {
		if _, ok := block.(mcp.TextContent); !ok {
			out = append(out, block)
		}
	}
	return out
}
