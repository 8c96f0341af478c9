package upstream

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samteezy/clip/internal/clerr"
	"github.com/samteezy/clip/internal/config"
)

// newTestRegistry builds a Registry with upstreams already in a known
// connected/failed state, bypassing Start/Connect so tests don't need a
// real child process or network listener.
func newTestRegistry(states map[string]*upstreamState, order []string) *Registry {
	return &Registry{order: order, byID: states}
}

func TestNewRegistry_StartsDisconnected(t *testing.T) {
	r := NewRegistry([]config.UpstreamConfig{{ID: "fs", Transport: config.TransportStdio, Command: "fs-server"}})
	assert.Equal(t, map[string]Status{"fs": StatusDisconnected}, r.Status())
}

func TestListTools_OnlyIncludesConnectedUpstreams(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:    config.UpstreamConfig{ID: "fs"},
			client: NewClient(config.UpstreamConfig{ID: "fs"}),
			status: StatusConnected,
			tools:  []mcp.Tool{{Name: "read_file"}, {Name: "list_dir"}},
		},
		"broken": {
			cfg:    config.UpstreamConfig{ID: "broken"},
			client: NewClient(config.UpstreamConfig{ID: "broken"}),
			status: StatusFailed,
			tools:  nil,
		},
	}, []string{"fs", "broken"})

	tools := r.ListTools()
	require.Len(t, tools, 2)
	names := map[string]bool{}
	for _, td := range tools {
		names[td.QualifiedName] = true
		assert.Equal(t, "fs", td.UpstreamID)
	}
	assert.True(t, names[config.Qualify("fs", "read_file")])
	assert.True(t, names[config.Qualify("fs", "list_dir")])
}

func TestCallTool_UnknownQualifiedNameReturnsNotFound(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{}, nil)
	_, err := r.CallTool(context.Background(), "nope", nil)
	require.ErrorIs(t, err, clerr.ErrToolNotFound)
}

func TestCallTool_UnknownUpstreamReturnsNotFound(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{}, nil)
	_, err := r.CallTool(context.Background(), config.Qualify("fs", "read_file"), nil)
	require.ErrorIs(t, err, clerr.ErrToolNotFound)
}

func TestCallTool_DisconnectedUpstreamReturnsUpstreamError(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:    config.UpstreamConfig{ID: "fs"},
			client: NewClient(config.UpstreamConfig{ID: "fs"}),
			status: StatusFailed,
		},
	}, []string{"fs"})

	_, err := r.CallTool(context.Background(), config.Qualify("fs", "read_file"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, clerr.ErrUpstreamUnavailable)
}

func TestMarkDead_FlipsStatusAndClearsTools(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:    config.UpstreamConfig{ID: "fs"},
			client: NewClient(config.UpstreamConfig{ID: "fs"}),
			status: StatusConnected,
			tools:  []mcp.Tool{{Name: "read_file"}},
		},
	}, []string{"fs"})

	r.markDead("fs")

	assert.Equal(t, StatusDisconnected, r.Status()["fs"])
	assert.Empty(t, r.ListTools())
}

func TestMarkDead_UnknownUpstreamIsNoop(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{}, nil)
	assert.NotPanics(t, func() { r.markDead("nope") })
}

func TestListResources_OnlyIncludesConnectedUpstreams(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:       config.UpstreamConfig{ID: "fs"},
			client:    NewClient(config.UpstreamConfig{ID: "fs"}),
			status:    StatusConnected,
			resources: []mcp.Resource{{URI: "fs://readme"}},
		},
		"broken": {
			cfg:       config.UpstreamConfig{ID: "broken"},
			client:    NewClient(config.UpstreamConfig{ID: "broken"}),
			status:    StatusFailed,
			resources: []mcp.Resource{{URI: "broken://thing"}},
		},
	}, []string{"fs", "broken"})

	descriptors := r.ListResources()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "fs", descriptors[0].UpstreamID)
	assert.Equal(t, "fs://readme", descriptors[0].Resource.URI)
}

func TestReadResource_AmbiguousURIReturnsNotFound(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:       config.UpstreamConfig{ID: "fs"},
			client:    NewClient(config.UpstreamConfig{ID: "fs"}),
			status:    StatusConnected,
			resources: []mcp.Resource{{URI: "shared://thing"}},
		},
		"db": {
			cfg:       config.UpstreamConfig{ID: "db"},
			client:    NewClient(config.UpstreamConfig{ID: "db"}),
			status:    StatusConnected,
			resources: []mcp.Resource{{URI: "shared://thing"}},
		},
	}, []string{"fs", "db"})

	_, err := r.ReadResource(context.Background(), "shared://thing")
	require.ErrorIs(t, err, clerr.ErrResourceNotFound)
}

func TestReadResource_UnknownURIReturnsNotFound(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{}, nil)
	_, err := r.ReadResource(context.Background(), "fs://missing")
	require.ErrorIs(t, err, clerr.ErrResourceNotFound)
}

func TestReadResource_UnambiguousURIRoutesToOwner(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:       config.UpstreamConfig{ID: "fs"},
			client:    NewClient(config.UpstreamConfig{ID: "fs"}),
			status:    StatusConnected,
			resources: []mcp.Resource{{URI: "fs://readme"}},
		},
	}, []string{"fs"})

	// The owner resolves unambiguously to "fs"; the client itself was never
	// Connect-ed in this test, so dispatch fails with ErrUpstreamUnavailable
	// rather than the not-found this would return for a missing/ambiguous URI.
	_, err := r.ReadResource(context.Background(), "fs://readme")
	require.Error(t, err)
	assert.ErrorIs(t, err, clerr.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, clerr.ErrResourceNotFound)
}

func TestListPrompts_OnlyIncludesConnectedUpstreams(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:     config.UpstreamConfig{ID: "fs"},
			client:  NewClient(config.UpstreamConfig{ID: "fs"}),
			status:  StatusConnected,
			prompts: []mcp.Prompt{{Name: "investigate"}},
		},
	}, []string{"fs"})

	descriptors := r.ListPrompts()
	require.Len(t, descriptors, 1)
	assert.Equal(t, "investigate", descriptors[0].Prompt.Name)
}

func TestGetPrompt_AmbiguousNameReturnsNotFound(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:     config.UpstreamConfig{ID: "fs"},
			client:  NewClient(config.UpstreamConfig{ID: "fs"}),
			status:  StatusConnected,
			prompts: []mcp.Prompt{{Name: "shared"}},
		},
		"db": {
			cfg:     config.UpstreamConfig{ID: "db"},
			client:  NewClient(config.UpstreamConfig{ID: "db"}),
			status:  StatusConnected,
			prompts: []mcp.Prompt{{Name: "shared"}},
		},
	}, []string{"fs", "db"})

	_, err := r.GetPrompt(context.Background(), "shared", nil)
	require.ErrorIs(t, err, clerr.ErrPromptNotFound)
}

func TestMarkDead_ClearsResourcesAndPrompts(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"fs": {
			cfg:       config.UpstreamConfig{ID: "fs"},
			client:    NewClient(config.UpstreamConfig{ID: "fs"}),
			status:    StatusConnected,
			resources: []mcp.Resource{{URI: "fs://readme"}},
			prompts:   []mcp.Prompt{{Name: "investigate"}},
		},
	}, []string{"fs"})

	r.markDead("fs")

	assert.Empty(t, r.ListResources())
	assert.Empty(t, r.ListPrompts())
}

func TestStatus_ReportsEachUpstreamState(t *testing.T) {
	r := newTestRegistry(map[string]*upstreamState{
		"a": {cfg: config.UpstreamConfig{ID: "a"}, client: NewClient(config.UpstreamConfig{ID: "a"}), status: StatusConnected},
		"b": {cfg: config.UpstreamConfig{ID: "b"}, client: NewClient(config.UpstreamConfig{ID: "b"}), status: StatusFailed},
	}, []string{"a", "b"})

	status := r.Status()
	assert.Equal(t, StatusConnected, status["a"])
	assert.Equal(t, StatusFailed, status["b"])
}
