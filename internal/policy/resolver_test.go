package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samteezy/clip/internal/config"
)

func ptr[T any](v T) *T { return &v }

func testConfig() *config.Config {
	return &config.Config{
		Upstreams: []config.UpstreamConfig{
			{
				ID:        "fs",
				Transport: config.TransportStdio,
				Command:   "fs-server",
				Defaults: &config.Defaults{
					Compression: &config.CompressionPartial{
						Enabled:        ptr(true),
						TokenThreshold: ptr(1000),
					},
				},
				Tools: map[string]config.ToolConfig{
					"read_file": {
						Hidden: ptr(false),
						Compression: &config.CompressionPartial{
							MaxOutputTokens: ptr(200),
						},
						Masking: &config.MaskingPartial{
							PIITypes: []string{"email"},
						},
					},
					"secret_tool": {
						Hidden: ptr(true),
					},
					"list_dir": {
						HideParameters:     []string{"internal_flag"},
						ParameterOverrides: map[string]any{"recursive": true},
					},
				},
			},
		},
		Defaults: &config.Defaults{
			Compression: &config.CompressionPartial{
				MaxOutputTokens: ptr(500),
			},
			Masking: &config.MaskingPartial{
				Enabled:  ptr(true),
				PIITypes: []string{"email", "ssn"},
			},
		},
		Compression: &config.CompressionPartial{
			RetryEscalation: &config.RetryEscalationPartial{
				Enabled:         ptr(true),
				WindowSeconds:   ptr(60),
				TokenMultiplier: ptr(2.0),
			},
			BypassEnabled: ptr(true),
		},
	}
}

func TestResolveCompressionPolicy_MostSpecificWins(t *testing.T) {
	r := New(testConfig())

	p := r.ResolveCompressionPolicy(config.Qualify("fs", "read_file"))
	assert.True(t, p.Enabled, "inherited from upstream defaults")
	assert.Equal(t, 1000, p.TokenThreshold, "inherited from upstream defaults")
	assert.Equal(t, 200, p.MaxOutputTokens, "tool override wins over global default of 500")
}

func TestResolveCompressionPolicy_FallsBackToGlobalDefault(t *testing.T) {
	r := New(testConfig())

	// A tool with no compression override at all still inherits the global
	// default maxOutputTokens (500), not the upstream's (unset).
	p := r.ResolveCompressionPolicy(config.Qualify("fs", "list_dir"))
	assert.Equal(t, 500, p.MaxOutputTokens)
	assert.True(t, p.Enabled, "inherited from upstream defaults")
}

func TestResolveMaskingPolicy_PIITypesReplacedNotUnioned(t *testing.T) {
	r := New(testConfig())

	p := r.ResolveMaskingPolicy(config.Qualify("fs", "read_file"))
	require.True(t, p.Enabled)
	assert.True(t, p.PIITypes["email"])
	assert.False(t, p.PIITypes["ssn"], "tool-level piiTypes replaces the global list wholesale, not a union")
}

func TestResolveMaskingPolicy_InheritsGlobalWhenToolUnset(t *testing.T) {
	r := New(testConfig())

	p := r.ResolveMaskingPolicy(config.Qualify("fs", "list_dir"))
	assert.True(t, p.PIITypes["email"])
	assert.True(t, p.PIITypes["ssn"])
}

func TestIsToolHidden(t *testing.T) {
	r := New(testConfig())

	assert.True(t, r.IsToolHidden(config.Qualify("fs", "secret_tool")))
	assert.False(t, r.IsToolHidden(config.Qualify("fs", "read_file")))
	assert.False(t, r.IsToolHidden(config.Qualify("fs", "unknown_tool")), "unresolvable tool is not hidden, just absent")
}

func TestHideParametersAndOverrides(t *testing.T) {
	r := New(testConfig())
	qn := config.Qualify("fs", "list_dir")

	assert.Equal(t, []string{"internal_flag"}, r.GetHiddenParameters(qn))
	assert.Equal(t, map[string]any{"recursive": true}, r.GetParameterOverrides(qn))
}

func TestGetRetryEscalation(t *testing.T) {
	r := New(testConfig())

	esc := r.GetRetryEscalation()
	assert.True(t, esc.Enabled)
	assert.Equal(t, 2.0, esc.TokenMultiplier)
	assert.Equal(t, config.DefaultEscalationCapLevels, esc.CapLevels)
}

func TestIsBypassEnabled(t *testing.T) {
	r := New(testConfig())
	assert.True(t, r.IsBypassEnabled())

	r2 := New(&config.Config{Upstreams: []config.UpstreamConfig{{ID: "x", Transport: config.TransportStdio, Command: "x"}}})
	assert.False(t, r2.IsBypassEnabled())
}

func TestResolveCachePolicy_DefaultWhenUnset(t *testing.T) {
	r := New(testConfig())
	p := r.ResolveCachePolicy(config.Qualify("fs", "read_file"))
	assert.Equal(t, config.DefaultCacheEnabled, p.Enabled)
	assert.Equal(t, config.DefaultCacheTTL, p.TTL)
}
