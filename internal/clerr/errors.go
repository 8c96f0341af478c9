// Package clerr defines CLIP's error taxonomy so callers can tell a fatal
// startup failure from a per-call degradation by kind, per the error
// handling design in spec.md §7.
package clerr

import "fmt"

// ConfigError signals a fatal startup failure: invalid config or a missing
// required field. Only ConfigError should terminate the process.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a ConfigError attributed to field (may be "").
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// UpstreamError signals a per-call failure attributed to a specific
// upstream: not running, transport broken, or the upstream returned an
// error. Propagated to the client unchanged in shape.
type UpstreamError struct {
	UpstreamID string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %q: %v", e.UpstreamID, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError attributes err to the given upstream id.
func NewUpstreamError(upstreamID string, err error) *UpstreamError {
	return &UpstreamError{UpstreamID: upstreamID, Err: err}
}

// SummarizerError signals a compression-stage failure: timeout, bad HTTP,
// or malformed LLM output. Recovered locally by the pipeline — the original
// response is returned, annotated with the failure.
type SummarizerError struct {
	Reason string
	Err    error
}

func (e *SummarizerError) Error() string {
	return fmt.Sprintf("summarizer: %s: %v", e.Reason, e.Err)
}

func (e *SummarizerError) Unwrap() error { return e.Err }

// NewSummarizerError wraps err with a short human-readable reason.
func NewSummarizerError(reason string, err error) *SummarizerError {
	return &SummarizerError{Reason: reason, Err: err}
}

// MaskerError signals that the optional LLM-fallback masking pass failed.
// The regex pass itself cannot fail; a MaskerError always degrades to
// regex-only output, never aborts the call.
type MaskerError struct {
	Err error
}

func (e *MaskerError) Error() string { return fmt.Sprintf("masker: %v", e.Err) }
func (e *MaskerError) Unwrap() error { return e.Err }

// NewMaskerError wraps err as a MaskerError.
func NewMaskerError(err error) *MaskerError { return &MaskerError{Err: err} }

// CacheError signals a cache-layer problem (serialization, hash collision).
// Treated as a miss; it never fails the call.
type CacheError struct {
	Err error
}

func (e *CacheError) Error() string { return fmt.Sprintf("cache: %v", e.Err) }
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError wraps err as a CacheError.
func NewCacheError(err error) *CacheError { return &CacheError{Err: err} }

// ProtocolError signals a malformed MCP frame from the client or an
// upstream. The frame is dropped and logged; the session is kept alive.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps err as a ProtocolError.
func NewProtocolError(err error) *ProtocolError { return &ProtocolError{Err: err} }

// ErrToolNotFound is returned by the pipeline and front-end when a
// qualified tool name does not resolve to a live, visible tool (spec.md I2).
var ErrToolNotFound = fmt.Errorf("tool not found")

// ErrUpstreamUnavailable is returned when the owning upstream's session has
// died and in-flight / new calls to it can no longer be dispatched.
var ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")

// ErrResourceNotFound is returned when a resource URI is not exposed by
// exactly one connected upstream (spec.md §4.H: zero or ambiguous owners
// both resolve to not-found).
var ErrResourceNotFound = fmt.Errorf("resource not found")

// ErrPromptNotFound is returned when a prompt name is not exposed by
// exactly one connected upstream, mirroring ErrResourceNotFound.
var ErrPromptNotFound = fmt.Errorf("prompt not found")
