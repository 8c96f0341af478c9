// Package monitoring provides lightweight in-memory operational counters
// for the proxy pipeline.
//
// DESIGN: atomic counters for:
//   - calls/successes:  Total and successful tools/call counts
//   - cache_hits/misses: Response cache performance (component C)
//   - compressions:      Summarizer invocations and failures (component E)
//   - masked:            PII redactions applied (component D)
//   - escalations:       Retry-escalation activations (component F)
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"fmt"
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics for the call pipeline.
type MetricsCollector struct {
	startedAt time.Time

	calls     atomic.Int64
	successes atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheBypass atomic.Int64

	compressionAttempts atomic.Int64
	compressionOK       atomic.Int64
	compressionFail     atomic.Int64

	maskedSubstrings atomic.Int64

	escalationsActive atomic.Int64

	totalOriginalTokens atomic.Int64
	totalSummaryTokens  atomic.Int64
	totalUpstreamErrors atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startedAt: time.Now()}
}

// RecordCall records a tools/call outcome.
func (mc *MetricsCollector) RecordCall(success bool) {
	mc.calls.Add(1)
	if success {
		mc.successes.Add(1)
	}
}

// RecordCacheHit records a response cache hit.
func (mc *MetricsCollector) RecordCacheHit() { mc.cacheHits.Add(1) }

// RecordCacheMiss records a response cache miss.
func (mc *MetricsCollector) RecordCacheMiss() { mc.cacheMisses.Add(1) }

// RecordCacheBypass records a call that skipped the cache via the bypass flag.
func (mc *MetricsCollector) RecordCacheBypass() { mc.cacheBypass.Add(1) }

// RecordCompression records the outcome of a summarization attempt and the
// token counts involved.
func (mc *MetricsCollector) RecordCompression(ok bool, originalTokens, summaryTokens int) {
	mc.compressionAttempts.Add(1)
	if ok {
		mc.compressionOK.Add(1)
		mc.totalOriginalTokens.Add(int64(originalTokens))
		mc.totalSummaryTokens.Add(int64(summaryTokens))
	} else {
		mc.compressionFail.Add(1)
	}
}

// RecordMasked records the number of PII substrings redacted in a response.
func (mc *MetricsCollector) RecordMasked(count int) {
	if count > 0 {
		mc.maskedSubstrings.Add(int64(count))
	}
}

// RecordEscalation records that retry-escalation raised the token budget
// for a call.
func (mc *MetricsCollector) RecordEscalation() { mc.escalationsActive.Add(1) }

// RecordUpstreamError records a failed upstream dispatch.
func (mc *MetricsCollector) RecordUpstreamError() { mc.totalUpstreamErrors.Add(1) }

// StartedAt returns when the metrics collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// FullStats returns all metrics in a structured snapshot.
func (mc *MetricsCollector) FullStats() StatsSnapshot {
	uptime := time.Since(mc.startedAt)
	calls := mc.calls.Load()
	successes := mc.successes.Load()
	hits := mc.cacheHits.Load()
	misses := mc.cacheMisses.Load()

	var cacheHitRate float64
	if total := hits + misses; total > 0 {
		cacheHitRate = float64(hits) / float64(total) * 100
	}

	var savingsPercent float64
	original := mc.totalOriginalTokens.Load()
	summary := mc.totalSummaryTokens.Load()
	if original > 0 {
		savingsPercent = float64(original-summary) / float64(original) * 100
	}

	return StatsSnapshot{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Calls: CallStats{
			Total:      calls,
			Successful: successes,
			Failed:     calls - successes,
		},
		Cache: CacheStats{
			Hits:    hits,
			Misses:  misses,
			Bypass:  mc.cacheBypass.Load(),
			HitRate: cacheHitRate,
		},
		Compression: CompressionStats{
			Attempts:       mc.compressionAttempts.Load(),
			Successful:     mc.compressionOK.Load(),
			Failed:         mc.compressionFail.Load(),
			OriginalTokens: original,
			SummaryTokens:  summary,
			SavingsPercent: savingsPercent,
		},
		Masking: MaskingStats{
			Redactions: mc.maskedSubstrings.Load(),
		},
		Escalation: EscalationStats{
			Activations: mc.escalationsActive.Load(),
		},
		UpstreamErrors: mc.totalUpstreamErrors.Load(),
	}
}

// StatsSnapshot is a structured snapshot of all collected metrics.
type StatsSnapshot struct {
	Uptime         string           `json:"uptime"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	StartedAt      string           `json:"started_at"`
	Calls          CallStats        `json:"calls"`
	Cache          CacheStats       `json:"cache"`
	Compression    CompressionStats `json:"compression"`
	Masking        MaskingStats     `json:"masking"`
	Escalation     EscalationStats  `json:"escalation"`
	UpstreamErrors int64            `json:"upstream_errors"`
}

// CallStats holds tools/call outcome counts.
type CallStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

// CacheStats holds response cache performance metrics.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Bypass  int64   `json:"bypass"`
	HitRate float64 `json:"hit_rate"`
}

// CompressionStats holds summarization metrics.
type CompressionStats struct {
	Attempts       int64   `json:"attempts"`
	Successful     int64   `json:"successful"`
	Failed         int64   `json:"failed"`
	OriginalTokens int64   `json:"original_tokens"`
	SummaryTokens  int64   `json:"summary_tokens"`
	SavingsPercent float64 `json:"savings_percent"`
}

// MaskingStats holds PII masking metrics.
type MaskingStats struct {
	Redactions int64 `json:"redactions"`
}

// EscalationStats holds retry-escalation metrics.
type EscalationStats struct {
	Activations int64 `json:"activations"`
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
