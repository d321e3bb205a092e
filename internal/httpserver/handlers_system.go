package httpserver

import (
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/edonhq/gateway/internal/version"
)

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "ok"
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Error("health check: database ping failed", "error", err)
			status = "degraded"
		}
	}
	if s.rateLimiter != nil {
		if err := s.rateLimiter.Ping(ctx); err != nil {
			s.logger.Error("health check: redis ping failed", "error", err)
			status = "degraded"
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	Respond(w, code, healthResponse{Status: status})
}

type versionResponse struct {
	Version string `json:"version"`
	Commit string `json:"commit"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	Respond(w, http.StatusOK, versionResponse{
		Version: version.Version,
		Commit: version.Commit,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// metricsSnapshot is the response of GET /metrics: aggregate
// counters only, no per-request or per-agent data.
type metricsSnapshot struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	DecisionsByVerdict map[string]float64 `json:"decisions_by_verdict"`
	RateLimitHits map[string]float64 `json:"rate_limit_hits_by_window"`
	AuditWriteFailures float64 `json:"audit_write_failures"`
	ActiveIntents float64 `json:"active_intents"`
	DecisionLatencyMS quantiles `json:"decision_latency_ms"`
}

type quantiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	families, err := s.metrics.Gather()
	if err != nil {
		WriteError(w, s.logger, "gathering metrics", err)
		return
	}

	snap := metricsSnapshot{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		DecisionsByVerdict: sumByLabel(families, "edon_decisions_total", "verdict"),
		RateLimitHits: sumByLabel(families, "edon_ratelimit_hits_total", "window"),
		AuditWriteFailures: sumCounter(families, "edon_audit_write_failures_total"),
		ActiveIntents: gaugeValue(families, "edon_intents_active"),
		DecisionLatencyMS: histogramQuantilesMS(families, "edon_decisions_latency_seconds"),
	}

	Respond(w, http.StatusOK, snap)
}

// trustSpecResponse is the response of GET /benchmark/trust-spec: a derived, operator-facing summary of how hard this deployment
// is to bypass, given its current safety-flag configuration.
type trustSpecResponse struct {
	LatencyOverheadMS float64 `json:"latency_overhead_ms"`
	BlockRate float64 `json:"block_rate"`
	BypassResistanceScore int `json:"bypass_resistance_score"`
}

func (s *Server) handleBenchmarkTrustSpec(w http.ResponseWriter, r *http.Request) {
	families, err := s.metrics.Gather()
	if err != nil {
		WriteError(w, s.logger, "gathering metrics", err)
		return
	}

	byVerdict := sumByLabel(families, "edon_decisions_total", "verdict")
	var total, blocked float64
	for verdict, count := range byVerdict {
		total += count
		if verdict == "BLOCK" || verdict == "PAUSE" {
			blocked += count
		}
	}
	var blockRate float64
	if total > 0 {
		blockRate = blocked / total
	}

	q := histogramQuantilesMS(families, "edon_decisions_latency_seconds")

	Respond(w, http.StatusOK, trustSpecResponse{
		LatencyOverheadMS: q.P50,
		BlockRate: blockRate,
		BypassResistanceScore: bypassResistanceScore(s.cfg.NetworkGating, s.cfg.TokenHardening, s.cfg.CredentialsStrict),
	})
}

// bypassResistanceScore is a monotone function of the three safety flags:
// network gating contributes 34 and each of the other two 33, summing to 100.
func bypassResistanceScore(networkGating, tokenHardening, credentialsStrict bool) int {
	score := 0
	if networkGating {
		score += 34
	}
	if tokenHardening {
		score += 33
	}
	if credentialsStrict {
		score += 33
	}
	return score
}

func sumByLabel(families []*dto.MetricFamily, name, labelName string) map[string]float64 {
	out := map[string]float64{}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			key := labelValue(m, labelName)
			out[key] += m.GetCounter().GetValue()
		}
	}
	return out
}

func sumCounter(families []*dto.MetricFamily, name string) float64 {
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(families []*dto.MetricFamily, name string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func labelValue(m *dto.Metric, labelName string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == labelName {
			return lp.GetValue()
		}
	}
	return ""
}

// histogramQuantilesMS estimates p50/p95/p99 in milliseconds from a
// histogram's cumulative bucket counts via linear interpolation — close
// enough for an operator-facing summary without adding a summary-type
// collector alongside the histogram.
func histogramQuantilesMS(families []*dto.MetricFamily, name string) quantiles {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			h := m.GetHistogram()
			if h == nil || h.GetSampleCount() == 0 {
				continue
			}
			return quantiles{
				P50: interpolateQuantile(h, 0.50) * 1000,
				P95: interpolateQuantile(h, 0.95) * 1000,
				P99: interpolateQuantile(h, 0.99) * 1000,
			}
		}
	}
	return quantiles{}
}

func interpolateQuantile(h *dto.Histogram, q float64) float64 {
	buckets := h.GetBucket()
	sorted := make([]*dto.Bucket, len(buckets))
	copy(sorted, buckets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GetUpperBound() < sorted[j].GetUpperBound() })

	target := q * float64(h.GetSampleCount())
	var prevCount float64
	var prevBound float64
	for _, b := range sorted {
		count := float64(b.GetCumulativeCount())
		bound := b.GetUpperBound()
		if count >= target {
			if count == prevCount {
				return bound
			}
			frac := (target - prevCount) / (count - prevCount)
			return prevBound + frac*(bound-prevBound)
		}
		prevCount = count
		prevBound = bound
	}
	return prevBound
}
