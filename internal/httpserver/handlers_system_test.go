package httpserver

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestBypassResistanceScore(t *testing.T) {
	tests := []struct {
		name                                              string
		networkGating, tokenHardening, credentialsStrict bool
		want                                              int
	}{
		{"all off", false, false, false, 0},
		{"all on", true, true, true, 100},
		{"network only", true, false, false, 34},
		{"token only", false, true, false, 33},
		{"credentials only", false, false, true, 33},
		{"network and token", true, true, false, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bypassResistanceScore(tt.networkGating, tt.tokenHardening, tt.credentialsStrict)
			if got != tt.want {
				t.Errorf("bypassResistanceScore(%v, %v, %v) = %d, want %d",
					tt.networkGating, tt.tokenHardening, tt.credentialsStrict, got, tt.want)
			}
		})
	}
}

func counterFamily(name string, labelName string, entries map[string]float64) *dto.MetricFamily {
	fam := &dto.MetricFamily{Name: &name}
	for label, value := range entries {
		v := value
		l := label
		ln := labelName
		fam.Metric = append(fam.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: &ln, Value: &l}},
			Counter: &dto.Counter{Value: &v},
		})
	}
	return fam
}

func TestSumByLabel(t *testing.T) {
	families := []*dto.MetricFamily{
		counterFamily("edon_decisions_total", "verdict", map[string]float64{"ALLOW": 3, "BLOCK": 1}),
		counterFamily("edon_ratelimit_hits_total", "window", map[string]float64{"minute": 9}),
	}

	got := sumByLabel(families, "edon_decisions_total", "verdict")
	if got["ALLOW"] != 3 || got["BLOCK"] != 1 {
		t.Errorf("sumByLabel() = %v, want ALLOW:3 BLOCK:1", got)
	}
	if len(got) != 2 {
		t.Errorf("sumByLabel() should not include rows from other families, got %v", got)
	}
}

func TestSumCounter(t *testing.T) {
	families := []*dto.MetricFamily{
		counterFamily("edon_audit_write_failures_total", "", map[string]float64{"": 4}),
	}
	if got := sumCounter(families, "edon_audit_write_failures_total"); got != 4 {
		t.Errorf("sumCounter() = %v, want 4", got)
	}
	if got := sumCounter(families, "nonexistent"); got != 0 {
		t.Errorf("sumCounter() for missing family = %v, want 0", got)
	}
}

func TestGaugeValue(t *testing.T) {
	name := "edon_intents_active"
	v := 7.0
	fam := &dto.MetricFamily{
		Name:   &name,
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &v}}},
	}
	if got := gaugeValue([]*dto.MetricFamily{fam}, "edon_intents_active"); got != 7 {
		t.Errorf("gaugeValue() = %v, want 7", got)
	}
	if got := gaugeValue([]*dto.MetricFamily{fam}, "missing"); got != 0 {
		t.Errorf("gaugeValue() for missing family = %v, want 0", got)
	}
}

func histogramFamily(name string, upperBounds []float64, cumulativeCounts []uint64, sampleCount uint64) *dto.MetricFamily {
	var buckets []*dto.Bucket
	for i, ub := range upperBounds {
		b := ub
		c := cumulativeCounts[i]
		buckets = append(buckets, &dto.Bucket{UpperBound: &b, CumulativeCount: &c})
	}
	sc := sampleCount
	return &dto.MetricFamily{
		Name: &name,
		Metric: []*dto.Metric{{
			Histogram: &dto.Histogram{SampleCount: &sc, Bucket: buckets},
		}},
	}
}

func TestHistogramQuantilesMS(t *testing.T) {
	// 10 samples: 5 at <=0.01s, 4 more at <=0.05s (cumulative 9), 1 more at <=0.1s (cumulative 10).
	fam := histogramFamily("edon_decisions_latency_seconds",
		[]float64{0.01, 0.05, 0.1},
		[]uint64{5, 9, 10},
		10,
	)

	q := histogramQuantilesMS([]*dto.MetricFamily{fam}, "edon_decisions_latency_seconds")
	if q.P50 <= 0 {
		t.Errorf("P50 = %v, want > 0", q.P50)
	}
	if q.P99 < q.P50 {
		t.Errorf("P99 (%v) should be >= P50 (%v)", q.P99, q.P50)
	}
}

func TestHistogramQuantilesMS_EmptyHistogram(t *testing.T) {
	fam := histogramFamily("edon_decisions_latency_seconds", nil, nil, 0)
	q := histogramQuantilesMS([]*dto.MetricFamily{fam}, "edon_decisions_latency_seconds")
	if q.P50 != 0 || q.P95 != 0 || q.P99 != 0 {
		t.Errorf("quantiles for an empty histogram should all be zero, got %+v", q)
	}
}
