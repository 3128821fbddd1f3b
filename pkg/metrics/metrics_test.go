package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := New()
	c := r.Counter("sim_requests_total", "Simulation requests handled")
	if c.Value() != 0 {
		t.Fatalf("fresh counter = %d, want 0", c.Value())
	}
	c.Inc()
	c.Inc()
	c.Add(5)
	if c.Value() != 7 {
		t.Fatalf("counter = %d, want 7", c.Value())
	}
	if r.Counter("sim_requests_total", "") != c {
		t.Fatal("same name must return the same counter instance")
	}
}

func TestGauge(t *testing.T) {
	r := New()
	g := r.Gauge("sim_active", "In-flight simulations")
	g.Set(42)
	if g.Value() != 42 {
		t.Fatalf("gauge = %d, want 42", g.Value())
	}
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 43 {
		t.Fatalf("gauge = %d, want 43", g.Value())
	}
}

func TestGaugeFloat(t *testing.T) {
	r := New()
	g := r.Gauge("sim_horizon_seconds", "")
	g.SetFloat(100.5)
	if g.FloatValue() != 100.5 {
		t.Fatalf("FloatValue = %f, want 100.5", g.FloatValue())
	}
}

func TestHistogram(t *testing.T) {
	r := New()
	h := r.Histogram("sim_duration_seconds", "Simulation wall time", []float64{0.1, 0.5, 1.0})
	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.8)
	h.Observe(2.0)

	buckets, counts, sum, count := h.snapshot()
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
	if len(buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(buckets))
	}
	want := []uint64{1, 1, 1} // one observation per finite bucket, 2.0 only in +Inf
	for i, w := range want {
		if counts[i] != w {
			t.Fatalf("bucket le=%v count = %d, want %d", buckets[i], counts[i], w)
		}
	}
	wantSum := 0.05 + 0.3 + 0.8 + 2.0
	if sum != wantSum {
		t.Fatalf("sum = %f, want %f", sum, wantSum)
	}
}

func TestHistogramSince(t *testing.T) {
	r := New()
	h := r.Histogram("integration_seconds", "", nil)
	h.Since(time.Now().Add(-100 * time.Millisecond))
	_, _, _, count := h.snapshot()
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestWithLabels(t *testing.T) {
	got := WithLabels("sim_requests_total", "status", "success", "kind", "repression")
	want := `sim_requests_total{status="success",kind="repression"}`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if WithLabels("bare") != "bare" {
		t.Fatal("name without labels must pass through unchanged")
	}
}

func TestRender(t *testing.T) {
	r := New()
	r.Counter("sim_requests_total", "Simulation requests").Add(10)
	r.Counter(WithLabels("sim_requests_total", "status", "success"), "").Add(7)
	r.Counter(WithLabels("sim_requests_total", "status", "error"), "").Add(3)
	r.Gauge("sim_active", "In-flight simulations").Set(5)
	h := r.Histogram("sim_duration_seconds", "Simulation wall time", []float64{0.1, 0.5, 1.0})
	h.Observe(0.05)
	h.Observe(0.3)

	out := r.Render()

	for _, want := range []string{
		"# TYPE sim_requests_total counter",
		"# TYPE sim_active gauge",
		"# TYPE sim_duration_seconds histogram",
		"sim_requests_total 10",
		`sim_requests_total{status="success"} 7`,
		`sim_requests_total{status="error"} 3`,
		"sim_active 5",
		`sim_duration_seconds_bucket{le="0.1"} 1`,
		`sim_duration_seconds_bucket{le="+Inf"} 2`,
		"sim_duration_seconds_count 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q, got:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("sim_requests_total", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "sim_requests_total 1") {
		t.Error("metric missing from handler output")
	}
}

func TestMetricBaseName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"sim_requests_total", "sim_requests_total"},
		{`sim_requests_total{status="success"}`, "sim_requests_total"},
		{`x{a="1",b="2"}`, "x"},
	}
	for _, tt := range tests {
		if got := metricBaseName(tt.in); got != tt.want {
			t.Errorf("metricBaseName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollectRuntime(t *testing.T) {
	r := New()
	r.CollectRuntime("geneboard_test", time.Hour)
	if r.Gauge("geneboard_test_go_goroutines", "").Value() < 1 {
		t.Error("goroutine gauge not sampled")
	}
	if !strings.Contains(r.Render(), "geneboard_test_go_heap_alloc_bytes") {
		t.Error("heap gauge missing from render")
	}
}
