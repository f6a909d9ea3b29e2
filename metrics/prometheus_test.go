package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"orgcreator.handle.total": "orgcreator_handle_total",
		" Claim-ID ":              "claim_id",
		"..a..b..":                "a_b",
		"5xx":                     "_5xx",
		"":                        "",
	}
	for input, expected := range cases {
		if got := SanitizeName(input); got != expected {
			t.Fatalf("expected %q for %q, got %q", expected, input, got)
		}
	}
}

func TestPrometheusRecorderCountsWithTags(t *testing.T) {
	recorder := NewPrometheusRecorder(nil)
	ctx := context.Background()

	recorder.IncCounter(ctx, "orgcreator.handle.total", 1, map[string]string{"status": "success", "outcome": "accepted"})
	recorder.IncCounter(ctx, "orgcreator.handle.total", 2, map[string]string{"status": "success", "outcome": "accepted"})
	recorder.IncCounter(ctx, "orgcreator.handle.total", 1, map[string]string{"status": "failure"})

	entry := recorder.counters["orgcreator_handle_total"]
	if entry == nil {
		t.Fatalf("expected counter to be registered")
	}
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("accepted", "success")); got != 3 {
		t.Fatalf("expected 3 accepted successes, got %v", got)
	}
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("", "failure")); got != 1 {
		t.Fatalf("expected folded failure series, got %v", got)
	}
}

func TestPrometheusRecorderPrefixesNamespaceAndServes(t *testing.T) {
	recorder := NewPrometheusRecorder(nil)
	recorder.ObserveHistogram(context.Background(), "poll.duration_ms", 42, map[string]string{"status": "success"})

	if _, ok := recorder.histograms["orgcreator_poll_duration_ms"]; !ok {
		t.Fatalf("expected namespaced histogram, got %v", recorder.histograms)
	}

	rec := httptest.NewRecorder()
	recorder.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `orgcreator_poll_duration_ms_count{status="success"} 1`) {
		t.Fatalf("expected histogram in exposition, got:\n%s", body)
	}
}

func TestPrometheusRecorderIgnoresNegativeCounterIncrements(t *testing.T) {
	recorder := NewPrometheusRecorder(nil)
	recorder.IncCounter(context.Background(), "orgcreator.handle.total", -1, nil)
	if len(recorder.counters) != 0 {
		t.Fatalf("expected negative increment to be ignored")
	}
}
