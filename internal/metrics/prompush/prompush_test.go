package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"sparkify/internal/metrics"
)

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "nightly", wantErr: true},
		{name: "empty job uses default", gatewayURL: "http://pushgateway:9091", wantJobName: DefaultJob},
		{name: "explicit job kept", jobName: "nightly", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend() = %v, %v; want nil, error", b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestBackend_RoutesMetrics(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("nightly", "http://pushgateway:9091")
	if err != nil {
		t.Fatal(err)
	}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load_staging", "status": "success"})
	b.IncCounter(metrics.StepTotal, 2, metrics.Labels{"step": "load_staging", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 8056, metrics.Labels{"table": "staging_events", "kind": "staged"})
	b.IncCounter(metrics.BatchesTotal, 9, metrics.Labels{"table": "staging_events"})
	b.IncCounter("unknown_metric", 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "transform", "status": "failure"})
	b.ObserveHistogram("unknown_metric", 1, nil)

	if got := testutil.ToFloat64(b.stepCounter.WithLabelValues("load_staging", "success")); got != 3 {
		t.Fatalf("step counter = %v, want 3", got)
	}
	if got := testutil.ToFloat64(b.rowCounter.WithLabelValues("staging_events", "staged")); got != 8056 {
		t.Fatalf("row counter = %v, want 8056", got)
	}
	if got := testutil.ToFloat64(b.batchCounter.WithLabelValues("staging_events")); got != 9 {
		t.Fatalf("batch counter = %v, want 9", got)
	}
	if n := testutil.CollectAndCount(b.stepDuration); n != 1 {
		t.Fatalf("summary series = %d, want 1", n)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b, err := NewBackend("nightly", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "run", "status": "success"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Fatalf("method = %q, want PUT", method)
	}
	if path != "/metrics/job/nightly" {
		t.Fatalf("path = %q, want /metrics/job/nightly", path)
	}
	if len(body) == 0 {
		t.Fatalf("empty push body")
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	b, err := NewBackend("nightly", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err == nil {
		t.Fatal("Flush() error = nil, want gateway error")
	}
}
