package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	mu         sync.Mutex
	counters   []call
	histograms []call
	flushes    int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// install swaps in a fake for the duration of the test. Tests that touch the
// global backend do not run in parallel.
func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := current()
	t.Cleanup(func() { SetBackend(orig) })
	fb := &fakeBackend{}
	SetBackend(fb)
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("nightly", "schema_reset", nil, 2*time.Second)
	RecordStep("nightly", "load_staging", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)

	assert.Equal(t, call{StepTotal, 1, Labels{"job": "nightly", "step": "schema_reset", "status": StatusSuccess}}, fb.counters[0])
	assert.Equal(t, StatusFailure, fb.counters[1].labels["status"])
	assert.Equal(t, StepDuration, fb.histograms[0].name)
	assert.InDelta(t, 2.0, fb.histograms[0].value, 0.001)
	assert.InDelta(t, 1.5, fb.histograms[1].value, 0.001)
}

func TestRecordRowsAndBatches(t *testing.T) {
	fb := install(t)

	RecordRows("nightly", "staging_events", RowKindStaged, 8056)
	RecordRows("nightly", "users", RowKindInserted, 0)
	RecordRows("nightly", "users", RowKindInserted, -1)
	RecordBatches("nightly", "staging_events", 9)
	RecordBatches("nightly", "staging_songs", 0)

	require.Len(t, fb.counters, 2)
	assert.Equal(t, call{RowsTotal, 8056, Labels{"job": "nightly", "table": "staging_events", "kind": RowKindStaged}}, fb.counters[0])
	assert.Equal(t, call{BatchesTotal, 9, Labels{"job": "nightly", "table": "staging_events"}}, fb.counters[1])
}

func TestSetBackendAndFlush(t *testing.T) {
	fb := install(t)

	require.NoError(t, Flush())
	assert.Equal(t, 1, fb.flushes)

	SetBackend(nil)
	assert.Same(t, fb, current().(*fakeBackend))
}
