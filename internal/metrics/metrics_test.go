package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/osusume/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", models.ErrNotFound), "not_found"},
		{models.ErrSnapshotMismatch, "invalid"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuery(KindSimilar, "tfidf", time.Millisecond, nil)
	m.ObserveQuery(KindSimilar, "tfidf", time.Millisecond, models.ErrNotFound)
	m.ObserveReload(42, nil)
	m.ObserveReload(0, errors.New("bad file"))
	m.ObserveCache(true)
	m.ObserveCache(false)
	m.ObserveCache(false)

	if got := testutil.ToFloat64(m.Recommendations.WithLabelValues(KindSimilar, "tfidf", "ok")); got != 1 {
		t.Errorf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(m.Recommendations.WithLabelValues(KindSimilar, "tfidf", "not_found")); got != 1 {
		t.Errorf("not_found count = %v", got)
	}
	if got := testutil.ToFloat64(m.CatalogMovies); got != 42 {
		t.Errorf("catalog gauge = %v, failed reload must not reset it", got)
	}
	if got := testutil.ToFloat64(m.Reloads.WithLabelValues("error")); got != 1 {
		t.Errorf("reload errors = %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache misses = %v", got)
	}
	if n := testutil.CollectAndCount(m.Duration); n != 1 {
		t.Errorf("duration series = %d", n)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveQuery(KindGenre, "", time.Second, nil)
	m.ObserveReload(1, nil)
	m.ObserveCache(true)
}
