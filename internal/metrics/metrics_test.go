package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcal/internal/model"
)

func TestMetrics_ObserveFetchAndRun(t *testing.T) {
	m := New()

	m.ObserveFetch("work", "ok", 120*time.Millisecond)
	m.ObserveFetch("home", "TimeoutError", 10*time.Second)
	m.ObserveFetch("home", "TimeoutError", 10*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchTotal.WithLabelValues("work", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetchTotal.WithLabelValues("home", "TimeoutError")))

	m.ObserveRun(&model.AggregationResult{
		GeneratedAt:  time.Unix(1700000000, 0),
		Events:       []model.Event{{Summary: "a"}},
		TotalFetched: 4,
		Outcomes:     []model.FetchOutcome{{Success: true}, {Success: false}},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.eventsFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsReturned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourcesFailed))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRun))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveFetch("work", "ok", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `feedcal_source_fetches_total{result="ok",source="work"} 1`)
}
