package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/storage-adapters/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverRecordsResultKinds(t *testing.T) {
	ok := adapterOperationsTotal.WithLabelValues("m1", "insert", "ok")
	noKey := adapterOperationsTotal.WithLabelValues("m1", "remove", "no_key")
	backend := adapterOperationsTotal.WithLabelValues("m1", "getBuffer", "backend")

	before := []float64{testutil.ToFloat64(ok), testutil.ToFloat64(noKey), testutil.ToFloat64(backend)}

	var obs adapter.OperationObserver = Observer{}
	obs.ObserveOperation("m1", "insert", time.Millisecond, nil)
	obs.ObserveOperation("m1", "remove", time.Millisecond, &adapter.NoKeyError{Adapter: "m1", Op: "remove"})
	obs.ObserveOperation("m1", "getBuffer", time.Millisecond, errors.New("connection reset"))

	assert.Equal(t, before[0]+1, testutil.ToFloat64(ok))
	assert.Equal(t, before[1]+1, testutil.ToFloat64(noKey))
	assert.Equal(t, before[2]+1, testutil.ToFloat64(backend))
}

func TestRecordBackendBytes(t *testing.T) {
	c := backendBytesTotal.WithLabelValues("m2", DirectionIn)
	before := testutil.ToFloat64(c)
	RecordBackendBytes("m2", DirectionIn, 128)
	assert.Equal(t, before+128, testutil.ToFloat64(c))
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	RecordHTTPRequest(http.MethodGet, "/api/stores", http.StatusOK, time.Millisecond)

	_, err := New("test-service", "v0.0.0", "127.0.0.1:0")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "storage_http_requests_total"))
	assert.True(t, strings.Contains(body, `storage_build_info{service="test-service",version="v0.0.0"} 1`))
}
