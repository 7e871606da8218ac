package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/api/v1/labels/{id}", normalizePath("/api/v1/labels/42"))
	assert.Equal(t, "/api/v1/users/{id}/calendar.ics", normalizePath("/api/v1/users/7/calendar.ics"))
	assert.Equal(t, "/health", normalizePath("/health"))
}

func TestRecordEntryPoint(t *testing.T) {
	before := testutil.ToFloat64(EntryPointCalls.WithLabelValues("test_entry", "ok"))
	RecordEntryPoint("test_entry", "")
	assert.Equal(t, before+1, testutil.ToFloat64(EntryPointCalls.WithLabelValues("test_entry", "ok")))
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/brew/{id}", "418"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew/12", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/brew/{id}", "418")))
}
