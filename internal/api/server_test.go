package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeTransformer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "7"})
		require.NoError(t, err)

		raw, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1,"success":true,"data":{"id":"7"}}`, string(raw))
	})

	t.Run("null data", func(t *testing.T) {
		result, err := EnvelopeTransformer(nil, "200", nil)
		require.NoError(t, err)

		raw, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1,"success":true,"data":null}`, string(raw))
	})

	t.Run("error", func(t *testing.T) {
		result, err := EnvelopeTransformer(nil, "403", &APIError{
			status:  http.StatusForbidden,
			Code:    "NOT_OWNER",
			Message: "Not your creator id",
			Details: map[string]int{"label_id": 3},
		})
		require.NoError(t, err)

		raw, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1,"success":false,"error":{"code":"NOT_OWNER","message":"Not your creator id","details":{"label_id":3}}}`, string(raw))
	})

	t.Run("already wrapped", func(t *testing.T) {
		env := &Envelope{V: 1, Success: true}
		result, err := EnvelopeTransformer(nil, "200", env)
		require.NoError(t, err)
		assert.Same(t, env, result)
	})
}

func TestStatusToCode(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusBadRequest, "VALIDATION"},
		{http.StatusUnprocessableEntity, "VALIDATION"},
		{http.StatusUnauthorized, "UNAUTHORIZED"},
		{http.StatusForbidden, "NOT_OWNER"},
		{http.StatusNotFound, "ROW_NOT_FOUND"},
		{http.StatusTooManyRequests, "RATE_LIMITED"},
		{http.StatusTeapot, "INTERNAL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusToCode(tt.status), "status %d", tt.status)
	}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["search"].Status)
	assert.Equal(t, "healthy", health.Components["stream"].Status)
}

func TestWorstStatus(t *testing.T) {
	assert.Equal(t, "healthy", worstStatus(map[string]ComponentHealth{"a": {Status: "healthy"}}))
	assert.Equal(t, "degraded", worstStatus(map[string]ComponentHealth{
		"a": {Status: "healthy"}, "b": {Status: "degraded"},
	}))
	assert.Equal(t, "unhealthy", worstStatus(map[string]ComponentHealth{
		"a": {Status: "degraded"}, "b": {Status: "unhealthy"},
	}))
}

func TestExportCalendar(t *testing.T) {
	ts := setupTestServer(t)
	token, user := ts.signIn(t, "ada")

	ts.createLabel(t, token, map[string]any{
		"title":       "Conference",
		"range_start": "2025-06-01T09:00:00Z",
		"range_end":   "2025-06-03T17:00:00Z",
	})
	ts.setAvailability(t, token, "2025-06-01T00:00:00Z", "2025-06-02T00:00:00Z", 2)

	resp := ts.api.Get(urlf("/api/v1/users/%d/calendar.ics", user.ID))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Type"), "text/calendar"))

	body := resp.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"), "feed is not wrapped in the JSON envelope")
	assert.Contains(t, body, "SUMMARY:Conference")
	assert.Equal(t, 2, strings.Count(body, "BEGIN:VEVENT"))

	resp = ts.api.Get("/api/v1/users/999/calendar.ics")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStream_ConnectionDrivesPresence(t *testing.T) {
	ts := setupTestServer(t)
	srv := httptest.NewServer(ts.Server)
	defer srv.Close()

	id := ts.issueIdentity(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/stream?token="+id.Token, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: connected", lines.Text())

	// The connection hook recorded the identity.
	session := decode[SessionResponse](t, ts.api.Get("/api/v1/session", bearer(id.Token)).Body.Bytes()).Data
	assert.True(t, session.Known)
	assert.True(t, session.Online)
	assert.Equal(t, 1, session.Connected)

	// Sign in over HTTP while the stream is open; the user goes online.
	user := ts.createUser(t, id.Token, "ada")
	connect := ts.api.Post("/api/v1/session/connect", bearer(id.Token), map[string]any{"user_id": user.ID})
	require.Equal(t, http.StatusOK, connect.Code, connect.Body.String())
	assert.True(t, decode[SessionResponse](t, connect.Body.Bytes()).Data.User.Online)

	cancel()
	require.Eventually(t, func() bool {
		resp := ts.api.Get(urlf("/api/v1/users/%d", user.ID))
		var env testEnvelope[struct {
			Online bool `json:"online"`
		}]
		return json.Unmarshal(resp.Body.Bytes(), &env) == nil && !env.Data.Online
	}, 2*time.Second, 20*time.Millisecond, "closing the last connection takes the user offline")
}

func TestStream_RequiresToken(t *testing.T) {
	ts := setupTestServer(t)
	srv := httptest.NewServer(ts.Server)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/stream?token=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, func(o *Options) { o.MetricsEnabled = true })

	ts.api.Get("/health")

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "headercal_http_requests_total")
}
