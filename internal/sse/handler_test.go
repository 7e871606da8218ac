package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headerCredential(r *http.Request) (string, bool) {
	c := r.Header.Get("X-Test-Credential")
	return c, c != ""
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_Unauthorized(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewHandler(m, headerCredential, m.logger)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_StreamsEvents(t *testing.T) {
	m, hooks := newTestManager(t)
	srv := httptest.NewServer(NewHandler(m, headerCredential, m.logger))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Test-Credential", "cred-a")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}

	assert.Equal(t, "event: connected", next())
	assert.True(t, strings.HasPrefix(next(), "id: "))
	assert.True(t, strings.HasPrefix(next(), "data: "))
	assert.Equal(t, "", next())
	assert.True(t, m.IsLive("cred-a"))

	m.Emit(NewChangeEvent(TableLabel, OpDeleted, map[string]int{"id": 3}))
	assert.Equal(t, "event: range_label.deleted", next())
	assert.True(t, strings.HasPrefix(next(), "id: "))
	assert.Contains(t, next(), `"table":"range_label"`)

	cancel()
	waitFor(t, func() bool { return !m.IsLive("cred-a") })
	_, disconnects := hooks.counts()
	assert.Equal(t, 1, disconnects)
}

func TestWebSocketHandler_StreamsEvents(t *testing.T) {
	m, hooks := newTestManager(t)
	srv := httptest.NewServer(NewWebSocketHandler(m, headerCredential, []string{"*"}, m.logger))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"X-Test-Credential": []string{"cred-ws"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)

	var greeting Event
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, EventConnected, greeting.Type)
	assert.True(t, m.IsLive("cred-ws"))

	m.Emit(NewChangeEvent(TableAvailability, OpCreated, map[string]int{"id": 9}))
	var change Event
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, EventType("range_availability.created"), change.Type)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	waitFor(t, func() bool { return !m.IsLive("cred-ws") })
	connects, disconnects := hooks.counts()
	assert.Equal(t, 1, connects)
	assert.Equal(t, 1, disconnects)
}

func TestWebSocketHandler_RejectsForeignOrigin(t *testing.T) {
	m, _ := newTestManager(t)
	srv := httptest.NewServer(NewWebSocketHandler(m, headerCredential, []string{"https://cal.example"}, m.logger))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{
		"X-Test-Credential": []string{"cred-ws"},
		"Origin":            []string{"https://evil.example"},
	}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	waitFor(t, func() bool { return !m.IsLive("cred-ws") })
}
