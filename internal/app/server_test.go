// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/hub"
	"github.com/relabs-tech/satellite_tracker/internal/ingest"
	"github.com/relabs-tech/satellite_tracker/internal/store"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type stubStatus struct{ status ingest.Status }

func (s stubStatus) Status() ingest.Status { return s.status }

type brokenStore struct{ *store.Memory }

func (brokenStore) Ping(context.Context) error { return errors.New("connection refused") }

func (brokenStore) Query(context.Context, time.Time, time.Time, string) ([]gps.SatelliteFix, error) {
	return nil, store.ErrUnavailable
}

func fixAt(ts time.Time, system string) gps.SatelliteFix {
	lat, lon := 48.1173, 11.5167
	return gps.SatelliteFix{Timestamp: ts, SentenceKind: gps.KindGGA, System: system, Latitude: &lat, Longitude: &lon}
}

func newTestServer(t *testing.T, st FixQuerier, status ingest.Status) (*Server, *hub.Registry, *httptest.Server) {
	t.Helper()
	registry := hub.New()
	s := NewServer(":0", "", registry, st, stubStatus{status}, clockwork.NewFakeClockAt(now))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, registry, ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func TestHealth_Healthy(t *testing.T) {
	_, _, ts := newTestServer(t, store.NewMemory(10), ingest.Status{State: ingest.StateRunning})

	var report healthReport
	code := getJSON(t, ts.URL+"/health", &report)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Healthy", report.Status)
	require.Len(t, report.Checks, 3)
	assert.Equal(t, healthCheck{Name: "ingestion", Status: "Healthy", Description: "running"}, report.Checks[0])
	assert.Equal(t, "store", report.Checks[1].Name)
	assert.Equal(t, "0 connected", report.Checks[2].Description)
}

func TestHealth_SourceFailure(t *testing.T) {
	status := ingest.Status{State: ingest.StateFailed, Err: errors.New("open /dev/ttyUSB0: permission denied")}
	_, _, ts := newTestServer(t, store.NewMemory(10), status)

	var report healthReport
	code := getJSON(t, ts.URL+"/health", &report)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Unhealthy", report.Status)
	assert.Equal(t, "Unhealthy", report.Checks[0].Status)
	assert.Contains(t, report.Checks[0].Description, "permission denied")
}

func TestHealth_StoreDown(t *testing.T) {
	_, _, ts := newTestServer(t, brokenStore{}, ingest.Status{State: ingest.StateRunning})

	var report healthReport
	code := getJSON(t, ts.URL+"/health", &report)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Unhealthy", report.Checks[1].Status)
	assert.Equal(t, "connection refused", report.Checks[1].Description)
}

func TestSatellites_DefaultWindow(t *testing.T) {
	mem := store.NewMemory(10)
	ctx := context.Background()
	require.NoError(t, mem.Append(ctx, fixAt(now.Add(-2*time.Hour), "GPS")))
	require.NoError(t, mem.Append(ctx, fixAt(now.Add(-30*time.Minute), "GPS")))
	require.NoError(t, mem.Append(ctx, fixAt(now.Add(-10*time.Minute), "GLONASS")))
	_, _, ts := newTestServer(t, mem, ingest.Status{State: ingest.StateRunning})

	var fixes []gps.SatelliteFix
	code := getJSON(t, ts.URL+"/api/satellites", &fixes)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, fixes, 2)

	code = getJSON(t, ts.URL+"/api/satellites?system=GLONASS", &fixes)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, fixes, 1)
	assert.Equal(t, "GLONASS", fixes[0].System)
}

func TestSatellites_ExplicitRange(t *testing.T) {
	mem := store.NewMemory(10)
	require.NoError(t, mem.Append(context.Background(), fixAt(now.Add(-2*time.Hour), "GPS")))
	_, _, ts := newTestServer(t, mem, ingest.Status{})

	from := now.Add(-3 * time.Hour).Format(time.RFC3339)
	to := now.Add(-time.Hour).Format(time.RFC3339)

	var fixes []gps.SatelliteFix
	code := getJSON(t, ts.URL+"/api/satellites?from="+from+"&to="+to, &fixes)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, fixes, 1)
}

func TestSatellites_EmptyIsArray(t *testing.T) {
	_, _, ts := newTestServer(t, store.NewMemory(10), ingest.Status{})

	resp, err := http.Get(ts.URL + "/api/satellites")
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func TestSatellites_BadRequests(t *testing.T) {
	_, _, ts := newTestServer(t, store.NewMemory(10), ingest.Status{})

	for _, query := range []string{
		"from=yesterday",
		"to=12:00",
		"from=2026-03-14T12:00:00Z&to=2026-03-14T11:00:00Z",
	} {
		var body map[string]string
		code := getJSON(t, ts.URL+"/api/satellites?"+query, &body)
		assert.Equal(t, http.StatusBadRequest, code, query)
		assert.NotEmpty(t, body["error"])
	}
}

func TestSatellites_StoreUnavailable(t *testing.T) {
	_, _, ts := newTestServer(t, brokenStore{}, ingest.Status{})

	var body map[string]string
	code := getJSON(t, ts.URL+"/api/satellites", &body)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestWebSocket_ReceivesBroadcasts(t *testing.T) {
	_, registry, ts := newTestServer(t, store.NewMemory(10), ingest.Status{})

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return registry.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	result := registry.Broadcast(fixAt(now, "GPS"))
	assert.Equal(t, 1, result.Delivered)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var fix gps.SatelliteFix
	require.NoError(t, json.Unmarshal(data, &fix))
	assert.Equal(t, gps.KindGGA, fix.SentenceKind)
	assert.InDelta(t, 48.1173, *fix.Latitude, 1e-9)

	// client messages are ignored
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello")))

	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	client.Close()

	require.Eventually(t, func() bool { return registry.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStaticDashboard(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>tracker</h1>"), 0o600))

	s := NewServer(":0", root, hub.New(), store.NewMemory(1), stubStatus{}, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, store.NewMemory(1), ingest.Status{})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
