package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
	"github.com/nerrad567/gray-logic-tuyable/internal/device"
	"github.com/nerrad567/gray-logic-tuyable/internal/entity"
	"github.com/nerrad567/gray-logic-tuyable/internal/gateway"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-tuyable/internal/products"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeBridge implements Bridge with one device and one switch entity.
type fakeBridge struct {
	mu             sync.Mutex
	commands       []tuyable.CommandMessage
	commandErr     error
	stateObservers []func(tuyable.StateMessage)
	eventObservers []func(tuyable.EventMessage)
}

func (f *fakeBridge) Devices() []tuyable.DeviceView {
	d, _ := f.Device("bf0001")
	return []tuyable.DeviceView{d}
}

func (f *fakeBridge) Device(id string) (tuyable.DeviceView, bool) {
	if id != "bf0001" {
		return tuyable.DeviceView{}, false
	}
	return tuyable.DeviceView{
		DeviceMeta: products.DeviceMeta{
			DeviceID:     "bf0001",
			Address:      "DC:23:4D:00:00:01",
			Name:         "Garden valve",
			Manufacturer: products.DefaultManufacturer,
			Category:     "sfkzq",
			ProductID:    "nxquc5lb",
		},
		Connected:   true,
		EntityCount: 1,
	}, true
}

func (f *fakeBridge) Entities(id string) ([]tuyable.EntityView, error) {
	if id != "bf0001" {
		return nil, fmt.Errorf("%w: %s", tuyable.ErrDeviceNotFound, id)
	}
	return []tuyable.EntityView{{
		UniqueID:  "bf0001-water_valve",
		Key:       "water_valve",
		Platform:  entity.PlatformSwitch,
		DPID:      1,
		Available: true,
		State:     true,
		Commands:  entity.Commands(entity.PlatformSwitch),
	}}, nil
}

func (f *fakeBridge) ExecuteCommand(_ context.Context, deviceID, key string, cmd tuyable.CommandMessage) (tuyable.AckMessage, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	err := f.commandErr
	f.mu.Unlock()

	if cmd.ID == "" {
		cmd.ID = "generated"
	}
	return tuyable.NewAckMessage(cmd, deviceID, key, err), err
}

func (f *fakeBridge) OnStateChange(fn func(tuyable.StateMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateObservers = append(f.stateObservers, fn)
}

func (f *fakeBridge) OnEvent(fn func(tuyable.EventMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventObservers = append(f.eventObservers, fn)
}

func (f *fakeBridge) emitState(msg tuyable.StateMessage) {
	f.mu.Lock()
	fns := slices.Clone(f.stateObservers)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// fakeHistory implements device.StateHistoryRepository.
type fakeHistory struct {
	entries  []device.StateHistoryEntry
	err      error
	gotLimit int
}

func (f *fakeHistory) RecordState(context.Context, string, string, any, string) error { return nil }

func (f *fakeHistory) GetHistory(_ context.Context, _ string, limit int) ([]device.StateHistoryEntry, error) {
	f.gotLimit = limit
	return f.entries, f.err
}

func (f *fakeHistory) PruneHistory(context.Context, time.Duration) (int64, error) { return 0, nil }

// fakeDiscoveries implements device.DiscoveryRepository.
type fakeDiscoveries struct {
	found []device.Discovery
}

func (f *fakeDiscoveries) RecordDiscovery(context.Context, device.Discovery) error { return nil }

func (f *fakeDiscoveries) ListDiscoveries(context.Context) ([]device.Discovery, error) {
	return f.found, nil
}

type testEnv struct {
	srv         *Server
	bridge      *fakeBridge
	history     *fakeHistory
	discoveries *fakeDiscoveries
}

// testServer creates a Server over fakes. secret enables bearer auth.
func testServer(t *testing.T, secret string) *testEnv {
	t.Helper()

	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
	env := &testEnv{
		bridge:      &fakeBridge{},
		history:     &fakeHistory{},
		discoveries: &fakeDiscoveries{},
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security:    config.SecurityConfig{JWT: config.JWTConfig{Secret: secret, Issuer: "tuyable"}},
		Logger:      log,
		Bridge:      env.bridge,
		History:     env.history,
		Discoveries: env.discoveries,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)
	srv.relayBridgeUpdates()

	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func bearer(t *testing.T, secret, issuer string, ttl time.Duration) http.Header {
	t.Helper()
	token, err := IssueToken(secret, issuer, "tester", ttl)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.NewWithWriter(config.LoggingConfig{}, "test", io.Discard)
	if _, err := New(Deps{Bridge: &fakeBridge{}}); err == nil {
		t.Error("New() without logger: expected error")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without bridge: expected error")
	}
}

func TestRequestID_Validation(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		reused bool
	}{
		{"plain", "client-123", true},
		{"dotted", "trace.01:span_2", true},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
		{"header injection", "abc\r\nX-Evil: 1", false},
		{"spaces", "a b", false},
		{"unicode", "idé", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validRequestID(tt.id); got != tt.reused {
				t.Errorf("validRequestID(%q) = %v, want %v", tt.id, got, tt.reused)
			}
		})
	}

	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/health", "", http.Header{"X-Request-Id": {"a b"}})
	if got := w.Header().Get("X-Request-ID"); got == "a b" || !validRequestID(got) {
		t.Errorf("X-Request-ID = %q, want a generated ID", got)
	}
}

func TestErrorResponse_CarriesRequestID(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/devices/unknown", "", http.Header{"X-Request-Id": {"req-42"}})

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp := decode(t, w)
	if resp["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", resp["request_id"])
	}
	if resp["code"] != ErrCodeNotFound {
		t.Errorf("code = %v, want %s", resp["code"], ErrCodeNotFound)
	}
}

func TestRouter_JSONFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"unknown path", http.MethodGet, "/api/v1/nope", http.StatusNotFound, ErrCodeNotFound},
		{"wrong method", http.MethodDelete, "/api/v1/health", http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t, "")
			w := env.do(t, tt.method, tt.path, "", nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decode(t, w)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestResponseRecorder_Hijack(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := rec.Hijack(); err == nil {
		t.Error("Hijack() over a non-hijackable writer: expected error")
	}
	if rec.hijacked {
		t.Error("hijacked set after failed Hijack()")
	}

	rec.WriteHeader(http.StatusTeapot)
	rec.WriteHeader(http.StatusOK)
	n, _ := rec.Write([]byte("tea"))
	if rec.status != http.StatusTeapot || rec.bytes != n {
		t.Errorf("status = %d bytes = %d, want %d %d", rec.status, rec.bytes, http.StatusTeapot, n)
	}
}

func TestHealth(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	resp := decode(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["devices_connected"] != float64(1) {
		t.Errorf("devices_connected = %v, want 1", resp["devices_connected"])
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	w = env.do(t, http.MethodGet, "/api/v1/health", "", http.Header{"X-Request-Id": {"client-123"}})
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodOptions, "/api/v1/devices", "", http.Header{"Origin": {"http://localhost:3000"}})

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestProducts(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/products", "", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if n, _ := resp["count"].(float64); int(n) != len(products.All()) {
		t.Errorf("count = %v, want %d", resp["count"], len(products.All()))
	}
}

func TestDevices(t *testing.T) {
	env := testServer(t, "")

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantKey    string
	}{
		{"list", "/api/v1/devices", http.StatusOK, "devices"},
		{"get", "/api/v1/devices/bf0001", http.StatusOK, "device_id"},
		{"get missing", "/api/v1/devices/nope", http.StatusNotFound, "code"},
		{"entities", "/api/v1/devices/bf0001/entities", http.StatusOK, "entities"},
		{"entities missing", "/api/v1/devices/nope/entities", http.StatusNotFound, "code"},
		{"unknown route", "/api/v1/nonexistent", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantKey == "" {
				return
			}
			if _, ok := decode(t, w)[tt.wantKey]; !ok {
				t.Errorf("response missing %q: %s", tt.wantKey, w.Body.String())
			}
		})
	}
}

func TestEntityCommand(t *testing.T) {
	env := testServer(t, "")

	w := env.do(t, http.MethodPost, "/api/v1/devices/bf0001/entities/water_valve/command",
		`{"id":"cmd-1","command":"turn_on"}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", w.Code, http.StatusAccepted, w.Body.String())
	}

	var ack tuyable.AckMessage
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.CommandID != "cmd-1" || ack.Status != tuyable.AckAccepted {
		t.Errorf("ack = %+v", ack)
	}

	env.bridge.mu.Lock()
	defer env.bridge.mu.Unlock()
	if len(env.bridge.commands) != 1 || env.bridge.commands[0].Source != "api" {
		t.Errorf("commands = %+v, want one from api", env.bridge.commands)
	}
}

func TestEntityCommand_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing command", `{}`, nil, http.StatusBadRequest, ErrCodeValidation},
		{"entity not found", `{"command":"turn_on"}`, tuyable.ErrEntityNotFound, http.StatusNotFound, tuyable.ErrCodeEntityNotFound},
		{"unsupported", `{"command":"press"}`, entity.ErrUnsupportedCommand, http.StatusBadRequest, tuyable.ErrCodeInvalidCommand},
		{"bad value", `{"command":"select_option","value":3}`, entity.ErrInvalidCommandValue, http.StatusBadRequest, tuyable.ErrCodeInvalidParameters},
		{"unavailable", `{"command":"turn_on"}`, tuyable.ErrDeviceUnavailable, http.StatusServiceUnavailable, tuyable.ErrCodeDeviceUnavailable},
		{"bridge error", `{"command":"turn_on"}`, errors.New("boom"), http.StatusInternalServerError, tuyable.ErrCodeBridgeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t, "")
			env.bridge.commandErr = tt.err

			w := env.do(t, http.MethodPost, "/api/v1/devices/bf0001/entities/water_valve/command", tt.body, nil)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := decode(t, w)["code"]; got != tt.wantCode {
				t.Errorf("code = %v, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestDeviceHistory(t *testing.T) {
	env := testServer(t, "")
	env.history.entries = []device.StateHistoryEntry{
		{ID: 2, DeviceID: "bf0001", EntityKey: "water_valve", State: json.RawMessage(`{"value":true}`), Source: device.SourceDevice},
		{ID: 1, DeviceID: "bf0001", EntityKey: "water_valve", State: json.RawMessage(`{"value":false}`), Source: device.SourceCommand},
	}

	w := env.do(t, http.MethodGet, "/api/v1/devices/bf0001/history?limit=10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
	}
	if got := decode(t, w)["count"]; got != float64(2) {
		t.Errorf("count = %v, want 2", got)
	}
	if env.history.gotLimit != 10 {
		t.Errorf("limit = %d, want 10", env.history.gotLimit)
	}

	w = env.do(t, http.MethodGet, "/api/v1/devices/bf0001/history", "", nil)
	if w.Code != http.StatusOK || env.history.gotLimit != defaultHistoryLimit {
		t.Errorf("default limit: status %d, limit %d", w.Code, env.history.gotLimit)
	}
}

func TestDeviceHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		noHistory  bool
		queryErr   error
		wantStatus int
	}{
		{"zero limit", "/api/v1/devices/bf0001/history?limit=0", false, nil, http.StatusBadRequest},
		{"limit too large", "/api/v1/devices/bf0001/history?limit=201", false, nil, http.StatusBadRequest},
		{"non numeric", "/api/v1/devices/bf0001/history?limit=x", false, nil, http.StatusBadRequest},
		{"unknown device", "/api/v1/devices/nope/history", false, nil, http.StatusNotFound},
		{"no history store", "/api/v1/devices/bf0001/history", true, nil, http.StatusServiceUnavailable},
		{"query failure", "/api/v1/devices/bf0001/history", false, errors.New("db"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t, "")
			env.history.err = tt.queryErr
			if tt.noHistory {
				env.srv.history = nil
			}
			w := env.do(t, http.MethodGet, tt.path, "", nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDiscoveries(t *testing.T) {
	env := testServer(t, "")
	now := time.Now().UTC()
	env.discoveries.found = []device.Discovery{
		{Address: "DC:23:4D:00:00:01", RSSI: -50, LastSeen: now, SeenCount: 3},
		{Address: "AA:BB:CC:DD:EE:FF", RSSI: -80, LastSeen: now.Add(-time.Hour), SeenCount: 1},
	}

	w := env.do(t, http.MethodGet, "/api/v1/discoveries", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Discoveries []discoveryView `json:"discoveries"`
		Summary     DiscoverySummary `json:"summary"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Discoveries) != 2 || !resp.Discoveries[0].Paired || resp.Discoveries[1].Paired {
		t.Errorf("discoveries = %+v", resp.Discoveries)
	}
	want := DiscoverySummary{Total: 2, Paired: 1, ActiveLast5Min: 1}
	if resp.Summary != want {
		t.Errorf("summary = %+v, want %+v", resp.Summary, want)
	}

	env.srv.discoveries = nil
	if w := env.do(t, http.MethodGet, "/api/v1/discoveries", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without store: status = %d, want 503", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	env := testServer(t, "")
	w := env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Devices.Managed != 1 || m.Devices.Connected != 1 {
		t.Errorf("devices = %+v", m.Devices)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("expected goroutine count")
	}
	if m.Database != nil {
		t.Error("database metrics without a DB")
	}
	if m.Gateway != nil {
		t.Error("gateway metrics without a managed gateway")
	}

	env.srv.gateway = fakeGateway{}
	w = env.do(t, http.MethodGet, "/api/v1/metrics", "", nil)
	m = SystemMetrics{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Gateway == nil || m.Gateway.Status != gateway.StatusRunning || m.Gateway.Restarts != 2 {
		t.Errorf("gateway = %+v, want running with 2 restarts", m.Gateway)
	}
}

type fakeGateway struct{}

func (fakeGateway) Stats() gateway.Stats {
	return gateway.Stats{Name: "gateway", Status: gateway.StatusRunning, PID: 42, Restarts: 2}
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     func(t *testing.T) http.Header
		wantStatus int
	}{
		{"no token", func(*testing.T) http.Header { return nil }, http.StatusUnauthorized},
		{"not bearer", func(*testing.T) http.Header { return http.Header{"Authorization": {"Basic abc"}} }, http.StatusUnauthorized},
		{"garbage", func(*testing.T) http.Header { return http.Header{"Authorization": {"Bearer abc"}} }, http.StatusUnauthorized},
		{"wrong secret", func(t *testing.T) http.Header {
			return bearer(t, "another-secret-key-at-least-32-characters", "tuyable", time.Minute)
		}, http.StatusUnauthorized},
		{"wrong issuer", func(t *testing.T) http.Header { return bearer(t, testSecret, "other", time.Minute) }, http.StatusUnauthorized},
		{"expired", func(t *testing.T) http.Header { return bearer(t, testSecret, "tuyable", -time.Minute) }, http.StatusUnauthorized},
		{"valid", func(t *testing.T) http.Header { return bearer(t, testSecret, "tuyable", time.Minute) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t, testSecret)
			w := env.do(t, http.MethodGet, "/api/v1/devices", "", tt.header(t))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuth_PublicRoutes(t *testing.T) {
	env := testServer(t, testSecret)
	for _, path := range []string{"/api/v1/health", "/api/v1/products", "/api/v1/metrics"} {
		if w := env.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, w.Code)
		}
	}
}

func TestIssueToken_EmptySecret(t *testing.T) {
	if _, err := IssueToken("", "", "x", time.Minute); err == nil {
		t.Error("IssueToken with empty secret: expected error")
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	env := testServer(t, testSecret)
	w := env.do(t, http.MethodPost, "/api/v1/auth/ws-ticket", "", bearer(t, testSecret, "tuyable", time.Minute))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	ticket, _ := decode(t, w)["ticket"].(string)
	if ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}
	if !env.srv.validateTicket(ticket) {
		t.Error("ticket should be valid on first use")
	}
	if env.srv.validateTicket(ticket) {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	env := testServer(t, testSecret)
	ticket := generateTicket()
	env.srv.tickets.mu.Lock()
	env.srv.tickets.tickets[ticket] = time.Now().Add(-time.Second)
	env.srv.tickets.mu.Unlock()

	if env.srv.validateTicket(ticket) {
		t.Error("expired ticket should not be valid")
	}
}

func testHub(source StateSource) *Hub {
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log, source)
}

// subscribedClient registers a client that already subscribed to channel
// for devices (all devices when none are given).
func subscribedClient(hub *Hub, channel string, devices ...string) *WSClient {
	c := newWSClient(hub, nil)
	c.channels[channel] = struct{}{}
	for _, id := range devices {
		c.devices[id] = struct{}{}
	}
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return WSMessage{}
}

func expectNothing(t *testing.T, c *WSClient) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Errorf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishToSubscribedChannels(t *testing.T) {
	hub := testHub(nil)
	states := subscribedClient(hub, ChannelStateChanged)
	events := subscribedClient(hub, ChannelDeviceEvent)
	if hub.ClientCount() != 2 {
		t.Errorf("client count = %d, want 2", hub.ClientCount())
	}

	hub.PublishState(tuyable.StateMessage{DeviceID: "bf0001", Key: "water_valve", Value: true})

	msg := receive(t, states)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStateChanged {
		t.Errorf("message = %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp not set")
	}
	expectNothing(t, events)

	hub.PublishEvent(tuyable.EventMessage{DeviceID: "bf0001", Event: "press"})
	if msg := receive(t, events); msg.EventType != ChannelDeviceEvent {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelDeviceEvent)
	}
	expectNothing(t, states)

	hub.Unregister(events)
	hub.Unregister(events)
	if hub.ClientCount() != 1 {
		t.Errorf("after unregister count = %d, want 1", hub.ClientCount())
	}
}

func TestHub_DeviceFilter(t *testing.T) {
	hub := testHub(nil)
	valve := subscribedClient(hub, ChannelStateChanged, "bf0001")
	all := subscribedClient(hub, ChannelStateChanged)

	hub.PublishState(tuyable.StateMessage{DeviceID: "bf0002", Key: "switch"})

	expectNothing(t, valve)
	if msg := receive(t, all); msg.EventType != ChannelStateChanged {
		t.Errorf("event_type = %q", msg.EventType)
	}

	hub.PublishState(tuyable.StateMessage{DeviceID: "bf0001", Key: "water_valve"})
	payload, _ := receive(t, valve).Payload.(map[string]any)
	if payload["device_id"] != "bf0001" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := testHub(nil)
	c := subscribedClient(hub, ChannelStateChanged)

	for range wsSendBufferSize + 3 {
		hub.PublishState(tuyable.StateMessage{DeviceID: "bf0001", Key: "water_valve"})
	}
	if got := hub.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if len(c.send) != wsSendBufferSize {
		t.Errorf("queued = %d, want %d", len(c.send), wsSendBufferSize)
	}

	// A publish racing with disconnect must not panic.
	hub.Unregister(c)
	c.trySend([]byte("{}"))
}

func TestHub_RunClosesClients(t *testing.T) {
	hub := testHub(nil)
	c := subscribedClient(hub, ChannelStateChanged)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel still open")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("client count = %d, want 0", hub.ClientCount())
	}
}

func TestWSClient_Requests(t *testing.T) {
	tests := []struct {
		name     string
		request  string
		wantType string
		wantSub  bool
	}{
		{"subscribe", `{"type":"subscribe","id":"1","payload":{"channels":["entity.state_changed"]}}`, WSTypeResponse, true},
		{"unknown channel", `{"type":"subscribe","id":"1","payload":{"channels":["device.discovered"]}}`, WSTypeError, false},
		{"no channels", `{"type":"subscribe","id":"1","payload":{"device_ids":["bf0001"]}}`, WSTypeError, false},
		{"missing payload", `{"type":"subscribe","id":"1"}`, WSTypeError, false},
		{"bad payload", `{"type":"subscribe","id":"1","payload":{"channels":"entity.state_changed"}}`, WSTypeError, false},
		{"unknown type", `{"type":"command","id":"1"}`, WSTypeError, false},
		{"ping", `{"type":"ping","id":"1"}`, WSTypePong, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := testHub(nil)
			c := newWSClient(hub, nil)
			hub.Register(c)

			c.handleRequest([]byte(tt.request))

			msg := receive(t, c)
			if msg.Type != tt.wantType || msg.ID != "1" {
				t.Errorf("reply = %+v, want type %s id 1", msg, tt.wantType)
			}
			if got := c.wantsChannel(ChannelStateChanged); got != tt.wantSub {
				t.Errorf("subscribed = %v, want %v", got, tt.wantSub)
			}
		})
	}
}

func TestWSClient_Unsubscribe(t *testing.T) {
	hub := testHub(nil)
	c := subscribedClient(hub, ChannelStateChanged, "bf0001")

	c.handleRequest([]byte(`{"type":"unsubscribe","id":"u1","payload":{"channels":["entity.state_changed"],"device_ids":["bf0001"]}}`))
	if msg := receive(t, c); msg.Type != WSTypeResponse {
		t.Fatalf("reply = %+v", msg)
	}
	if c.wants(ChannelStateChanged, "bf0001") {
		t.Error("still subscribed after unsubscribe")
	}
}

func TestWSClient_SubscribeReplay(t *testing.T) {
	hub := testHub(&fakeBridge{})
	c := newWSClient(hub, nil)
	hub.Register(c)

	c.handleRequest([]byte(`{"type":"subscribe","id":"s1","payload":{"channels":["entity.state_changed"],"device_ids":["bf0001"],"replay":true}}`))

	if msg := receive(t, c); msg.Type != WSTypeResponse {
		t.Fatalf("first reply = %+v, want response", msg)
	}
	msg := receive(t, c)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelStateChanged {
		t.Fatalf("replay = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["key"] != "water_valve" || payload["value"] != true {
		t.Errorf("replay payload = %v", payload)
	}
	expectNothing(t, c)

	other := newWSClient(hub, nil)
	hub.Register(other)
	other.handleRequest([]byte(`{"type":"subscribe","payload":{"channels":["entity.state_changed"],"device_ids":["bf0002"],"replay":true}}`))
	receive(t, other)
	expectNothing(t, other)
}

func dialWS(t *testing.T, ts *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestWebSocket_RelaysBridgeState(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ws, _, err := dialWS(t, ts, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelStateChanged}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("response = %+v", resp)
	}

	env.bridge.emitState(tuyable.StateMessage{DeviceID: "bf0001", Key: "water_valve", Available: true, Value: true})

	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent || resp.EventType != ChannelStateChanged {
		t.Errorf("broadcast = %+v", resp)
	}
	payload, _ := resp.Payload.(map[string]any)
	if payload["key"] != "water_valve" {
		t.Errorf("payload = %v", resp.Payload)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := testServer(t, "")
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	ws, _, err := dialWS(t, ts, "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if resp.Type != WSTypePong || resp.ID != "p1" {
		t.Errorf("response = %+v, want pong p1", resp)
	}
}

func TestWebSocket_TicketRequiredWithAuth(t *testing.T) {
	env := testServer(t, testSecret)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	for _, query := range []string{"", "?ticket=invalid"} {
		_, resp, err := dialWS(t, ts, query)
		if err == nil {
			t.Fatalf("dial %q: expected error", query)
		}
		if resp != nil && resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("dial %q: status = %d, want 401", query, resp.StatusCode)
		}
	}

	ticket := generateTicket()
	env.srv.tickets.mu.Lock()
	env.srv.tickets.tickets[ticket] = time.Now().Add(time.Minute)
	env.srv.tickets.mu.Unlock()

	ws, _, err := dialWS(t, ts, "?ticket="+ticket)
	if err != nil {
		t.Fatalf("dial with ticket: %v", err)
	}
	ws.Close()
}

func TestServer_StartAndClose(t *testing.T) {
	env := testServer(t, "")
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start: expected error")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close before Start: %v", err)
	}
}
