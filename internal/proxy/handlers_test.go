package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cellgate/cellgate/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, gw *testutil.FakeGateway) *http.ServeMux {
	t.Helper()
	f := NewForwarder(Config{
		DefaultGatewayIP: "192.168.12.1",
		Timeout:          2 * time.Second,
		HealthTimeout:    500 * time.Millisecond,
	}, gw.Transport(), zap.NewNop())

	mux := http.NewServeMux()
	NewHandler(f, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func authHeaders() map[string]string {
	return map[string]string{
		HeaderGatewayIP: "192.168.12.1",
		HeaderAuthToken: testutil.FakeToken,
	}
}

func TestHandler_UnauthenticatedRead(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "GET", "/api/router/gateway", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["device"]; !ok {
		t.Error("response missing device block")
	}
}

func TestHandler_AuthenticatedReadRequiresToken(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	for _, path := range []string{
		"/api/router/cell",
		"/api/router/clients",
		"/api/router/sim",
		"/api/router/telemetry",
		"/api/router/ap",
	} {
		w := do(mux, "GET", path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, w.Code)
		}
		var body map[string]string
		_ = json.NewDecoder(w.Body).Decode(&body)
		if body["error"] != "Not authenticated" {
			t.Errorf("%s error = %q, want %q", path, body["error"], "Not authenticated")
		}
	}
}

func TestHandler_CellWithToken(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "GET", "/api/router/cell", "", authHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"gps"`) {
		t.Error("cell payload missing gps block")
	}
}

func TestHandler_Login(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "POST", "/api/router/login",
		`{"username":"admin","password":"secret","routerIp":"192.168.12.1"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp LoginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Token != testutil.FakeToken {
		t.Errorf("resp = %+v, want success with token", resp)
	}
	if resp.RouterIP != "192.168.12.1" {
		t.Errorf("routerIp = %q, want %q", resp.RouterIP, "192.168.12.1")
	}
	if resp.Username != "admin" {
		t.Errorf("username = %q, want %q", resp.Username, "admin")
	}
	if resp.Expiration == 0 {
		t.Error("expiration not relayed")
	}
}

func TestHandler_LoginBadCredentials(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "POST", "/api/router/login",
		`{"username":"admin","password":"wrong"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp LoginResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Success {
		t.Error("success = true for bad credentials")
	}
	if resp.Error == "" {
		t.Error("expected an error message")
	}
}

func TestHandler_LoginPublicAddressUsesDefault(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "POST", "/api/router/login",
		`{"username":"admin","password":"secret","routerIp":"8.8.8.8"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp LoginResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.RouterIP != "192.168.12.1" {
		t.Errorf("routerIp = %q, want the default", resp.RouterIP)
	}

	hosts := gw.Hosts()
	for _, h := range hosts {
		if h == "8.8.8.8" {
			t.Error("proxy forwarded to the rejected public address")
		}
	}
}

func TestHandler_LoginGatewayUnreachable(t *testing.T) {
	gw := testutil.NewFakeGateway()
	mux := newTestHandler(t, gw)
	gw.Close()

	w := do(mux, "POST", "/api/router/login",
		`{"username":"admin","password":"secret"}`, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var resp LoginResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if !strings.Contains(resp.Error, "gateway reachable") {
		t.Errorf("error = %q, want the friendly connection message", resp.Error)
	}
}

func TestHandler_SetApConfig(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "POST", "/api/router/ap", `{"ssids":[{"ssidName":"HomeNet"}]}`, authHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]bool
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if !resp["success"] {
		t.Error("success = false")
	}
}

func TestHandler_SetApConfigUpstreamError(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	gw.SetApSetError("wifi driver is busy")
	mux := newTestHandler(t, gw)

	w := do(mux, "POST", "/api/router/ap", `{"ssids":[]}`, authHeaders())
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] != "wifi driver is busy" {
		t.Errorf("error = %q, want upstream message", resp["error"])
	}
}

func TestHandler_RebootThenHealthOffline(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	// Log in, then reboot with the issued token.
	w := do(mux, "POST", "/api/router/login",
		`{"username":"admin","password":"secret","routerIp":"192.168.12.1"}`, nil)
	var login LoginResponse
	_ = json.NewDecoder(w.Body).Decode(&login)
	if !login.Success {
		t.Fatalf("login failed: %+v", login)
	}

	w = do(mux, "POST", "/api/router/reboot", "", map[string]string{
		HeaderGatewayIP: login.RouterIP,
		HeaderAuthToken: login.Token,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reboot status = %d, want 200", w.Code)
	}

	// Device goes dark; the next health poll must report it.
	gw.SetHang(2 * time.Second)

	w = do(mux, "GET", "/api/router/health", "", authHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}
	var health HealthStatus
	_ = json.NewDecoder(w.Body).Decode(&health)
	if health.Status != "offline" {
		t.Errorf("health = %q, want offline", health.Status)
	}
	if health.Message != "Connection timeout" {
		t.Errorf("message = %q, want %q", health.Message, "Connection timeout")
	}
}

func TestHandler_HealthStates(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "GET", "/api/router/health", "", nil)
	var health HealthStatus
	_ = json.NewDecoder(w.Body).Decode(&health)
	if health.Status != "online" {
		t.Errorf("status = %q, want online", health.Status)
	}
	if health.IP != "192.168.12.1" {
		t.Errorf("ip = %q, want default", health.IP)
	}

	gw.SetDown(true)
	w = do(mux, "GET", "/api/router/health", "", nil)
	health = HealthStatus{}
	_ = json.NewDecoder(w.Body).Decode(&health)
	if health.Status != "error" {
		t.Errorf("status = %q, want error for a 5xx answer", health.Status)
	}
}

func TestHandler_Logout(t *testing.T) {
	gw := testutil.NewFakeGateway()
	defer gw.Close()
	mux := newTestHandler(t, gw)

	w := do(mux, "POST", "/api/router/logout", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]bool
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if !resp["success"] {
		t.Error("success = false")
	}
}
