package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func newTestServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	return New("127.0.0.1:0", zap.NewNop(), ready, nil, false)
}

func TestHandleHealthz(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/healthz", http.NoBody)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("status = %q, want %q", body["status"], "alive")
	}
}

func TestHandleReadyz_Ready(t *testing.T) {
	s := newTestServer(t, func(_ context.Context) error { return nil })

	req := httptest.NewRequest("GET", "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestHandleReadyz_NotReady(t *testing.T) {
	s := newTestServer(t, func(_ context.Context) error {
		return fmt.Errorf("gateway unreachable")
	})

	req := httptest.NewRequest("GET", "/readyz", http.NoBody)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "gateway unreachable" {
		t.Errorf("error = %q, want %q", body["error"], "gateway unreachable")
	}
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/api/version", http.NoBody)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body VersionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Service != "cellgate" {
		t.Errorf("service = %q, want %q", body.Service, "cellgate")
	}
}

func TestRouteRegistrar(t *testing.T) {
	reg := registrarFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("GET /api/extra", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	s := New("127.0.0.1:0", zap.NewNop(), nil, nil, false, reg)

	req := httptest.NewRequest("GET", "/api/extra", http.NoBody)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
}

type registrarFunc func(mux *http.ServeMux)

func (f registrarFunc) RegisterRoutes(mux *http.ServeMux) { f(mux) }
