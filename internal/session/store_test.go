package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cellgate/cellgate/internal/proxy"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_creates_database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_invalid_path(t *testing.T) {
	_, err := Open("/nonexistent/path/to/db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestCredentials_roundtrip(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	want := Credentials{
		Token:      "tok-123",
		GatewayIP:  "192.168.12.1",
		Username:   "admin",
		Expiration: time.Now().Add(time.Hour).Unix(),
	}
	if err := s.SetCredentials(ctx, want); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}

	got, err := s.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	ok, err := s.IsAuthenticated(ctx)
	if err != nil {
		t.Fatalf("IsAuthenticated: %v", err)
	}
	if !ok {
		t.Error("IsAuthenticated = false after SetCredentials")
	}
}

func TestSetCredentials_rejects_incomplete(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.SetCredentials(ctx, Credentials{Token: "tok-only"}); err == nil {
		t.Error("expected error for credentials without a gateway address")
	}
	if err := s.SetCredentials(ctx, Credentials{GatewayIP: "192.168.12.1"}); err == nil {
		t.Error("expected error for credentials without a token")
	}

	// Nothing partial must have landed.
	got, err := s.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if got != (Credentials{}) {
		t.Errorf("store holds partial credentials: %+v", got)
	}
}

func TestIsAuthenticated_expired_token(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	c := Credentials{
		Token:      "tok-old",
		GatewayIP:  "192.168.12.1",
		Expiration: time.Now().Add(-time.Minute).Unix(),
	}
	if err := s.SetCredentials(ctx, c); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}

	ok, err := s.IsAuthenticated(ctx)
	if err != nil {
		t.Fatalf("IsAuthenticated: %v", err)
	}
	if ok {
		t.Error("IsAuthenticated = true for an expired token")
	}
}

func TestClearCredentials_keeps_preferences(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.SetCredentials(ctx, Credentials{Token: "tok", GatewayIP: "10.0.0.1", Username: "admin"}); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	if err := s.SetRememberedUsername(ctx, "admin"); err != nil {
		t.Fatalf("SetRememberedUsername: %v", err)
	}
	if err := s.SetTheme(ctx, "dark"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}

	if err := s.ClearCredentials(ctx); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}

	got, err := s.Credentials(ctx)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if got != (Credentials{}) {
		t.Errorf("credentials survived logout: %+v", got)
	}

	remembered, err := s.RememberedUsername(ctx)
	if err != nil {
		t.Fatalf("RememberedUsername: %v", err)
	}
	if remembered != "admin" {
		t.Errorf("remembered username = %q, want %q", remembered, "admin")
	}

	theme, err := s.Theme(ctx)
	if err != nil {
		t.Fatalf("Theme: %v", err)
	}
	if theme != "dark" {
		t.Errorf("theme = %q, want %q", theme, "dark")
	}
}

func TestHeaders(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if _, err := s.Headers(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Headers on empty store: err = %v, want ErrNotAuthenticated", err)
	}

	if err := s.SetCredentials(ctx, Credentials{Token: "tok", GatewayIP: "192.168.1.1"}); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}

	h, err := s.Headers(ctx)
	if err != nil {
		t.Fatalf("Headers: %v", err)
	}
	if h[proxy.HeaderGatewayIP] != "192.168.1.1" {
		t.Errorf("gateway header = %q, want %q", h[proxy.HeaderGatewayIP], "192.168.1.1")
	}
	if h[proxy.HeaderAuthToken] != "tok" {
		t.Errorf("token header = %q, want %q", h[proxy.HeaderAuthToken], "tok")
	}
}

func TestRememberedUsername_clear(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.SetRememberedUsername(ctx, "admin"); err != nil {
		t.Fatalf("SetRememberedUsername: %v", err)
	}
	if err := s.SetRememberedUsername(ctx, ""); err != nil {
		t.Fatalf("clear remembered username: %v", err)
	}

	got, err := s.RememberedUsername(ctx)
	if err != nil {
		t.Fatalf("RememberedUsername: %v", err)
	}
	if got != "" {
		t.Errorf("remembered username = %q, want empty", got)
	}
}

func TestSidebarPinned_default(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	pinned, err := s.SidebarPinned(ctx)
	if err != nil {
		t.Fatalf("SidebarPinned: %v", err)
	}
	if !pinned {
		t.Error("sidebar should default to pinned")
	}

	if err := s.SetSidebarPinned(ctx, false); err != nil {
		t.Fatalf("SetSidebarPinned: %v", err)
	}
	pinned, err = s.SidebarPinned(ctx)
	if err != nil {
		t.Fatalf("SidebarPinned: %v", err)
	}
	if pinned {
		t.Error("sidebar still pinned after SetSidebarPinned(false)")
	}
}
