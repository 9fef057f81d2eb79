package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/creatorscope/pkg/creator"
)

var alice = creator.SessionUser{ID: "u1", Email: "alice@example.com", Role: creator.RoleBrand}

func TestOpenEmpty(t *testing.T) {
	s, err := Open(context.Background(), NewMemoryStore())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Token() != "" {
		t.Errorf("Token() = %q, want empty", s.Token())
	}
	if _, ok := s.User(); ok {
		t.Error("User() ok = true, want false")
	}
	if s.Connected() {
		t.Error("Connected() = true, want false")
	}
}

func TestLoginPersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Login(ctx, "tok-1", alice); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	restored, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if restored.Token() != "tok-1" {
		t.Errorf("Token() = %q, want %q", restored.Token(), "tok-1")
	}
	u, ok := restored.User()
	if !ok {
		t.Fatal("User() ok = false, want true")
	}
	if diff := cmp.Diff(alice, u); diff != "" {
		t.Errorf("User() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	s, _ := Open(context.Background(), NewMemoryStore()) //nolint:errcheck // memory store never fails
	if err := s.Login(context.Background(), "", alice); err == nil {
		t.Error("Login(\"\") error = nil, want error")
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := Open(ctx, store) //nolint:errcheck // memory store never fails
	if err := s.Login(ctx, "tok-1", alice); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if s.Token() != "" {
		t.Errorf("Token() = %q after Logout()", s.Token())
	}
	for _, key := range []string{KeyToken, KeyUser} {
		if _, ok, _ := store.Get(ctx, key); ok { //nolint:errcheck // memory store never fails
			t.Errorf("store still has %s after Logout()", key)
		}
	}
}

func TestSetConnected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s, _ := Open(ctx, store) //nolint:errcheck // memory store never fails

	if err := s.SetConnected(ctx, true); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("SetConnected() logged out error = %v, want ErrNotLoggedIn", err)
	}

	if err := s.Login(ctx, "tok-1", alice); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := s.SetConnected(ctx, true); err != nil {
		t.Fatalf("SetConnected() error = %v", err)
	}
	if !s.Connected() {
		t.Error("Connected() = false, want true")
	}

	restored, _ := Open(ctx, store) //nolint:errcheck // memory store never fails
	if !restored.Connected() {
		t.Error("restored Connected() = false, want true")
	}
	if restored.Token() != "tok-1" {
		t.Errorf("SetConnected() changed token to %q", restored.Token())
	}
}

func TestOpenDiscardsCorruptUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, KeyToken, "tok-1")   //nolint:errcheck // memory store never fails
	_ = store.Set(ctx, KeyUser, "{not json") //nolint:errcheck // memory store never fails

	s, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Token() != "" {
		t.Errorf("Token() = %q, want empty", s.Token())
	}
	if _, ok, _ := store.Get(ctx, KeyToken); ok { //nolint:errcheck // memory store never fails
		t.Error("corrupt session token was not removed")
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	st, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := st.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := st.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	st, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer st.Close() //nolint:errcheck // test

	v, ok, err := st.Get(ctx, "k")
	if err != nil || !ok || v != "v2" {
		t.Errorf("Get(k) = %q, %v, %v; want v2", v, ok, err)
	}
	if err := st.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := st.Get(ctx, "k"); ok { //nolint:errcheck // checked above
		t.Error("Get(k) after Delete() ok = true")
	}
}

func TestSessionOverSQLite(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer st.Close() //nolint:errcheck // test

	s, err := Open(ctx, st)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Login(ctx, "tok-9", alice); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	restored, err := Open(ctx, st)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if restored.Token() != "tok-9" {
		t.Errorf("Token() = %q, want tok-9", restored.Token())
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv(EnvVar, "  env-token ")
	tok, err := EnvSource{}.Token(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "env-token" {
		t.Errorf("Token() = %q, want %q", tok, "env-token")
	}
}

func TestChainSources(t *testing.T) {
	t.Setenv(EnvVar, "")
	tok, err := ChainSources(context.Background(), "127.0.0.1", EnvSource{}, StaticSource("static"))
	if err != nil {
		t.Fatalf("ChainSources() error = %v", err)
	}
	if tok != "static" {
		t.Errorf("ChainSources() = %q, want %q", tok, "static")
	}

	tok, _ = ChainSources(context.Background(), "127.0.0.1", EnvSource{}) //nolint:errcheck // env never fails
	if tok != "" {
		t.Errorf("ChainSources() with no tokens = %q, want empty", tok)
	}
}

func TestCookieDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://127.0.0.1:8000/api/v1", "127.0.0.1"},
		{"https://api.example.com", "api.example.com"},
		{"example.com:8443", "example.com"},
		{"example.com", "example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := cookieDomain(tt.in); got != tt.want {
			t.Errorf("cookieDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
