package aldes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tiagfernandes/aldes-bridge/internal/logger"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(baseURL)}, opts...)
	c := NewClient("user@example.com", "secret", logger.Get(logger.ErrorLevel), opts...)
	t.Cleanup(c.Close)
	return c
}

func TestAuthenticate_StoresToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "password" {
			t.Errorf("expected password grant, got %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("username") != "user@example.com" {
			t.Errorf("unexpected username %q", r.PostForm.Get("username"))
		}
		w.Write([]byte(`{"access_token":"tok-123"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if got := c.bearer(); got != "Bearer tok-123" {
		t.Errorf("expected bearer header for tok-123, got %q", got)
	}
}

func TestAuthenticate_Non200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestAuthenticate_EmptyToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestAuthenticate_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := newTestClient(t, srv.URL)
	err := c.Authenticate(context.Background())
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}
