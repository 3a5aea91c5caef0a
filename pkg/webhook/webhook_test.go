package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDispatchSendsAuthorizedRequest(t *testing.T) {
	var gotPath, gotAuth, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Path: "/webhook/agent", APIKey: "secret-token"})
	if err := c.Dispatch(context.Background(), "buy milk", "sess-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/webhook/agent" {
		t.Fatalf("expected path /webhook/agent, got %q", gotPath)
	}
	if gotAuth != "secret-token" {
		t.Fatalf("expected raw Authorization header, got %q", gotAuth)
	}
	if gotBody == "" {
		t.Fatalf("expected a non-empty request body")
	}
}

func TestDispatchReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Path: "/webhook"})
	if err := c.Dispatch(context.Background(), "req", "sess-2"); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}

func TestDispatchReturnsErrorOnUnreachableHost(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", Path: "/webhook", TimeoutMs: 200})
	if err := c.Dispatch(context.Background(), "req", "sess-3"); err == nil {
		t.Fatalf("expected error dialing an unreachable host")
	}
}
