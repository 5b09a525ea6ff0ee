package ghgate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsPRMergedTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/widget/pulls/42" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(pullResponse{Merged: true, State: "closed"})
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	merged, err := c.IsPRMerged(context.Background(), "acme", "widget", 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !merged {
		t.Fatalf("expected merged=true")
	}
}

func TestIsPRMergedFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pullResponse{Merged: false, State: "open"})
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	merged, err := c.IsPRMerged(context.Background(), "acme", "widget", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged {
		t.Fatalf("expected merged=false")
	}
}

func TestIsPRMergedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.IsPRMerged(context.Background(), "acme", "widget", 99)
	if err == nil {
		t.Fatalf("expected an error for a 404 response")
	}
}

func TestIsPRMergedSendsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(pullResponse{Merged: true})
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithToken("abc123"))
	if _, err := c.IsPRMerged(context.Background(), "acme", "widget", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer abc123" {
		t.Fatalf("expected Bearer token header, got %q", gotAuth)
	}
}
