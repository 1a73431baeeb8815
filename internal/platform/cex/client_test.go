package cex

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const balancesJSON = `{"balances":[
  {"symbol":"DAI","free":"100.5","locked":"9.5"},
  {"symbol":"WETH","free":"2","locked":""}
]}`

func TestBalances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/account/balances" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "key-1" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("X-SIGNATURE") == "" || r.Header.Get("X-TIMESTAMP") == "" {
			t.Errorf("missing auth headers")
		}
		io.WriteString(w, balancesJSON)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "key-1", Secret: "s"}, discard())

	balances, err := c.Balances(context.Background())
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("got %d balances, want 2", len(balances))
	}
	if got := balances[0].Total().String(); got != "110" {
		t.Fatalf("DAI total = %s, want 110", got)
	}
	if got := balances[1].Total().String(); got != "2" {
		t.Fatalf("WETH total = %s, want 2", got)
	}
}

func TestBalancesRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, balancesJSON)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Secret: "s", MaxRetries: 3}, discard())

	if _, err := c.Balances(context.Background()); err != nil {
		t.Fatalf("Balances after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestBalancesRetriesByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, balancesJSON)
	}))
	defer srv.Close()

	// MaxRetries unset: the client still rides out transient failures.
	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Secret: "s"}, discard())

	if _, err := c.Balances(context.Background()); err != nil {
		t.Fatalf("Balances with default retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestBalancesRetriesDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Secret: "s", MaxRetries: -1}, discard())

	if _, err := c.Balances(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestBalancesRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Secret: "s", MaxRetries: 2}, discard())

	if _, err := c.Balances(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("calls = %d, want 3 (1 + 2 retries)", got)
	}
}

func TestBalancesDoesNotRetry4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k", Secret: "s", MaxRetries: 5}, discard())

	if _, err := c.Balances(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (4xx is not retryable)", got)
	}
}

func TestHMACHeadersDeterministic(t *testing.T) {
	a := hmacAuth{key: "k", secret: "s"}
	h1 := a.headersAt(http.MethodGet, "/v1/account/balances", "", 1700000000)
	h2 := a.headersAt(http.MethodGet, "/v1/account/balances", "", 1700000000)
	if h1["X-SIGNATURE"] != h2["X-SIGNATURE"] {
		t.Fatal("signature not deterministic for fixed timestamp")
	}
	h3 := a.headersAt(http.MethodGet, "/v1/other", "", 1700000000)
	if h1["X-SIGNATURE"] == h3["X-SIGNATURE"] {
		t.Fatal("signature should depend on path")
	}
}
