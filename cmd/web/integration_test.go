package main

// Integration tests wire the real server with an in-memory database and
// exercise the endpoints that do not need Spotify: health, metrics, the
// login redirect and the join QR code.

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"Party-Trivia-Go/pkg/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Spotify.ClientID = "id"
	cfg.Spotify.ClientSecret = "secret"
	cfg.Server.SigningKey = "key"
	cfg.Database.Path = ":memory:"

	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := newServer(context.Background(), cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Close()
	})
	return srv
}

func TestIntegrationHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	res, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	var body map[string]bool
	json.NewDecoder(res.Body).Decode(&body)
	res.Body.Close()
	if res.StatusCode != http.StatusOK || !body["ok"] {
		t.Fatalf("health: %d %v", res.StatusCode, body)
	}
	if res.Header.Get("Content-Security-Policy") == "" {
		t.Error("security headers missing")
	}

	res, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if !strings.Contains(string(data), "trivia_http_requests_total") {
		t.Fatalf("metrics missing http counter")
	}
}

func TestIntegrationLoginRedirect(t *testing.T) {
	srv := newTestServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	res, err := client.Get(srv.URL + "/auth/login?state=create")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	loc := res.Header.Get("Location")
	if res.StatusCode != http.StatusFound || !strings.Contains(loc, "accounts.spotify.com") || !strings.Contains(loc, "client_id=id") {
		t.Fatalf("unexpected redirect %d %q", res.StatusCode, loc)
	}
	if !strings.Contains(loc, "user-top-read") {
		t.Errorf("scopes missing from %q", loc)
	}
}

func TestIntegrationAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/api/me")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestIntegrationJoinQR(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/api/game/ABCDEFGHJK23/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK || res.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr: %d %q", res.StatusCode, res.Header.Get("Content-Type"))
	}
}
