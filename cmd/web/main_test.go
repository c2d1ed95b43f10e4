package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"Party-Trivia-Go/pkg/config"
	"Party-Trivia-Go/pkg/lobby"
)

func TestNewLogger(t *testing.T) {
	log, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v", log.GetLevel())
	}
	if _, ok := log.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSON formatter, got %T", log.Formatter)
	}

	log, err = newLogger(config.LoggingConfig{Level: "info", Format: "text", SpotifyCalls: true})
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("call tracing should enable debug, got %v", log.GetLevel())
	}

	if _, err := newLogger(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SIGNING_KEY", "key")
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "trivia.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestAggregateRejectsBadGroup(t *testing.T) {
	if _, err := runCLI(t, "aggregate", "--group", "nope"); !errors.Is(err, lobby.ErrInvalidGroup) {
		t.Fatalf("expected ErrInvalidGroup, got %v", err)
	}
	if _, err := runCLI(t, "aggregate"); err == nil {
		t.Fatal("expected error for missing --group")
	}
}

func TestAggregateEmptyGroup(t *testing.T) {
	setTestEnv(t)
	out, err := runCLI(t, "aggregate", "--group", "abcdefghjk23", "--seed", "7")
	if err != nil {
		t.Fatal(err)
	}
	var res struct {
		Tracks []any          `json:"tracks"`
		ByUser map[string]any `json:"byUser"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if len(res.Tracks) != 0 || len(res.ByUser) != 0 {
		t.Fatalf("expected empty result, got %s", out)
	}
}

func TestSetupRequiresCredentials(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("SIGNING_KEY", "")
	if _, _, err := setup(""); err == nil {
		t.Fatal("expected validation error")
	}
}
