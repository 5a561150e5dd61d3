package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	s := &Settings{
		Host:    "localhost",
		Port:    8080,
		DataDir: "/tmp/docforest",
	}
	Log(s) // Should not panic
}

func TestLogWithLogger_MasksToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Host:    "localhost",
		Port:    8080,
		DataDir: "/tmp/docforest",
		Git: GitSettings{
			Token:    "ghp_supersecret",
			BotName:  "docforest-bot",
			BotEmail: "bot@docforest.local",
			Timeout:  2 * time.Minute,
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if strings.Contains(output, "ghp_supersecret") {
		t.Error("Token should never appear in log output")
	}
	if !strings.Contains(output, "configured=true") {
		t.Errorf("Expected 'configured=true' for token, got: %s", output)
	}
	if !strings.Contains(output, "host") {
		t.Error("Expected 'host' in log output")
	}
	if !strings.Contains(output, "port") {
		t.Error("Expected 'port' in log output")
	}
}

func TestLogWithLogger_NoToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		Host:    "localhost",
		Port:    8080,
		DataDir: "/tmp/docforest",
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "configured=false") {
		t.Errorf("Expected 'configured=false' for missing token, got: %s", output)
	}
}

func TestSettingsLogValue(t *testing.T) {
	s := Settings{
		Host:    "localhost",
		Port:    8080,
		DataDir: "/tmp/docforest",
		Git: GitSettings{
			Token: "secret",
		},
	}

	val := SettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
	for _, attr := range val.Group() {
		if attr.Key == "git_token" && attr.Value.String() != "****" {
			t.Errorf("Expected masked token, got %q", attr.Value.String())
		}
	}
}
