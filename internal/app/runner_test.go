package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/docforest/docforest/internal/config"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		Host:    "localhost",
		Port:    8080,
		DataDir: t.TempDir(),
		Git: config.GitSettings{
			BotName:  "test-bot",
			BotEmail: "bot@example.com",
			Timeout:  time.Minute,
		},
		Search: config.SearchSettings{Enabled: true},
	}
}

func TestRunWithDeps_LoadSettingsError(t *testing.T) {
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return nil, errors.New("boom")
		},
	}

	err := RunWithDeps(context.Background(), params, nil, "test")
	if err == nil {
		t.Fatal("Expected error from failing settings load")
	}
}

func TestRunWithDeps_ValidationError(t *testing.T) {
	settings := testSettings(t)
	settings.Port = -1

	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return settings, nil
		},
		ValidSettings: config.ValidateSettings,
	}

	err := RunWithDeps(context.Background(), params, nil, "test")
	if err == nil {
		t.Fatal("Expected error from invalid settings")
	}
}

func TestRunWithDeps_CreateServerError(t *testing.T) {
	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return testSettings(t), nil
		},
		ValidSettings: config.ValidateSettings,
		CreateServer: func(*config.Settings) (*gin.Engine, func(), error) {
			return nil, nil, errors.New("no server")
		},
	}

	err := RunWithDeps(context.Background(), params, nil, "test")
	if err == nil || err.Error() != "no server" {
		t.Fatalf("Expected 'no server' error, got %v", err)
	}
}

func TestRunWithDeps_StartsServer(t *testing.T) {
	started := make(chan *config.Settings, 1)
	cleanedUp := false

	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return testSettings(t), nil
		},
		ValidSettings: config.ValidateSettings,
		CreateServer: func(*config.Settings) (*gin.Engine, func(), error) {
			gin.SetMode(gin.TestMode)
			return gin.New(), func() { cleanedUp = true }, nil
		},
		StartServer: func(_ *gin.Engine, s *config.Settings) error {
			started <- s
			return nil
		},
	}

	err := RunWithDeps(context.Background(), params, nil, "test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	select {
	case s := <-started:
		if s.Port != 8080 {
			t.Errorf("Expected settings passed through, got port %d", s.Port)
		}
	default:
		t.Fatal("Expected StartServer to be called")
	}
	if !cleanedUp {
		t.Error("Expected cleanup to run")
	}
}

func TestRunWithDeps_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	params := RunParams{
		LoadSettings: func(*pflag.FlagSet) (*config.Settings, error) {
			return testSettings(t), nil
		},
		ValidSettings: config.ValidateSettings,
		CreateServer: func(*config.Settings) (*gin.Engine, func(), error) {
			gin.SetMode(gin.TestMode)
			return gin.New(), nil, nil
		},
		StartServer: func(*gin.Engine, *config.Settings) error {
			<-block
			return nil
		},
	}

	cancel()
	err := RunWithDeps(ctx, params, nil, "test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestCreateServer(t *testing.T) {
	settings := testSettings(t)

	engine, cleanup, err := CreateServer(settings)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("Expected cleanup function")
	}
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", rec.Code)
	}
}
