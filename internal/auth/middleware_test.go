package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestEngine(apiKeys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(NewMiddleware(apiKeys))
	engine.GET("/resource", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return engine
}

func doRequest(engine *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if key != "" {
		req.Header.Set(HeaderName, key)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestNoKeysConfigured_AllowsAll(t *testing.T) {
	engine := newTestEngine(nil)

	rec := doRequest(engine, "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 without keys configured, got %d", rec.Code)
	}
}

func TestValidKey(t *testing.T) {
	engine := newTestEngine([]string{"key1", "key2"})

	for _, key := range []string{"key1", "key2"} {
		rec := doRequest(engine, key)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 for key %q, got %d", key, rec.Code)
		}
	}
}

func TestMissingKey(t *testing.T) {
	engine := newTestEngine([]string{"key1"})

	rec := doRequest(engine, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for missing key, got %d", rec.Code)
	}
}

func TestInvalidKey(t *testing.T) {
	engine := newTestEngine([]string{"key1"})

	rec := doRequest(engine, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for invalid key, got %d", rec.Code)
	}
}
