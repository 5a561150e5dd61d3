// Package testkit provides helpers for integration tests that run the
// full server over a real TCP port.
package testkit

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/docforest/docforest/internal/app"
)

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port          int    // Uses free port if 0
	Host          string // Defaults to "localhost"
	DataDir       string // Required: store and index location
	SearchEnabled bool
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	port := 0
	host := "localhost"
	dataDir := ""
	searchEnabled := false

	if opts != nil {
		if opts.Port != 0 {
			port = opts.Port
		}
		if opts.Host != "" {
			host = opts.Host
		}
		dataDir = opts.DataDir
		searchEnabled = opts.SearchEnabled
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}
	if dataDir == "" {
		dataDir = t.TempDir()
	}

	_ = flags.Set("port", fmt.Sprintf("%d", port))
	_ = flags.Set("host", host)
	_ = flags.Set("data-dir", dataDir)
	_ = flags.Set("search-enabled", fmt.Sprintf("%t", searchEnabled))

	return flags
}

// WaitForHealth polls the server's health endpoint until it answers or
// the deadline passes.
func WaitForHealth(t testing.TB, baseURL string, deadline time.Duration) {
	t.Helper()

	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("Server at %s did not become healthy within %v", baseURL, deadline)
}
