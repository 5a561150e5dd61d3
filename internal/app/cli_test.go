package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	// Verify all flags are registered
	expectedFlags := []string{
		"host",
		"port",
		"data-dir",
		"api-keys",
		"git-token",
		"git-bot-name",
		"git-bot-email",
		"git-timeout",
		"search-enabled",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"host":     "H",
		"port":     "p",
		"data-dir": "d",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	if err := flags.Set("port", "9999"); err != nil {
		t.Fatalf("Failed to set port: %v", err)
	}
	if err := flags.Set("git-timeout", "45s"); err != nil {
		t.Fatalf("Failed to set git-timeout: %v", err)
	}

	port, err := flags.GetInt("port")
	if err != nil || port != 9999 {
		t.Errorf("Expected port 9999, got %d (err=%v)", port, err)
	}
	timeout, err := flags.GetDuration("git-timeout")
	if err != nil || timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s, got %v (err=%v)", timeout, err)
	}
}
