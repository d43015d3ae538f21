package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HA_URL", "HA_TOKEN", "HA_TIMEOUT_MS", "AUTHENTIK_URL", "AUTHENTIK_CLIENT_ID",
		"AUTHENTIK_CLIENT_SECRET", "SESSION_SECRET", "JWT_SECRET", "MOCK", "PORT",
	} {
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if !cfg.Mock {
		t.Error("expected mock to default true")
	}
	if cfg.HATimeout != 8000*time.Millisecond {
		t.Errorf("expected default HA timeout of 8s, got %v", cfg.HATimeout)
	}
	if cfg.Live() {
		t.Error("expected Live() false with no HA_URL configured")
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("HA_URL", "http://homeassistant.local:8123")
	os.Setenv("HA_TOKEN", "secret-token")
	os.Setenv("HA_TIMEOUT_MS", "2500")
	os.Setenv("MOCK", "false")
	os.Setenv("PORT", "9090")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HAURL != "http://homeassistant.local:8123" {
		t.Errorf("unexpected HAURL: %q", cfg.HAURL)
	}
	if cfg.HATimeout != 2500*time.Millisecond {
		t.Errorf("unexpected HATimeout: %v", cfg.HATimeout)
	}
	if cfg.Mock {
		t.Error("expected mock false")
	}
	if cfg.Port != "9090" {
		t.Errorf("unexpected port: %q", cfg.Port)
	}
	if !cfg.Live() {
		t.Error("expected Live() true with HA_URL set and mock disabled")
	}
}

func TestLoad_RejectsMalformedHAURL(t *testing.T) {
	clearEnv(t)
	os.Setenv("HA_URL", "not-a-url")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a malformed HA_URL")
	}
}

func TestLoad_RejectsNonIntegerTimeout(t *testing.T) {
	clearEnv(t)
	os.Setenv("HA_TIMEOUT_MS", "soon")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-integer HA_TIMEOUT_MS")
	}
}

func TestLoad_RejectsNonBooleanMock(t *testing.T) {
	clearEnv(t)
	os.Setenv("MOCK", "maybe")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-boolean MOCK")
	}
}
