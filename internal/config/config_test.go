package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
saic:
  username: user@example.com
  password: hunter2
domoticz:
  hardware_idx: 7
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SAIC.Region != "eu" {
		t.Errorf("expected default region eu, got %q", cfg.SAIC.Region)
	}
	if cfg.Polling.IntervalSeconds != DefaultIntervalSeconds {
		t.Errorf("expected default interval %d, got %d", DefaultIntervalSeconds, cfg.Polling.IntervalSeconds)
	}
	if cfg.Polling.NightStart() != 22 || cfg.Polling.NightEnd() != 7 {
		t.Errorf("unexpected night window: %d..%d", cfg.Polling.NightStart(), cfg.Polling.NightEnd())
	}
	if cfg.Domoticz.BaseURL != DefaultDomoticzURL {
		t.Errorf("unexpected domoticz url: %q", cfg.Domoticz.BaseURL)
	}
	if !cfg.Domoticz.NotificationsEnabled() {
		t.Error("notifications should default to enabled")
	}
	if cfg.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("unexpected http addr: %q", cfg.HTTP.Addr)
	}
	if cfg.MQTT.Enabled {
		t.Error("mqtt should default to disabled")
	}
	if !cfg.Geocode.On() {
		t.Error("geocoding should default to enabled")
	}
}

func TestLoadKeepsMidnightWindow(t *testing.T) {
	body := minimalYAML + "polling:\n  night_start_hour: 0\n  night_end_hour: 0\n"
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Polling.NightStart() != 0 {
		t.Errorf("night_start_hour = %d, want explicit 0 kept", cfg.Polling.NightStart())
	}
	if cfg.Polling.NightEnd() != 0 {
		t.Errorf("night_end_hour = %d, want explicit 0 kept", cfg.Polling.NightEnd())
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, "domoticz:\n  hardware_idx: 7\n"))
	if err == nil || !strings.Contains(err.Error(), "saic.username") {
		t.Fatalf("expected username error, got %v", err)
	}
}

func TestLoadRejectsBadRegion(t *testing.T) {
	body := strings.Replace(minimalYAML, "password: hunter2", "password: hunter2\n  region: us", 1)
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "saic.region") {
		t.Fatalf("expected region error, got %v", err)
	}
}

func TestLoadRejectsMissingHardwareIdx(t *testing.T) {
	_, err := Load(writeConfig(t, "saic:\n  username: a\n  password: b\n"))
	if err == nil || !strings.Contains(err.Error(), "hardware_idx") {
		t.Fatalf("expected hardware_idx error, got %v", err)
	}
}

func TestValidateMQTTRequiresHost(t *testing.T) {
	body := minimalYAML + "mqtt:\n  enabled: true\n"
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "mqtt.host") {
		t.Fatalf("expected mqtt.host error, got %v", err)
	}
}

func TestValidateS3RequiresEndpoint(t *testing.T) {
	body := minimalYAML + "token_store:\n  s3:\n    enabled: true\n    bucket: tokens\n    access_key_file: /k\n    secret_key_file: /s\n"
	_, err := Load(writeConfig(t, body))
	if err == nil || !strings.Contains(err.Error(), "s3.endpoint") {
		t.Fatalf("expected s3 endpoint error, got %v", err)
	}
}
