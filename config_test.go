package labjack

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "mqtt:\n  broker: tcp://localhost:1883\n"))
	if err != nil {
		t.Fatalf("LoadConfig err=%v", err)
	}

	if cfg.Device.VendorID != IDVendorLabJack || cfg.Device.ProductID != IDProductU3 {
		t.Fatalf("device ids %#x:%#x", cfg.Device.VendorID, cfg.Device.ProductID)
	}
	if cfg.Device.Timeout() != maxDelayUSB {
		t.Fatalf("timeout %v", cfg.Device.Timeout())
	}
	if cfg.Ports.Options() != DefaultOptions() {
		t.Fatalf("options %+v, want %+v", cfg.Ports.Options(), DefaultOptions())
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.TopicPrefix != "labjack" {
		t.Fatalf("mqtt %+v", cfg.MQTT)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Fatalf("logging %+v", cfg.Logging)
	}
}

func TestLoadConfig_Values(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
device:
  timeout_ms: 250
  watch_interval_ms: 2000
ports:
  toggle_line: 3
  default_frequency: 4
  airlock_channel: 12
  airlock_threshold: 30000
  time_unit_ms: 100
logging:
  level: debug
  format: json
`))
	if err != nil {
		t.Fatalf("LoadConfig err=%v", err)
	}

	opts := cfg.Ports.Options()
	want := Options{
		ToggleLine:         3,
		DefaultFrequency:   4,
		TemperatureChannel: ChannelTemperature,
		AirlockChannel:     12,
		AirlockThreshold:   30000,
		TimeUnit:           100 * time.Millisecond,
	}
	if opts != want {
		t.Fatalf("options %+v, want %+v", opts, want)
	}
	if cfg.Device.WatchInterval() != 2*time.Second {
		t.Fatalf("watch interval %v", cfg.Device.WatchInterval())
	}
}

func TestLoadConfig_ExplicitZero(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
ports:
  temperature_channel: 0
  airlock_threshold: 0
`))
	if err != nil {
		t.Fatalf("LoadConfig err=%v", err)
	}

	opts := cfg.Ports.Options()
	if opts.TemperatureChannel != 0 {
		t.Fatalf("temperature channel %d, want AIN0", opts.TemperatureChannel)
	}
	if opts.AirlockThreshold != 0 {
		t.Fatalf("airlock threshold %d, want 0", opts.AirlockThreshold)
	}
	// остальные поля секции берутся из значений по умолчанию
	if opts.AirlockChannel != DefaultOptions().AirlockChannel || opts.TimeUnit != time.Second {
		t.Fatalf("options %+v", opts)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"airlock on FIO", "ports:\n  airlock_channel: 3\n", "airlock_channel"},
		{"toggle line", "ports:\n  toggle_line: 25\n", "toggle_line"},
		{"negative timeout", "device:\n  timeout_ms: -1\n", "timeout_ms"},
		{"bad yaml", "ports: [", "config.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() err=%v", err)
	}
}
