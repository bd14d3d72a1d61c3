package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"i4.energy/across/currentmon/session"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(WithDefaults())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SerialPort != "/dev/ttyUSB0" || config.BaudRate != 115200 {
		t.Errorf("unexpected serial defaults: %s @ %d", config.SerialPort, config.BaudRate)
	}
	if config.LoRaWAN.Class != "C" || config.LoRaWAN.Band != "IN865" {
		t.Errorf("unexpected radio defaults: %+v", config.LoRaWAN)
	}
	if config.Timings != session.DefaultTimings() {
		t.Errorf("expected default timings, got %+v", config.Timings)
	}
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "currentmon.yaml")
	data := `
serial_port: /dev/ttyAMA0
simulate_downlinks: [off]
lorawan:
  dev_addr: 01d3257c
  band: EU868
log:
  level: debug
timings:
  join_timeout: 20s
  cycle_interval: 5m
mqtt:
  broker: tcp://broker:1883
  publish_timeout: 500ms
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(WithDefaults(), WithFile(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SerialPort != "/dev/ttyAMA0" {
		t.Errorf("expected serial port from file, got %s", config.SerialPort)
	}
	if len(config.SimulateDownlinks) != 1 || config.SimulateDownlinks[0] != "off" {
		t.Errorf("unexpected simulated downlinks: %q", config.SimulateDownlinks)
	}
	if config.LoRaWAN.DevAddr != "01d3257c" || config.LoRaWAN.Band != "EU868" {
		t.Errorf("unexpected lorawan section: %+v", config.LoRaWAN)
	}
	if config.LoRaWAN.Class != "C" {
		t.Errorf("defaults missing from the file should survive, got class %q", config.LoRaWAN.Class)
	}
	if config.Log.Level != "debug" || config.Log.Format != "json" {
		t.Errorf("unexpected log section: %+v", config.Log)
	}
	if config.Timings.JoinTimeout != 20*time.Second || config.Timings.CycleInterval != 5*time.Minute {
		t.Errorf("unexpected timings: %+v", config.Timings)
	}
	if config.Timings.SendTimeout != 10*time.Second {
		t.Errorf("unset timings should keep defaults, got send timeout %s", config.Timings.SendTimeout)
	}
	if config.MQTT.Broker != "tcp://broker:1883" || config.MQTT.PublishTimeout != 500*time.Millisecond {
		t.Errorf("unexpected mqtt section: %+v", config.MQTT)
	}

	t.Run("Empty path is skipped", func(t *testing.T) {
		if _, err := LoadConfig(WithDefaults(), WithFile("")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadConfig(WithFile(filepath.Join(t.TempDir(), "absent.yaml")))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got: %v", err)
		}
	})

	t.Run("Malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(bad, []byte("baud_rate: [fast"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(WithFile(bad)); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestWithEnv(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("BAUD_RATE", "9600")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("BIND_ADDRESS", "")
	t.Setenv("DEV_ADDR", "01d3257c")
	t.Setenv("NWK_SKEY", "06ebd62a3b4e2ed8d45d38d0f515988e")
	t.Setenv("APP_SKEY", "ef54ccd9b3d974e8736c60d916ad6e96")
	t.Setenv("LORA_BAND", "US915")
	t.Setenv("LORA_CLASS", "A")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	t.Setenv("MQTT_TOPIC", "site/meter")
	t.Setenv("SIMULATE", "true")
	t.Setenv("SIMULATE_DOWNLINKS", "on,blink")

	config, err := LoadConfig(WithDefaults(), WithEnv())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SerialPort != "/dev/ttyS1" || config.BaudRate != 9600 {
		t.Errorf("unexpected serial settings: %s @ %d", config.SerialPort, config.BaudRate)
	}
	if config.Log.Level != "warn" || config.Log.Format != "console" || config.Log.Output != "stdout" {
		t.Errorf("unexpected log settings: %+v", config.Log)
	}
	if config.BindAddress != "" {
		t.Errorf("an empty BIND_ADDRESS should disable the server, got %q", config.BindAddress)
	}
	if config.MQTT.Broker != "tcp://localhost:1883" || config.MQTT.Topic != "site/meter" {
		t.Errorf("unexpected mqtt settings: %+v", config.MQTT)
	}
	if !config.Simulate {
		t.Error("expected simulate mode")
	}
	if len(config.SimulateDownlinks) != 2 || config.SimulateDownlinks[1] != "blink" {
		t.Errorf("unexpected simulated downlinks: %q", config.SimulateDownlinks)
	}

	p, err := config.Provisioning()
	if err != nil {
		t.Fatalf("unexpected provisioning error: %v", err)
	}
	if p.Band != "US915" || p.Class != "A" || p.DevAddr.String() != "01d3257c" {
		t.Errorf("unexpected provisioning: %+v", p)
	}
}

func TestWithFlags(t *testing.T) {
	fSet := flag.NewFlagSet("currentmon", flag.ContinueOnError)
	fSet.String("serial-port", "/dev/ttyUSB0", "")
	fSet.Int("baud-rate", 115200, "")
	fSet.String("bind-address", "0.0.0.0:8080", "")
	fSet.String("log-level", "info", "")
	fSet.String("log-format", "json", "")
	fSet.String("log-output", "stderr", "")
	fSet.Bool("simulate", false, "")
	if err := fSet.Parse([]string{"-serial-port", "/dev/ttyACM0", "-baud-rate", "57600", "-log-format", "console", "-simulate"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SERIAL_PORT", "/dev/ttyS1")
	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fSet))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SerialPort != "/dev/ttyACM0" {
		t.Errorf("flags should override the environment, got %s", config.SerialPort)
	}
	if config.BaudRate != 57600 || config.Log.Format != "console" || !config.Simulate {
		t.Errorf("unexpected config from flags: %+v", config)
	}
	if config.BindAddress != "0.0.0.0:8080" || config.Log.Level != "info" {
		t.Errorf("unset flags must not override, got %+v", config)
	}
}

func TestProvisioning(t *testing.T) {
	t.Run("Required outside simulate mode", func(t *testing.T) {
		config, _ := LoadConfig(WithDefaults())
		if _, err := config.Provisioning(); !errors.Is(err, session.ErrInvalidProvisioning) {
			t.Errorf("expected ErrInvalidProvisioning, got: %v", err)
		}
	})

	t.Run("Placeholders in simulate mode", func(t *testing.T) {
		config, _ := LoadConfig(WithDefaults())
		config.Simulate = true
		if _, err := config.Provisioning(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{name: "JSON to stderr", cfg: LogConfig{Level: "info", Format: "json", Output: "stderr"}},
		{name: "Console to stdout", cfg: LogConfig{Level: "debug", Format: "console", Output: "stdout"}},
		{name: "Rotated file", cfg: LogConfig{Level: "warn", Output: filepath.Join(t.TempDir(), "logs", "currentmon.log"), MaxSize: 1}},
		{name: "Bad level", cfg: LogConfig{Level: "loud"}, wantErr: true},
		{name: "Bad format", cfg: LogConfig{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			logger.Warn("logger test")
			logger.Sync()
		})
	}

	t.Run("File output is written", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "currentmon.log")
		logger, err := newLogger(LogConfig{Level: "info", Output: path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		logger.Info("written")
		logger.Sync()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("log file missing: %v", err)
		}
		if len(data) == 0 {
			t.Error("log file is empty")
		}
	})
}
