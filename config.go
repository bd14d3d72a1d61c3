package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"i4.energy/across/currentmon/indicator"
	"i4.energy/across/currentmon/modem"
	"i4.energy/across/currentmon/sensor"
	"i4.energy/across/currentmon/session"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the status server listens on (e.g. "0.0.0.0:8080"); empty disables it
	BindAddress string `yaml:"bind_address"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// Simulate replaces the modem and the sensor with in-process emulators
	Simulate bool `yaml:"simulate"`
	// SimulateDownlinks names the commands ("on", "off", "blink") the emulated
	// network answers the first uplinks with
	SimulateDownlinks []string `yaml:"simulate_downlinks"`

	Log     LogConfig       `yaml:"log"`
	LoRaWAN LoRaWANConfig   `yaml:"lorawan"`
	Sensor  SensorConfig    `yaml:"sensor"`
	LEDs    LEDConfig       `yaml:"leds"`
	MQTT    MQTTConfig      `yaml:"mqtt"`
	Timings session.Timings `yaml:"timings"`
}

// LogConfig selects the log level, encoding and destination
type LogConfig struct {
	// Level sets the logging level (e.g. "debug", "info", "warn", "error")
	Level string `yaml:"level"`
	// Format is "json" or "console"
	Format string `yaml:"format"`
	// Output is "stdout", "stderr" or a file path rotated by size
	Output     string `yaml:"output"`
	MaxSize    int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// LoRaWANConfig holds the ABP provisioning parameters
type LoRaWANConfig struct {
	DevAddr string `yaml:"dev_addr"`
	NwkSKey string `yaml:"nwk_skey"`
	AppSKey string `yaml:"app_skey"`
	Class   string `yaml:"class"`
	Band    string `yaml:"band"`
}

// SensorConfig locates the ADC channel and describes the sensor
type SensorConfig struct {
	// Path is the IIO raw sample file
	Path          string  `yaml:"path"`
	Shift         uint    `yaml:"shift"`
	MaxCount      float64 `yaml:"max_count"`
	RefVoltage    float64 `yaml:"ref_voltage"`
	OffsetVoltage float64 `yaml:"offset_voltage"`
	Sensitivity   float64 `yaml:"sensitivity"`
	// SimulatedAmps is the load reported in simulate mode
	SimulatedAmps float64 `yaml:"simulated_amps"`
}

// LEDConfig names the sysfs LEDs; an empty name disables that light
type LEDConfig struct {
	Root     string `yaml:"root"`
	Transmit string `yaml:"transmit"`
	WaitJoin string `yaml:"wait_join"`
	Activity string `yaml:"activity"`
	// Output is the LED switched by downlink commands
	Output string `yaml:"output"`
}

// MQTTConfig configures the optional telemetry mirror; an empty broker disables it
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topic          string        `yaml:"topic"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = modem.DefaultBaudRate
		c.Log = LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stderr",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		c.LoRaWAN.Class = "C"
		c.LoRaWAN.Band = session.DefaultBand

		conv := sensor.DefaultConverter()
		c.Sensor = SensorConfig{
			Path:          "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
			MaxCount:      conv.MaxCount,
			RefVoltage:    conv.RefVoltage,
			OffsetVoltage: conv.OffsetVoltage,
			Sensitivity:   conv.Sensitivity,
			SimulatedAmps: 1.234,
		}
		c.LEDs = LEDConfig{Root: indicator.DefaultLEDRoot}
		c.MQTT.ClientID = "currentmon"
		c.Timings = session.DefaultTimings()
		return nil
	}
}

// WithFile overlays values from a YAML file; an empty path is skipped
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr, ok := os.LookupEnv("BIND_ADDRESS"); ok {
			c.BindAddress = addr
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.Log.Level = level
		}

		if format := os.Getenv("LOG_FORMAT"); format != "" {
			c.Log.Format = format
		}

		if output := os.Getenv("LOG_OUTPUT"); output != "" {
			c.Log.Output = output
		}

		if devAddr := os.Getenv("DEV_ADDR"); devAddr != "" {
			c.LoRaWAN.DevAddr = devAddr
		}

		if key := os.Getenv("NWK_SKEY"); key != "" {
			c.LoRaWAN.NwkSKey = key
		}

		if key := os.Getenv("APP_SKEY"); key != "" {
			c.LoRaWAN.AppSKey = key
		}

		if band := os.Getenv("LORA_BAND"); band != "" {
			c.LoRaWAN.Band = band
		}

		if class := os.Getenv("LORA_CLASS"); class != "" {
			c.LoRaWAN.Class = class
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTT.Broker = broker
		}

		if topic := os.Getenv("MQTT_TOPIC"); topic != "" {
			c.MQTT.Topic = topic
		}

		if simulate := os.Getenv("SIMULATE"); simulate != "" {
			if s, err := strconv.ParseBool(simulate); err == nil {
				c.Simulate = s
			}
		}

		if downlinks := os.Getenv("SIMULATE_DOWNLINKS"); downlinks != "" {
			c.SimulateDownlinks = strings.Split(downlinks, ",")
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, err := strconv.Atoi(f.Value.String()); err == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.Log.Level = f.Value.String()
			case "log-format":
				c.Log.Format = f.Value.String()
			case "log-output":
				c.Log.Output = f.Value.String()
			case "simulate":
				if s, err := strconv.ParseBool(f.Value.String()); err == nil {
					c.Simulate = s
				}
			}
		})
		return nil
	}
}

// simulatedDevAddr and simulatedKey stand in for provisioning in simulate mode.
const (
	simulatedDevAddr = "00000000"
	simulatedKey     = "00000000000000000000000000000000"
)

// Provisioning validates the LoRaWAN parameters.
func (c *Config) Provisioning() (session.Provisioning, error) {
	l := c.LoRaWAN
	if c.Simulate {
		if l.DevAddr == "" {
			l.DevAddr = simulatedDevAddr
		}
		if l.NwkSKey == "" {
			l.NwkSKey = simulatedKey
		}
		if l.AppSKey == "" {
			l.AppSKey = simulatedKey
		}
	}
	return session.ParseProvisioning(l.DevAddr, l.NwkSKey, l.AppSKey, l.Class, l.Band)
}

// Converter returns the sensor's conversion parameters.
func (c *Config) Converter() sensor.Converter {
	return sensor.Converter{
		MaxCount:      c.Sensor.MaxCount,
		RefVoltage:    c.Sensor.RefVoltage,
		OffsetVoltage: c.Sensor.OffsetVoltage,
		Sensitivity:   c.Sensor.Sensitivity,
	}
}
