package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"i4.energy/across/currentmon/indicator"
	"i4.energy/across/currentmon/modem"
	"i4.energy/across/currentmon/sensor"
	"i4.energy/across/currentmon/session"
	"i4.energy/across/currentmon/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", modem.DefaultBaudRate, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the status server (empty disables it)")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("log-format", "json", "Log format (json, console)")
	flag.String("log-output", "stderr", "Log output (stdout, stderr or a file path)")
	flag.Bool("simulate", false, "Run against an emulated modem and sensor")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(config.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.With(zap.String("boot_id", uuid.NewString()))
	defer logger.Sync()

	if err := run(config, logger); err != nil {
		logger.Error("Current monitor stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(config *Config, logger *zap.Logger) error {
	provisioning, err := config.Provisioning()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	leds := indicator.NewLEDs(config.LEDs.Root, map[indicator.Channel]string{
		indicator.Transmit: config.LEDs.Transmit,
		indicator.WaitJoin: config.LEDs.WaitJoin,
		indicator.Activity: config.LEDs.Activity,
	}, logger.Named("indicator"))
	indicator.SelfTest(ctx, leds, 200*time.Millisecond)

	var actuator session.Actuator
	if config.LEDs.Output != "" {
		actuator = indicator.NewLED(config.LEDs.Root, config.LEDs.Output)
	}

	conv := config.Converter()
	var dialer modem.Dialer = modem.SerialDialer{
		PortName: config.SerialPort,
		BaudRate: config.BaudRate,
	}
	var source sensor.RawSource = sensor.IIO{Path: config.Sensor.Path, Shift: config.Sensor.Shift}
	if config.Simulate {
		logger.Warn("Running in simulate mode")
		sim := modem.NewSimTransport()
		for _, name := range config.SimulateDownlinks {
			if err := sim.QueueCommand(name); err != nil {
				return fmt.Errorf("simulated downlink: %w", err)
			}
		}
		dialer = modem.SimDialer{Transport: sim}
		source = sensor.Simulated{Converter: conv, Amps: config.Sensor.SimulatedAmps, Jitter: 0.05}
	}

	current := &sensor.WCS6800{Source: source, Converter: conv}
	if v, err := current.Check(); err != nil {
		logger.Warn("Sensor self-check failed", zap.Float64("voltage", v), zap.Error(err))
	} else {
		logger.Info("Sensor self-check passed", zap.Float64("voltage", v))
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithIndicator(leds).
		WithLogger(logger.Named("modem")).
		Build()
	if err != nil {
		return fmt.Errorf("create modem config: %w", err)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		return fmt.Errorf("create modem: %w", err)
	}
	defer func() {
		logger.Info("Closing modem connection")
		if err := m.Close(); err != nil {
			logger.Error("Failed to close modem", zap.Error(err))
		}
	}()

	var publisher session.Publisher
	if config.MQTT.Broker != "" {
		mq, err := telemetry.Connect(telemetry.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       config.MQTT.ClientID,
			Username:       config.MQTT.Username,
			Password:       config.MQTT.Password,
			Topic:          config.MQTT.Topic,
			PublishTimeout: config.MQTT.PublishTimeout,
			Logger:         logger.Named("mqtt"),
		})
		if err != nil {
			logger.Warn("MQTT mirror disabled", zap.Error(err))
		} else {
			defer mq.Close()
			publisher = mq
		}
	}

	controller, err := session.New(session.Config{
		Modem:        m,
		Sensor:       current,
		Indicator:    leds,
		Actuator:     actuator,
		Publisher:    publisher,
		Logger:       logger.Named("session"),
		Provisioning: provisioning,
		Timings:      config.Timings,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if config.BindAddress != "" {
		httpServer := &http.Server{
			Addr: config.BindAddress,
			Handler: &Server{
				Logger:  logger.Named("server"),
				Session: controller,
			},
		}

		go func() {
			logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			logger.Info("Closing HTTP server")
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to gracefully shutdown server", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting current monitor",
		zap.String("dev_addr", provisioning.DevAddr.String()),
		zap.String("band", provisioning.Band),
		zap.String("class", provisioning.Class),
	)

	err = controller.Run(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("Received shutdown signal")
		return nil
	}
	return err
}
