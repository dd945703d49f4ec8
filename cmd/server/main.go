package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/cryptoknapsack/internal/application"
	"github.com/eugenenazirov/cryptoknapsack/internal/config"
	"github.com/eugenenazirov/cryptoknapsack/internal/logging"
)

var signalNotify = signal.Notify

// server is the part of the application the shutdown sequence needs.
type server interface {
	Shutdown(ctx context.Context) error
	Close() error
}

func main() {
	overrides, err := parseFlags(os.Args[1:])
	kingpin.FatalIfError(err, "parse flags")

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
}

// parseFlags turns command-line arguments into configuration overrides. Flags
// left at their sentinel defaults do not override anything.
func parseFlags(args []string) (*config.CLIOverrides, error) {
	kingpinApp := kingpin.New("knapsack-server", "Crypto Knapsack - solves and plays back 0/1 knapsack selections over HTTP")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	port := kingpinApp.Flag("port", "HTTP port exposed by the service").String()
	capacity := kingpinApp.Flag("capacity", "Initial knapsack capacity").Default("-1").Int()
	items := kingpinApp.Flag("items", "Comma-separated label:size:profit catalog").String()
	initialDelay := kingpinApp.Flag("initial-delay", "Delay before the first playback notification").Default("-1ns").Duration()
	stepDelay := kingpinApp.Flag("step-delay", "Delay between playback notifications").Default("-1ns").Duration()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	if _, err := kingpinApp.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *capacity >= 0 {
		overrides.Capacity = capacity
	}

	if *items != "" {
		overrides.ItemsStr = items
	}

	if *initialDelay >= 0 {
		overrides.InitialDelay = initialDelay
	}

	if *stepDelay >= 0 {
		overrides.StepDelay = stepDelay
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return overrides, nil
}

func shutdown(srv server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := srv.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
