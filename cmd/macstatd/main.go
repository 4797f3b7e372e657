package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/macstatd/internal/collector"
	"codeberg.org/mutker/macstatd/internal/command"
	"codeberg.org/mutker/macstatd/internal/config"
	"codeberg.org/mutker/macstatd/internal/format"
	"codeberg.org/mutker/macstatd/internal/logger"
	"codeberg.org/mutker/macstatd/internal/metrics"
	"codeberg.org/mutker/macstatd/internal/notify"
	"codeberg.org/mutker/macstatd/internal/pid"
	"codeberg.org/mutker/macstatd/internal/sampler"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	initLogging(cfg)
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("another instance appears to be running")
	}
}

func main() {
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove pid file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}

	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	runner := command.NewRunner()

	engine := sampler.New(sampler.Config{
		FastInterval: cfg.FastInterval(),
		SlowInterval: cfg.SlowInterval(),
		Interface:    cfg.Interface,
		TopProcesses: cfg.TopProcesses,
	}, runner, logger.Default())

	if cfg.Notifications {
		notifier := notify.New(notify.Config{
			Enabled:  true,
			To:       cfg.NotifyTo,
			From:     cfg.NotifyFrom,
			FromName: cfg.NotifyFromName,
			Cooldown: cfg.CooldownDuration(),
		}, notify.NewWebhookSender(cfg.WebhookURL), logger.Default())
		engine.AddObserver(notifier)
		logger.Debug().Str("webhook", cfg.WebhookURL).Msg("power notifications enabled")
	}

	recorder, err := metrics.NewService(metricsConfig(cfg), logger.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close sample recorder")
		}
	}()

	updates := engine.Subscribe()

	engine.RefreshAll(ctx)
	engine.Start()
	defer engine.Stop()

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging host status...")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if u.Kind != sampler.UpdateFull {
				continue
			}
			if err := recorder.Record(ctx, u.Snapshot); err != nil {
				logger.Error().Err(err).Msg("failed to record snapshot")
			}
			logSnapshot(u.Snapshot)
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func initLogging(cfg *config.Config) {
	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())

	// Debug and verbose flags win over the configured level
	if cfg.Debug || cfg.Verbose {
		return
	}

	switch config.LogLevel(cfg.LogLevel) {
	case config.LogLevelDebug:
		logger.SetLogLevel(logger.DebugLevel)
	case config.LogLevelInfo:
		logger.SetLogLevel(logger.InfoLevel)
	case config.LogLevelWarning:
		logger.SetLogLevel(logger.WarnLevel)
	case config.LogLevelError:
		logger.SetLogLevel(logger.ErrorLevel)
	}
}

func metricsConfig(cfg *config.Config) metrics.Config {
	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics
	if cfg.Database != "" {
		mcfg.DBPath = cfg.Database
	}

	return mcfg
}

func logSnapshot(snap collector.Snapshot) {
	if cfg.Debug {
		logger.Debug().
			Float64("cpu_usage", snap.CPUUsage).
			Float64("cpu_temperature", snap.CPUTemperature).
			Float64("memory_used_gb", snap.Memory.UsedGB).
			Float64("memory_total_gb", snap.Memory.TotalGB).
			Float64("disk_free_gb", snap.Disk.FreeGB).
			Float64("disk_total_gb", snap.Disk.TotalGB).
			Str("upload", formatRate(snap.Network.Upload)).
			Str("download", formatRate(snap.Network.Download)).
			Str("power_source", snap.UPS.PowerSource).
			Float64("ups_charge", snap.UPS.ChargePercent).
			Float64("battery_charge", snap.Battery.ChargePercent).
			Str("battery_remaining", format.TimeRemaining(snap.Battery.TimeRemaining)).
			Float64("cpu_watts", snap.Power.CPUWatts).
			Float64("gpu_watts", snap.Power.GPUWatts).
			Float64("total_watts", snap.Power.TotalWatts).
			Bool("power_estimated", snap.Power.IsEstimate).
			Str("model", snap.System.Model).
			Str("chip", snap.System.Chip).
			Str("local_ip", snap.System.LocalIP).
			Bool("monitor", cfg.Monitor).
			Msg("")
	} else if cfg.Verbose || cfg.Monitor {
		logger.Info().
			Float64("cpu_usage", snap.CPUUsage).
			Float64("cpu_temperature", snap.CPUTemperature).
			Float64("memory_used_gb", snap.Memory.UsedGB).
			Str("upload", formatRate(snap.Network.Upload)).
			Str("download", formatRate(snap.Network.Download)).
			Str("power_source", snap.UPS.PowerSource).
			Float64("total_watts", snap.Power.TotalWatts).
			Msg("")
	}
}

func formatRate(bytesPerSecond float64) string {
	value, unit := format.Rate(bytesPerSecond, cfg.UseBits, cfg.Autoscale)

	return value + " " + unit
}
