package run

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/cmd/util"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/config"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/monitor"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/provider"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/shm"
	utils "github.com/mpapenbr/tm-telemetry-provider/pkg/utils"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/values"
)

func NewRunCmd() *cobra.Command {
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "polls the telemetry region until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.SetupLogger(cmd); err != nil {
				return err
			}
			return runProvider(cmd.Context(), &cfg)
		},
	}
	cmd.Flags().IntVar(&config.SampleRate,
		"sample-rate",
		config.DefaultSampleRate,
		"polling frequency in samples per second")
	cmd.Flags().StringVar(&config.WaitForProducer,
		"wait-for-producer",
		"0s",
		"wait this long for the game to create the region before starting (0 disables)")
	cmd.Flags().StringVar(&config.StatsInterval,
		"stats-interval",
		"0s",
		"log statistics of derived values in this interval (0 disables)")
	cmd.Flags().BoolVar(&cfg.PrintValues,
		"print-values",
		false,
		"log derived values of each update on debug level")
	return cmd
}

func parseDuration(arg string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(arg)
	if err != nil {
		log.Warn("invalid duration, using default",
			log.String("arg", arg),
			log.Duration("default", defaultVal))
		return defaultVal
	}
	return d
}

//nolint:funlen // by design
func runProvider(ctx context.Context, cfg *config.Config) error {
	log.Debug("Config:",
		log.String("region", config.RegionName),
		log.String("shmDir", config.ShmDir),
		log.Int("sampleRate", config.SampleRate),
		log.String("waitForProducer", config.WaitForProducer),
		log.String("statsInterval", config.StatsInterval),
	)

	shutdown := util.StartTelemetry(ctx)
	defer shutdown()
	if config.EnableTelemetry {
		err := otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	if wait := parseDuration(config.WaitForProducer, 0); wait > 0 {
		log.Info("Waiting for producer",
			log.String("region", config.RegionName),
			log.Duration("timeout", wait))
		err := utils.WaitForRegion(util.OpenFunc(), config.RegionName, wait)
		if err != nil {
			log.Error("producer did not show up", log.ErrorField(err))
			return err
		}
	}

	stats := monitor.NewStats()
	logger := log.GetFromContext(ctx).Named("provider")
	reader := shm.NewReader(config.RegionName,
		shm.WithOpenFunc(util.OpenFunc()),
		shm.WithLogger(logger.Named("shm")))
	p := provider.New(
		provider.WithReader(reader),
		provider.WithSampleRate(config.SampleRate),
		provider.WithLogger(logger),
		// summarize the finished session once the data stops changing
		provider.WithStateListener(func(_, active bool) {
			if !active {
				logSummaries(stats.Flush())
			}
		}),
	)
	defer p.Close()

	updates := p.Subscribe()
	p.Start()
	log.Info("Provider started", log.String("id", p.ID()))

	var statsTick <-chan time.Time
	if interval := parseDuration(config.StatsInterval, 0); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		select {
		case <-sigCtx.Done():
			log.Debug("Got signal")
			p.CancelSubscription(updates)
			p.Stop()
			logSummaries(stats.Flush())
			log.Info("Provider terminated")
			return nil
		case info, ok := <-updates:
			if !ok {
				return nil
			}
			d := info.Derived()
			stats.Add(d)
			if cfg.PrintValues {
				logDerived(info, d)
			}
		case err := <-p.Errors():
			if errors.Is(err, shm.ErrRegionUnavailable) {
				log.Debug("region not available", log.ErrorField(err))
			} else {
				log.Warn("read failed", log.ErrorField(err))
			}
		case <-statsTick:
			logSummaries(stats.Flush())
		}
	}
}

func logDerived(info *values.Info, d model.Derived) {
	log.Debug("update",
		log.Uint32("updateNumber", info.Snapshot().UpdateNumber),
		log.Float("heave", d.Heave),
		log.Float("pitch", d.Pitch),
		log.Float("roll", d.Roll),
		log.Float("yaw", d.Yaw),
		log.Float("rpm", d.RPM),
	)
}

func logSummaries(summaries []monitor.Summary) {
	for _, s := range summaries {
		log.Info("stats",
			append([]log.Field{log.String("value", s.Name)}, s.Fields()...)...)
	}
}
