package util

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/config"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/shm"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger installs the default logger according to the log flags and
// stores it in the context of cmd.
func SetupLogger(cmd *cobra.Command) error {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return fmt.Errorf("invalid log filter %q: %w", config.LogFilter, err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.DebugLevel), opts...)
	}
	log.ResetDefault(logger)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(log.AddToContext(ctx, logger))
	return nil
}

// ChangeLogLevel is used when the config file changes at runtime.
func ChangeLogLevel(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warn("ignoring invalid log level", log.String("level", level))
		return
	}
	if lvl != log.Default().Level() {
		log.Default().SetLevel(lvl)
		log.Info("log level changed", log.String("level", level))
	}
}

// OpenFunc returns the function opening the configured region.
func OpenFunc() shm.OpenFunc {
	return shm.OpenInDir(config.ShmDir)
}

func NewReader() *shm.Reader {
	return shm.NewReader(config.RegionName, shm.WithOpenFunc(OpenFunc()))
}

// StartTelemetry installs the otel providers if telemetry is enabled.
// The returned function flushes and shuts them down.
func StartTelemetry(ctx context.Context) func() {
	if !config.EnableTelemetry {
		return func() {}
	}
	log.Info("Enabling telemetry")
	telemetry, err := config.SetupTelemetry(ctx)
	if err != nil {
		log.Warn("Could not setup telemetry", log.ErrorField(err))
		return func() {}
	}
	return telemetry.Shutdown
}

// ReadSnapshot reads the configured region once inside a span named op.
func ReadSnapshot(ctx context.Context, op string) (*model.Snapshot, error) {
	_, span := otel.Tracer("tmtp").Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.String("region", config.RegionName))

	reader := NewReader()
	defer reader.Close()
	s, err := reader.Read()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("updateNumber", int64(s.UpdateNumber)),
		attribute.Int64("version", int64(s.Header.Version)))
	return s, nil
}
