package check

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/cmd/util"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/config"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/provider"
)

var observe time.Duration

func NewCheckActivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "observe the region for a while and report the update rate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.SetupLogger(cmd); err != nil {
				return err
			}
			r := observeActivity(cmd.Context(),
				provider.WithReader(util.NewReader()),
				provider.WithSampleRate(config.SampleRate))
			r.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().DurationVar(&observe, "duration", 5*time.Second,
		"how long to observe the region")
	cmd.Flags().IntVar(&config.SampleRate, "sample-rate", config.DefaultSampleRate,
		"polling frequency in samples per second")
	return cmd
}

type activity struct {
	observed    time.Duration
	updates     int
	failures    int
	connected   bool
	active      bool
	transitions int
}

func (a activity) rate() float64 {
	if a.observed <= 0 {
		return 0
	}
	return float64(a.updates) / a.observed.Seconds()
}

func (a activity) print(w io.Writer) {
	fmt.Fprintf(w, "observed:    %s\n", a.observed)
	fmt.Fprintf(w, "updates:     %d (%.1f/s)\n", a.updates, a.rate())
	fmt.Fprintf(w, "failures:    %d\n", a.failures)
	fmt.Fprintf(w, "transitions: %d\n", a.transitions)
	fmt.Fprintf(w, "connected:   %t\n", a.connected)
	fmt.Fprintf(w, "active:      %t\n", a.active)
}

func observeActivity(ctx context.Context, opts ...provider.Option) activity {
	logger := log.GetFromContext(ctx).Named("check")
	ret := activity{}
	transitions := make(chan struct{}, 64)
	opts = append(opts,
		provider.WithLogger(logger),
		provider.WithStateListener(func(_, _ bool) {
			select {
			case transitions <- struct{}{}:
			default:
			}
		}))
	p := provider.New(opts...)
	defer p.Close()

	updates := p.Subscribe()
	start := time.Now()
	p.Start()
	timer := time.NewTimer(observe)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			ret.observed = time.Since(start)
			return ret
		case <-updates:
			ret.updates++
		case <-p.Errors():
			ret.failures++
		case <-transitions:
			ret.transitions++
		case <-timer.C:
			ret.observed = time.Since(start)
			ret.connected = p.IsConnected()
			ret.active = p.IsActive()
			logger.Debug("observation done", log.Int("updates", ret.updates))
			return ret
		}
	}
}
