package simulate

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/cmd/util"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/config"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/shm"
)

var (
	rate     int
	duration time.Duration
	version  uint32
	keep     bool
)

func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "acts as the game and writes moving snapshots into the region",
		Long: `Creates the telemetry region and writes a car driving a wavy track into it.
Useful to test motion rigs and the run command without starting the game.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.SetupLogger(cmd); err != nil {
				return err
			}
			return simulate(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&rate, "rate", 60, "updates per second")
	cmd.Flags().DurationVar(&duration, "duration", 0,
		"stop after this duration (0 runs until interrupted)")
	cmd.Flags().Uint32Var(&version, "version", 2, "header version to announce")
	cmd.Flags().BoolVar(&keep, "keep", false, "do not remove the region on exit")
	return cmd
}

//nolint:funlen // by design
func simulate(ctx context.Context) error {
	if rate <= 0 {
		return fmt.Errorf("invalid rate %d", rate)
	}
	region, err := shm.CreateInDir(config.ShmDir, config.RegionName, model.SnapshotSize)
	if err != nil {
		log.Error("could not create region", log.ErrorField(err))
		return err
	}
	defer func() {
		region.Close()
		if !keep {
			if err := shm.Remove(config.ShmDir, config.RegionName); err != nil {
				log.Warn("could not remove region", log.ErrorField(err))
			}
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	log.Info("Simulating producer",
		log.String("region", config.RegionName),
		log.Int("rate", rate),
		log.Uint32("version", version))

	g := newGenerator(version)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	start := time.Now()
	for {
		data, err := model.Encode(g.next(time.Since(start)))
		if err != nil {
			return err
		}
		if _, err := region.WriteAt(data, 0); err != nil {
			log.Error("could not write snapshot", log.ErrorField(err))
			return err
		}
		select {
		case <-ctx.Done():
			log.Info("Simulation stopped", log.Uint32("updates", g.snapshot.UpdateNumber))
			return nil
		case <-ticker.C:
		}
	}
}

// generator produces snapshots of a car driving a wavy track.
type generator struct {
	snapshot *model.Snapshot
	last     time.Duration
}

func newGenerator(v uint32) *generator {
	s := model.NewSnapshot(v)
	s.Game.State = model.GameRunning
	model.SetText(s.Game.GameplayVariant[:], "CarSport")
	model.SetText(s.Game.MapID[:], "simulated")
	model.SetText(s.Game.MapName[:], "Simulation")
	s.Race.State = model.RaceRunning
	s.Race.NbCheckpointsPerLap = 4
	s.Race.NbLaps = 1
	s.Object.Rotation.W = 1
	return &generator{snapshot: s}
}

// next advances the simulation to elapsed and returns the updated snapshot.
// The returned snapshot is reused by subsequent calls.
func (g *generator) next(elapsed time.Duration) *model.Snapshot {
	s := g.snapshot
	ms := uint32(elapsed.Milliseconds())
	sec := elapsed.Seconds()
	dt := (elapsed - g.last).Seconds()
	g.last = elapsed

	s.UpdateNumber++
	s.Race.Time = ms
	s.Object.Timestamp = ms
	s.Vehicle.Timestamp = ms

	speed := 30 + 10*math.Sin(sec/4) // m/s
	s.Object.Velocity = model.Vec3{Z: float32(speed)}
	s.Object.Translation.Z += float32(speed * dt)
	s.Vehicle.SpeedMeter = uint32(speed * 3.6)
	s.Vehicle.InputGasPedal = 1
	s.Vehicle.InputSteer = float32(math.Sin(sec))
	s.Vehicle.EngineCurGear = int32(1 + int(speed/10))
	s.Vehicle.EngineRpm = float32(8000 + 2000*math.Sin(sec*2))
	for i := range s.Vehicle.WheelsIsGroundContact {
		s.Vehicle.WheelsIsGroundContact[i] = model.BoolOf(true)
	}

	s.Device.Euler = model.Vec3{
		X: float32(math.Sin(sec / 8)),
		Y: float32(0.2 * math.Sin(sec)),
		Z: float32(0.1 * math.Cos(sec*1.5)),
	}
	s.Device.CenteredYaw = float32(math.Sin(sec/8) * 180 / math.Pi)
	s.Device.CenteredAltitude = float32(2 * math.Sin(sec/2))
	return s
}
