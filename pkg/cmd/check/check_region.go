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
	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/utils"
)

func NewCheckRegionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region",
		Short: "check the region exists and carries a valid header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.SetupLogger(cmd); err != nil {
				return err
			}
			return checkRegion(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&waitArg, "wait", "0s",
		"wait this long for the region to appear")
	return cmd
}

func checkRegion(ctx context.Context, w io.Writer) error {
	logger := log.GetFromContext(ctx).Named("check")
	timeout, err := time.ParseDuration(waitArg)
	if err != nil {
		logger.Warn("Invalid duration value. Not waiting", log.ErrorField(err))
		timeout = 0
	}
	if timeout > 0 {
		if err = utils.WaitForRegion(util.OpenFunc(), config.RegionName, timeout); err != nil {
			logger.Error("region not ready", log.ErrorField(err))
			return err
		}
	}
	reader := util.NewReader()
	defer reader.Close()
	s, err := reader.Read()
	if err != nil {
		logger.Error("could not read region", log.ErrorField(err))
		return err
	}
	return describe(w, s)
}

// describe prints the header of s and returns the validation result.
func describe(w io.Writer, s *model.Snapshot) error {
	fmt.Fprintf(w, "magic:        %s\n", model.Text(s.Header.Magic[:]))
	fmt.Fprintf(w, "version:      %d\n", s.Header.Version)
	fmt.Fprintf(w, "size:         %d (expected %d)\n", s.Header.Size, model.SnapshotSize)
	fmt.Fprintf(w, "updateNumber: %d\n", s.UpdateNumber)
	fmt.Fprintf(w, "game:         %s\n", s.Game.State)
	fmt.Fprintf(w, "race:         %s\n", s.Race.State)
	if err := s.Validate(); err != nil {
		fmt.Fprintf(w, "status:       invalid (%v)\n", err)
		return err
	}
	fmt.Fprintln(w, "status:       ok")
	return nil
}
