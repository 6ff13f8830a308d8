package check

import (
	"github.com/spf13/cobra"
)

func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "commands to check the telemetry region",
	}

	cmd.AddCommand(NewCheckRegionCmd())
	cmd.AddCommand(NewCheckActivityCmd())

	return cmd
}

var waitArg string
