package values

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/cmd/util"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/values"
)

var prefix string

func NewValuesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "values",
		Short: "lists the names of all available values",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listValues(cmd.OutOrStdout(), prefix)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "",
		"only list values starting with this prefix, example: 'Vehicle.'")
	cmd.AddCommand(newGetCmd())
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME...",
		Short: "reads one snapshot and prints the requested values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.SetupLogger(cmd); err != nil {
				return err
			}
			shutdown := util.StartTelemetry(cmd.Context())
			defer shutdown()
			s, err := util.ReadSnapshot(cmd.Context(), "values get")
			if err != nil {
				log.Error("could not read snapshot", log.ErrorField(err))
				return err
			}
			return printValues(cmd.OutOrStdout(), values.NewInfo(s), args)
		},
	}
}

// selectNames returns the known names matching prefix (case insensitive).
func selectNames(p string) []string {
	p = strings.ToLower(p)
	return lo.Filter(values.Names(), func(name string, _ int) bool {
		return strings.HasPrefix(strings.ToLower(name), p)
	})
}

func listValues(w io.Writer, p string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range selectNames(p) {
		unit := lo.Must(values.Unit(name))
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", name, unit); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printValues(w io.Writer, info *values.Info, names []string) error {
	var errs []error
	for _, name := range lo.Uniq(names) {
		v, err := info.ValueByName(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", v.Name, v.String()); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
