package dump

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/tm-telemetry-provider/log"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/cmd/util"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/values"
)

var (
	format string
	query  string
)

func NewDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "reads one snapshot and prints all values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := util.SetupLogger(cmd); err != nil {
				return err
			}
			return dumpSnapshot(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")
	cmd.Flags().StringVar(&query, "query", "",
		"JSONPath expression selecting parts of the output, example: '$.Device.Euler'")
	return cmd
}

func dumpSnapshot(ctx context.Context, w io.Writer) error {
	shutdown := util.StartTelemetry(ctx)
	defer shutdown()

	s, err := util.ReadSnapshot(ctx, "dump")
	if err != nil {
		log.Error("could not read snapshot", log.ErrorField(err))
		return err
	}

	var data any = nest(values.NewInfo(s).Map())
	if query != "" {
		if data, err = applyQuery(data, query); err != nil {
			return err
		}
	}
	return write(w, data, format)
}

func applyQuery(data any, q string) (any, error) {
	path, err := jp.ParseString(q)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", q, err)
	}
	res := path.Get(data)
	switch len(res) {
	case 0:
		return nil, fmt.Errorf("query %q did not match", q)
	case 1:
		return res[0], nil
	default:
		return res, nil
	}
}

func write(w io.Writer, data any, f string) error {
	switch f {
	case "json":
		_, err := fmt.Fprintln(w, oj.JSON(data, &oj.Options{Indent: 2, Sort: true}))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// nest turns dotted names into nested maps holding generic values only.
func nest(flat map[string]any) map[string]any {
	ret := map[string]any{}
	for name, v := range flat {
		parts := strings.Split(name, ".")
		cur := ret
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = generic(v)
	}
	return ret
}

func generic(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		ret := make([]any, rv.Len())
		for i := range ret {
			ret[i] = generic(rv.Index(i).Interface())
		}
		return ret
	default:
		return fmt.Sprintf("%v", v)
	}
}
