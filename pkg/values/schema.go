package values

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
)

// accessor extracts one value. ok is false if the value is absent.
type accessor func(s *model.Snapshot, d *model.Derived) (v any, ok bool)

type entry struct {
	unit string
	get  accessor
}

type schema struct {
	names  []string
	lookup map[string]entry
}

// the schema is built once from the model types
var registry = buildSchema()

var boolType = reflect.TypeFor[model.Bool]()

func buildSchema() *schema {
	ret := &schema{lookup: make(map[string]entry)}
	// derived values come first
	dt := reflect.TypeFor[model.Derived]()
	for i := range dt.NumField() {
		f := dt.Field(i)
		idx := f.Index
		ret.add(f.Name, f.Tag.Get("unit"),
			func(_ *model.Snapshot, d *model.Derived) (any, bool) {
				return reflect.ValueOf(d).Elem().FieldByIndex(idx).Interface(), true
			})
	}
	ret.walk(reflect.TypeFor[model.Snapshot](), "", nil, 0, "")
	return ret
}

func (s *schema) add(name, unit string, get accessor) {
	if _, ok := s.lookup[name]; ok {
		panic("duplicate value name " + name)
	}
	s.names = append(s.names, name)
	s.lookup[name] = entry{unit: unit, get: get}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *schema) walk(
	t reflect.Type, prefix string, index []int, minVersion uint32, unit string,
) {
	for i := range t.NumField() {
		f := t.Field(i)
		if f.Name == "Reserved" {
			continue
		}
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}
		idx := append(append([]int{}, index...), i)
		fMinVersion := minVersion
		if v, ok := parseMinVersion(f.Tag.Get("tm")); ok {
			fMinVersion = v
		}
		fUnit := unit
		if u := f.Tag.Get("unit"); u != "" {
			fUnit = u
		}
		if f.Type.Kind() == reflect.Struct {
			s.walk(f.Type, name, idx, fMinVersion, fUnit)
			continue
		}
		conv := converter(f.Type)
		s.add(name, fUnit, func(snap *model.Snapshot, _ *model.Derived) (any, bool) {
			if snap.Header.Version < fMinVersion {
				return nil, false
			}
			return conv(reflect.ValueOf(snap).Elem().FieldByIndex(idx)), true
		})
	}
}

// converter returns the function that turns a raw field into the value
// handed out to callers.
func converter(t reflect.Type) func(reflect.Value) any {
	switch {
	case t == boolType:
		return func(v reflect.Value) any { return v.Interface().(model.Bool).Value() }
	case t.Kind() == reflect.Array && t.Elem().Kind() == reflect.Uint8:
		return func(v reflect.Value) any {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return model.Text(b)
		}
	case t.Kind() == reflect.Array && t.Elem() == boolType:
		return func(v reflect.Value) any {
			ret := make([]bool, v.Len())
			for i := range ret {
				ret[i] = v.Index(i).Interface().(model.Bool).Value()
			}
			return ret
		}
	case t.Kind() == reflect.Array:
		return func(v reflect.Value) any {
			ret := reflect.MakeSlice(reflect.SliceOf(t.Elem()), v.Len(), v.Len())
			reflect.Copy(ret, v)
			return ret.Interface()
		}
	default:
		return func(v reflect.Value) any { return v.Interface() }
	}
}

func parseMinVersion(tag string) (uint32, bool) {
	for _, part := range strings.Split(tag, ",") {
		if v, ok := strings.CutPrefix(part, "minVersion="); ok {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				panic(fmt.Sprintf("invalid minVersion tag %q", tag))
			}
			return uint32(n), true
		}
	}
	return 0, false
}
