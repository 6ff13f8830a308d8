// Package values resolves telemetry values by name.
//
// Names are derived from the snapshot layout: nested fields are joined with
// a dot (Vehicle.EngineRpm, Object.Rotation.W). The computed values Heave,
// Pitch, Roll, Yaw and RPM are part of the same namespace.
package values

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
)

var ErrUnknownValue = errors.New("unknown telemetry value")

type Value struct {
	Name  string
	Value any
	Unit  string
}

func (v Value) String() string {
	return strings.TrimSpace(fmt.Sprintf("%v %s", v.Value, v.Unit))
}

// Info holds one snapshot together with its derived values.
// It must not be modified once created.
type Info struct {
	snapshot *model.Snapshot
	derived  model.Derived
}

// NewInfo computes the derived values for s. s must not be modified afterwards.
func NewInfo(s *model.Snapshot) *Info {
	ret := &Info{snapshot: s}
	if s != nil {
		ret.derived = s.Derive()
	}
	return ret
}

func (i *Info) Snapshot() *model.Snapshot {
	return i.snapshot
}

func (i *Info) Derived() model.Derived {
	return i.derived
}

// ValueByName returns the named value. Unknown names as well as values not
// available for the current snapshot yield ErrUnknownValue.
func (i *Info) ValueByName(name string) (Value, error) {
	e, ok := registry.lookup[name]
	if !ok || i == nil || i.snapshot == nil {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownValue, name)
	}
	v, ok := e.get(i.snapshot, &i.derived)
	if !ok || v == nil {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownValue, name)
	}
	return Value{Name: name, Value: v, Unit: e.unit}, nil
}

// Map returns all available values keyed by name. Enumerations are
// converted to their names.
func (i *Info) Map() map[string]any {
	ret := make(map[string]any, len(registry.names))
	for _, name := range registry.names {
		v, err := i.ValueByName(name)
		if err != nil {
			continue
		}
		if s, ok := v.Value.(fmt.Stringer); ok {
			ret[name] = s.String()
		} else {
			ret[name] = v.Value
		}
	}
	return ret
}

// Names returns all known value names, derived values first.
func Names() []string {
	return append([]string{}, registry.names...)
}

// Unit returns the unit of the named value, if any.
func Unit(name string) (string, error) {
	e, ok := registry.lookup[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownValue, name)
	}
	return e.unit, nil
}
