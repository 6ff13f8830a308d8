package dump

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/tm-telemetry-provider/pkg/model"
	"github.com/mpapenbr/tm-telemetry-provider/pkg/values"
)

func sampleData() map[string]any {
	s := model.NewSnapshot(2)
	s.Game.State = model.GameRunning
	s.Vehicle.SpeedMeter = 120
	s.Vehicle.WheelsIsSliping[1] = model.BoolOf(true)
	s.Device.Euler = model.Vec3{X: 0.5, Y: 0.25, Z: -0.5}
	return nest(values.NewInfo(s).Map())
}

func TestNest(t *testing.T) {
	got := nest(map[string]any{
		"Heave":          float64(1.5),
		"Game.State":     "Running",
		"Device.Euler.X": float32(0.5),
		"Race.Times":     []uint32{1, 2},
	})
	want := map[string]any{
		"Heave": 1.5,
		"Game":  map[string]any{"State": "Running"},
		"Device": map[string]any{
			"Euler": map[string]any{"X": 0.5},
		},
		"Race": map[string]any{"Times": []any{int64(1), int64(2)}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("nest() mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyQuery(t *testing.T) {
	data := sampleData()

	res, err := applyQuery(data, "$.Device.Euler.X")
	require.NoError(t, err)
	assert.Equal(t, 0.5, res)

	res, err = applyQuery(data, "$.Vehicle.WheelsIsSliping")
	require.NoError(t, err)
	assert.Equal(t, []any{false, true, false, false}, res)

	_, err = applyQuery(data, "$.NoSuchBlock")
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, write(&buf, sampleData(), "json"))

	parsed, err := oj.ParseString(buf.String())
	require.NoError(t, err)
	m, ok := parsed.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Running", m["Game"].(map[string]any)["State"])
	assert.Equal(t, int64(120), m["Vehicle"].(map[string]any)["SpeedMeter"])
}

func TestWriteYAML(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, write(&buf, sampleData(), "yaml"))

	parsed := map[string]any{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, model.Magic, parsed["Header"].(map[string]any)["Magic"])
	assert.Equal(t, 120, parsed["Vehicle"].(map[string]any)["SpeedMeter"])
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, write(&bytes.Buffer{}, sampleData(), "xml"))
}
