package model

import "github.com/mpapenbr/tm-telemetry-provider/pkg/angle"

// Derived holds the values computed from a Snapshot for motion platforms.
type Derived struct {
	Heave float64
	Pitch float64 `unit:"deg"`
	Roll  float64 `unit:"deg"`
	Yaw   float64
	RPM   float64 `unit:"rpm"`
}

// Derive computes the derived values. Euler.Y is used for pitch and
// Euler.Z for roll, which is what consumers of this data expect.
func (s *Snapshot) Derive() Derived {
	return Derived{
		Heave: float64(s.Device.CenteredAltitude),
		Pitch: angle.Normalize(float64(s.Device.Euler.Y)),
		Roll:  angle.Normalize(float64(s.Device.Euler.Z)),
		Yaw:   float64(s.Device.CenteredYaw),
		RPM:   float64(s.Vehicle.EngineRpm),
	}
}
