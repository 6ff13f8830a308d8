// Package angle turns the producer's accumulated rotation values into
// bounded tilt angles usable by a motion platform.
package angle

import "math"

// MinMagnitude is the tilt (in degrees) up to which angles are passed unchanged by Fold.
const MinMagnitude = 90.0

func RadToDeg(v float64) float64 {
	return v * 180 / math.Pi
}

// Wrap converts an accumulated angle in radians into degrees within [-180,180].
func Wrap(rad float64) float64 {
	turns := RadToDeg(rad) / 360
	phase := (turns - math.Trunc(turns)) * 360
	if phase > 180 {
		neg := -turns
		phase = -((neg-math.Trunc(neg))*360 + 360)
	}
	if phase < -180 {
		phase += 360
	}
	return phase
}

// Fold mirrors angles whose magnitude exceeds minMag at +/-90 degrees.
// 135 becomes 45, -135 becomes -45. The threshold itself is not folded.
func Fold(deg, minMag float64) float64 {
	if math.Abs(deg) <= minMag {
		return deg
	}
	direction := 1.0
	if deg < 0 {
		direction = -1.0
	}
	return 180*direction - deg
}

// Normalize applies Wrap and Fold with MinMagnitude.
func Normalize(rad float64) float64 {
	return Fold(Wrap(rad), MinMagnitude)
}
