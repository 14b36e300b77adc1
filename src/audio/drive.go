package audio

import (
	"math"
)

// ----- Drive Curve ----- //

// A drive curve maps a normalized position (0..1) to an amplitude
// multiplier. Unknown names fall back to linear.
const (
	driveLinear = iota
	driveExponential
	driveLogarithmic
	driveSine
)

func driveCurveFromString(s string) int {
	switch s {
	case "linear", "":
		return driveLinear
	case "exponential":
		return driveExponential
	case "logarithmic":
		return driveLogarithmic
	case "sine":
		return driveSine
	}
	return driveLinear
}

func driveCurveToString(kind int) string {
	switch kind {
	case driveExponential:
		return "exponential"
	case driveLogarithmic:
		return "logarithmic"
	case driveSine:
		return "sine"
	}
	return "linear"
}

func driveCurveValue(kind int, pos float64) float64 {
	switch kind {
	case driveExponential:
		return pos * pos
	case driveLogarithmic:
		return math.Sqrt(pos)
	case driveSine:
		return math.Sin(pos * math.Pi / 2)
	}
	return pos
}
