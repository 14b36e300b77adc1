package audio

import (
	"math"
	"testing"
)

func TestDriveCurveEndpoints(t *testing.T) {
	for _, kind := range []int{driveLinear, driveExponential, driveLogarithmic, driveSine} {
		expectNearlyEqual(t, driveCurveValue(kind, 0), 0)
		expectNearlyEqual(t, driveCurveValue(kind, 1), 1)
	}
}

func TestDriveCurveMidpoints(t *testing.T) {
	expectNearlyEqual(t, driveCurveValue(driveLinear, 0.5), 0.5)
	expectNearlyEqual(t, driveCurveValue(driveExponential, 0.5), 0.25)
	expectNearlyEqual(t, driveCurveValue(driveLogarithmic, 0.5), math.Sqrt(0.5))
	expectNearlyEqual(t, driveCurveValue(driveSine, 0.5), math.Sin(math.Pi/4))
}

func TestDriveCurveFromString(t *testing.T) {
	expectEqual(t, driveCurveFromString("linear"), driveLinear)
	expectEqual(t, driveCurveFromString("exponential"), driveExponential)
	expectEqual(t, driveCurveFromString("logarithmic"), driveLogarithmic)
	expectEqual(t, driveCurveFromString("sine"), driveSine)
	// unknown names fall back to linear
	expectEqual(t, driveCurveFromString("wobble"), driveLinear)
	expectEqual(t, driveCurveFromString(""), driveLinear)
}

func TestDriveCurveRoundTrip(t *testing.T) {
	for _, kind := range []int{driveLinear, driveExponential, driveLogarithmic, driveSine} {
		expectEqual(t, driveCurveFromString(driveCurveToString(kind)), kind)
	}
}
