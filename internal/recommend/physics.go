// Package recommend computes recommended cold inflation pressures and the
// rolling-resistance energy cost of running tyres away from them.
//
// Rolling coefficient, with p in bar and v in km/h:
//
//	c = 0.005 + b/p,  b = 0.01 + 0.0095 (v/100)^2
//
// The speed-calibrated optimum keeps c_base = b0/p_ref^2 fixed at a baseline
// speed and solves p_opt = sqrt(b/c_base). Energy per axle is c·m·g·d.
package recommend

import (
	"math"
	"strings"
)

const (
	// PSIToBar converts pounds per square inch to bar.
	PSIToBar = 0.0689476
	// MJPerLiterDiesel is the net energy density of diesel.
	MJPerLiterDiesel = 35.86
	// ReferenceLoadKG is the axle load at which reference pressures apply.
	ReferenceLoadKG = 6000.0
	// MaxTotalWeightKG is the legal gross combination weight (DS 158/1980).
	MaxTotalWeightKG = 45000.0
	// UsedTyreFactor derates pressure for tyres with service history.
	UsedTyreFactor = 0.98
	// BaselineSpeedKmh calibrates the optimum-pressure model.
	BaselineSpeedKmh = 80.0

	hotTempC   = 60.0
	minColdPSI = 70.0
	maxColdPSI = 120.0
	gravity    = 9.81
)

// AxleClass groups axles that share a reference pressure.
type AxleClass string

const (
	AxleSteer   AxleClass = "direccional"
	AxleDrive   AxleClass = "traccion"
	AxleTrailer AxleClass = "arrastre"
)

var referencePSI = map[AxleClass]float64{
	AxleSteer:   110,
	AxleDrive:   105,
	AxleTrailer: 100,
}

// ReferencePressure returns the cold reference pressure of an axle class.
func ReferencePressure(class AxleClass) (float64, bool) {
	p, ok := referencePSI[class]
	return p, ok
}

// ReferenceForEjeTipo maps a normalized eje_tipo label to its reference
// pressure.
func ReferenceForEjeTipo(ejeTipo string) (float64, bool) {
	return ReferencePressure(AxleClass(strings.ToLower(strings.TrimSpace(ejeTipo))))
}

// RollingCoefficient returns the rolling-resistance coefficient at the given
// pressure and speed.
func RollingCoefficient(psi, speedKmh float64) float64 {
	pBar := psi * PSIToBar
	return 0.005 + speedTerm(speedKmh)/pBar
}

// EnergyJoules returns the rolling-resistance energy for one axle over a trip.
func EnergyJoules(psi, speedKmh, loadKG, distanceKM float64) float64 {
	force := RollingCoefficient(psi, speedKmh) * loadKG * gravity
	return force * distanceKM * 1000
}

// OptimumHotPressure returns the hot pressure that minimizes rolling
// resistance at speedKmh, calibrated so that refPSI is optimal at
// baselineKmh.
func OptimumHotPressure(speedKmh, refPSI, baselineKmh float64) float64 {
	refBar := refPSI * PSIToBar
	cBase := speedTerm(baselineKmh) / (refBar * refBar)
	optBar := math.Sqrt(speedTerm(speedKmh) / cBase)
	return optBar / PSIToBar
}

func speedTerm(speedKmh float64) float64 {
	v := speedKmh / 100
	return 0.01 + 0.0095*v*v
}

// SurfaceFactor derates pressure on loose or wet surfaces. Both English and
// Spanish labels are accepted.
func SurfaceFactor(surface string) float64 {
	switch strings.ToLower(strings.TrimSpace(surface)) {
	case "gravel", "sand", "rough", "gravilla", "arena", "ripio", "tierra":
		return 0.9
	case "wet", "mojado":
		return 0.95
	default:
		return 1
	}
}

// GradeFactor derates pressure on grades steeper than 5 %.
func GradeFactor(gradePercent float64) float64 {
	if gradePercent > 5 {
		return 0.95
	}
	return 1
}

// HotToCold converts a hot pressure to its cold equivalent at ambientC.
func HotToCold(hotPSI, ambientC float64) float64 {
	return hotPSI * (ambientC + 273.15) / (hotTempC + 273.15)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(math.Min(v, hi), lo)
}
