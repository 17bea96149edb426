package recommend

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Conditions describes a single axle and its operating environment.
type Conditions struct {
	LoadPerAxleKG float64 `validate:"gt=0,lte=20000"`
	AmbientTempC  float64 `validate:"gte=-40,lte=60"`
	SpeedKmh      float64 `validate:"gte=0,lte=150"`
	GradePercent  float64 `validate:"gte=-30,lte=30"`
	Surface       string
	// HistoryFactor is 1 for new tyres; see UsedTyreFactor.
	HistoryFactor float64 `validate:"gt=0,lte=1"`
	ReferencePSI  float64 `validate:"gt=0,lte=200"`
	// LoadExponent scales pressure with (load/ReferenceLoadKG)^k.
	LoadExponent float64 `validate:"gt=0,lte=3"`
}

// DefaultConditions returns a new-tyre trailer axle at reference load on dry
// asphalt, 20 °C, 80 km/h.
func DefaultConditions() Conditions {
	return Conditions{
		LoadPerAxleKG: ReferenceLoadKG,
		AmbientTempC:  20,
		SpeedKmh:      BaselineSpeedKmh,
		HistoryFactor: 1,
		ReferencePSI:  referencePSI[AxleTrailer],
		LoadExponent:  1,
	}
}

// ColdPressure applies the heuristic adjustments to the reference pressure
// and returns the recommended cold pressure, clamped to 70..120 psi.
func ColdPressure(c Conditions) (float64, error) {
	if err := validate.Struct(c); err != nil {
		return 0, fmt.Errorf("invalid conditions: %w", err)
	}

	hot := c.ReferencePSI * math.Pow(c.LoadPerAxleKG/ReferenceLoadKG, c.LoadExponent)
	if c.SpeedKmh > 90 {
		hot *= 1.05
	}
	hot *= SurfaceFactor(c.Surface)
	hot *= GradeFactor(c.GradePercent)
	hot *= c.HistoryFactor

	return clamp(HotToCold(hot, c.AmbientTempC), minColdPSI, maxColdPSI), nil
}

// TruckConfig describes a tractor wheel formula such as "6x4".
type TruckConfig struct {
	Code         string
	Axles        int
	SteerAxles   int
	Description  string
	DrivenWheels int
}

var truckConfigs = map[string]TruckConfig{
	"4x2":  {"4x2", 2, 1, "un eje direccional y un eje trasero motriz", 2},
	"4x4":  {"4x4", 2, 1, "dos ejes, ambos motrices", 4},
	"6x2":  {"6x2", 3, 1, "un eje motriz y un eje auxiliar", 2},
	"6x4":  {"6x4", 3, 1, "tándem trasero motriz y eje delantero", 4},
	"6x6":  {"6x6", 3, 1, "tres ejes con tracción total", 6},
	"8x2":  {"8x2", 4, 2, "doble dirección delantera y un eje motriz", 2},
	"8x4":  {"8x4", 4, 2, "doble dirección delantera y dos ejes motrices", 4},
	"8x6":  {"8x6", 4, 2, "tres ejes motrices", 6},
	"8x8":  {"8x8", 4, 2, "cuatro ejes, todos motrices", 8},
	"10x4": {"10x4", 5, 2, "dos direccionales y tridem trasero", 4},
	"10x6": {"10x6", 5, 2, "cinco ejes con tres motrices", 6},
	"10x8": {"10x8", 5, 2, "cinco ejes con cuatro motrices", 8},
}

// TruckConfigs lists the known wheel formulas ordered by axle count.
func TruckConfigs() []TruckConfig {
	out := make([]TruckConfig, 0, len(truckConfigs))
	for _, c := range truckConfigs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Axles != out[j].Axles {
			return out[i].Axles < out[j].Axles
		}
		return out[i].DrivenWheels < out[j].DrivenWheels
	})
	return out
}

var semitrailerAxles = map[string]int{"S1": 1, "S2": 2, "S3": 3}

// LookupTruckConfig resolves a wheel formula, accepting "6x4", "6X4" or "6×4".
func LookupTruckConfig(code string) (TruckConfig, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "×", "x")
	cfg, ok := truckConfigs[code]
	return cfg, ok
}

// SemitrailerAxles returns the axle count of a semitrailer class S1..S3.
func SemitrailerAxles(class string) (int, bool) {
	n, ok := semitrailerAxles[strings.ToUpper(strings.TrimSpace(class))]
	return n, ok
}

// Trip is a combination vehicle with per-axle loads and, optionally, the
// pressures measured before departure.
type Trip struct {
	Plate          string    `validate:"required"`
	Config         string    `validate:"required"`
	Semitrailer    string    `validate:"omitempty,oneof=S1 S2 S3 s1 s2 s3"`
	DistanceKM     float64   `validate:"gt=0"`
	SpeedKmh       float64   `validate:"gt=0,lte=150"`
	AmbientTempC   float64   `validate:"gte=-40,lte=60"`
	GradePercent   float64   `validate:"gte=-30,lte=30"`
	Surface        string    `validate:"max=32"`
	UsedTyres      bool      `validate:"-"`
	TractorLoadsKG []float64 `validate:"required,dive,gt=0"`
	TrailerLoadsKG []float64 `validate:"dive,gt=0"`
	TractorPSI     []float64 `validate:"dive,gt=0"`
	TrailerPSI     []float64 `validate:"dive,gt=0"`
}

// AxleResult is the recommendation for one axle.
type AxleResult struct {
	Unit       string // "tractor" or "remolque"
	Index      int    // 1-based within the unit
	Class      AxleClass
	LoadKG     float64
	OptimalPSI float64
	ActualPSI  *float64

	OptimalMJ float64
	ActualMJ  *float64
	GapMJ     *float64
	GapPct    *float64
	GapLiters *float64
}

// Plan is the full trip evaluation.
type Plan struct {
	Plate        string
	Axles        []AxleResult
	TotalLoadKG  float64
	OverweightKG float64
	OptimalMJ    float64
	ActualMJ     *float64
	GapMJ        *float64
	GapPct       *float64
	GapLiters    *float64
}

// ErrAxleMismatch reports per-axle inputs that do not match the vehicle layout.
var ErrAxleMismatch = errors.New("axle count mismatch")

// Evaluate computes the optimal cold pressure of every axle, the energy the
// trip costs at those pressures and, when measured pressures are given, the
// extra energy and diesel implied by the measured ones.
func Evaluate(trip Trip) (Plan, error) {
	if err := validate.Struct(trip); err != nil {
		return Plan{}, fmt.Errorf("invalid trip: %w", err)
	}
	cfg, ok := LookupTruckConfig(trip.Config)
	if !ok {
		return Plan{}, fmt.Errorf("unknown truck configuration %q", trip.Config)
	}
	if len(trip.TractorLoadsKG) != cfg.Axles {
		return Plan{}, fmt.Errorf("%w: %s has %d axles, got %d tractor loads", ErrAxleMismatch, cfg.Code, cfg.Axles, len(trip.TractorLoadsKG))
	}
	if trip.Semitrailer != "" {
		n, _ := SemitrailerAxles(trip.Semitrailer)
		if len(trip.TrailerLoadsKG) != n {
			return Plan{}, fmt.Errorf("%w: %s has %d axles, got %d trailer loads", ErrAxleMismatch, strings.ToUpper(trip.Semitrailer), n, len(trip.TrailerLoadsKG))
		}
	}
	if len(trip.TractorPSI) > 0 && len(trip.TractorPSI) != len(trip.TractorLoadsKG) {
		return Plan{}, fmt.Errorf("%w: %d tractor pressures for %d axles", ErrAxleMismatch, len(trip.TractorPSI), len(trip.TractorLoadsKG))
	}
	if len(trip.TrailerPSI) > 0 && len(trip.TrailerPSI) != len(trip.TrailerLoadsKG) {
		return Plan{}, fmt.Errorf("%w: %d trailer pressures for %d axles", ErrAxleMismatch, len(trip.TrailerPSI), len(trip.TrailerLoadsKG))
	}

	plan := Plan{Plate: strings.ToUpper(strings.TrimSpace(trip.Plate))}
	for i, load := range trip.TractorLoadsKG {
		class := AxleDrive
		if i < cfg.SteerAxles {
			class = AxleSteer
		}
		plan.Axles = append(plan.Axles, evaluateAxle(trip, "tractor", i, class, load, trip.TractorPSI))
	}
	for i, load := range trip.TrailerLoadsKG {
		plan.Axles = append(plan.Axles, evaluateAxle(trip, "remolque", i, AxleTrailer, load, trip.TrailerPSI))
	}

	measured := len(trip.TractorPSI) > 0 || len(trip.TrailerPSI) > 0
	var actual float64
	complete := measured
	for _, a := range plan.Axles {
		plan.TotalLoadKG += a.LoadKG
		plan.OptimalMJ += a.OptimalMJ
		if a.ActualMJ != nil {
			actual += *a.ActualMJ
		} else {
			complete = false
		}
	}
	plan.OverweightKG = math.Max(0, plan.TotalLoadKG-MaxTotalWeightKG)
	if complete {
		gap := actual - plan.OptimalMJ
		plan.ActualMJ = &actual
		plan.GapMJ = &gap
		plan.GapPct = gapPercent(gap, plan.OptimalMJ)
		plan.GapLiters = ptr(math.Abs(gap) / MJPerLiterDiesel)
	}
	return plan, nil
}

func evaluateAxle(trip Trip, unit string, i int, class AxleClass, load float64, measured []float64) AxleResult {
	ref := referencePSI[class]
	hot := OptimumHotPressure(trip.SpeedKmh, ref, BaselineSpeedKmh)
	hot *= load / ReferenceLoadKG
	hot *= SurfaceFactor(trip.Surface)
	hot *= GradeFactor(trip.GradePercent)
	if trip.UsedTyres {
		hot *= UsedTyreFactor
	}
	optimal := clamp(HotToCold(hot, trip.AmbientTempC), math.Max(ref-10, minColdPSI), maxColdPSI)

	res := AxleResult{
		Unit:       unit,
		Index:      i + 1,
		Class:      class,
		LoadKG:     load,
		OptimalPSI: optimal,
		OptimalMJ:  EnergyJoules(optimal, trip.SpeedKmh, load, trip.DistanceKM) / 1e6,
	}
	if i < len(measured) {
		p := measured[i]
		mj := EnergyJoules(p, trip.SpeedKmh, load, trip.DistanceKM) / 1e6
		gap := mj - res.OptimalMJ
		res.ActualPSI = &p
		res.ActualMJ = &mj
		res.GapMJ = &gap
		res.GapPct = gapPercent(gap, res.OptimalMJ)
		res.GapLiters = ptr(math.Abs(gap) / MJPerLiterDiesel)
	}
	return res
}

func gapPercent(gap, base float64) *float64 {
	if base <= 0 {
		return nil
	}
	return ptr(gap / base * 100)
}

func ptr[T any](v T) *T {
	return &v
}
