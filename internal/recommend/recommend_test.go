package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColdPressure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Conditions)
		want   float64
	}{
		{"reference conditions", func(*Conditions) {}, 87.993},
		{"high speed adds five percent", func(c *Conditions) { c.SpeedKmh = 100 }, 92.393},
		{"gravel derates", func(c *Conditions) { c.Surface = "Gravilla" }, 79.194},
		{"wet and steep", func(c *Conditions) { c.Surface = "wet"; c.GradePercent = 8 }, 79.414},
		{"clamped at minimum", func(c *Conditions) { c.LoadPerAxleKG = 2000 }, 70},
		{"clamped at maximum", func(c *Conditions) { c.LoadPerAxleKG = 12000 }, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConditions()
			tt.mutate(&c)
			got, err := ColdPressure(c)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.01)
		})
	}
}

func TestColdPressure_Invalid(t *testing.T) {
	c := DefaultConditions()
	c.LoadPerAxleKG = 0
	_, err := ColdPressure(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LoadPerAxleKG")
}

func TestOptimumHotPressure(t *testing.T) {
	assert.InDelta(t, 110.0, OptimumHotPressure(BaselineSpeedKmh, 110, BaselineSpeedKmh), 1e-9)
	assert.InDelta(t, 110.122, OptimumHotPressure(100, 100, BaselineSpeedKmh), 0.01)
	assert.Less(t, OptimumHotPressure(50, 100, BaselineSpeedKmh), 100.0)
}

func TestRollingCoefficientAndEnergy(t *testing.T) {
	assert.InDelta(t, 0.0073322, RollingCoefficient(100, 80), 1e-6)
	assert.InDelta(t, 431573, EnergyJoules(100, 80, 6000, 1), 50)
	assert.Greater(t, RollingCoefficient(80, 80), RollingCoefficient(100, 80))
}

func TestReferenceForEjeTipo(t *testing.T) {
	tests := []struct {
		eje  string
		want float64
		ok   bool
	}{
		{"direccional", 110, true},
		{"traccion", 105, true},
		{" Arrastre ", 100, true},
		{"auxiliar", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.eje, func(t *testing.T) {
			got, ok := ReferenceForEjeTipo(tt.eje)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate(t *testing.T) {
	trip := Trip{
		Plate:          "abcd12",
		Config:         "4×2",
		Semitrailer:    "S1",
		DistanceKM:     100,
		SpeedKmh:       80,
		AmbientTempC:   20,
		TractorLoadsKG: []float64{6000, 6000},
		TrailerLoadsKG: []float64{6000},
		TractorPSI:     []float64{100, 100},
		TrailerPSI:     []float64{90},
	}

	plan, err := Evaluate(trip)
	require.NoError(t, err)
	require.Len(t, plan.Axles, 3)

	assert.Equal(t, "ABCD12", plan.Plate)
	assert.Equal(t, AxleSteer, plan.Axles[0].Class)
	assert.Equal(t, AxleDrive, plan.Axles[1].Class)
	assert.Equal(t, AxleTrailer, plan.Axles[2].Class)
	assert.Equal(t, "remolque", plan.Axles[2].Unit)

	// Cold equivalents fall below ref-10, so the floor applies.
	assert.InDelta(t, 100, plan.Axles[0].OptimalPSI, 1e-9)
	assert.InDelta(t, 95, plan.Axles[1].OptimalPSI, 1e-9)
	assert.InDelta(t, 90, plan.Axles[2].OptimalPSI, 1e-9)

	assert.InDelta(t, 0, *plan.Axles[0].GapMJ, 1e-9)
	assert.Less(t, *plan.Axles[1].GapMJ, 0.0)
	require.NotNil(t, plan.GapMJ)
	assert.Less(t, *plan.GapMJ, 0.0)
	assert.InDelta(t, -*plan.GapMJ/MJPerLiterDiesel, *plan.GapLiters, 1e-9)
	assert.Equal(t, 18000.0, plan.TotalLoadKG)
	assert.Zero(t, plan.OverweightKG)
}

func TestEvaluate_WithoutMeasurements(t *testing.T) {
	plan, err := Evaluate(Trip{
		Plate:          "X1",
		Config:         "6x4",
		DistanceKM:     10,
		SpeedKmh:       90,
		TractorLoadsKG: []float64{7000, 19000, 19000},
	})
	require.NoError(t, err)
	assert.Nil(t, plan.ActualMJ)
	assert.Nil(t, plan.Axles[0].ActualPSI)
	assert.Greater(t, plan.OptimalMJ, 0.0)
}

func TestEvaluate_Overweight(t *testing.T) {
	plan, err := Evaluate(Trip{
		Plate:          "X1",
		Config:         "6x4",
		Semitrailer:    "S3",
		DistanceKM:     10,
		SpeedKmh:       80,
		TractorLoadsKG: []float64{7000, 10000, 10000},
		TrailerLoadsKG: []float64{8000, 8000, 8000},
	})
	require.NoError(t, err)
	assert.InDelta(t, 6000, plan.OverweightKG, 1e-9)
}

func TestEvaluate_Errors(t *testing.T) {
	base := Trip{Plate: "X1", Config: "6x4", DistanceKM: 10, SpeedKmh: 80, TractorLoadsKG: []float64{1, 2, 3}}

	tests := []struct {
		name   string
		mutate func(*Trip)
		target error
	}{
		{"tractor loads mismatch", func(tr *Trip) { tr.TractorLoadsKG = []float64{1, 2} }, ErrAxleMismatch},
		{"trailer loads mismatch", func(tr *Trip) { tr.Semitrailer = "S2"; tr.TrailerLoadsKG = []float64{1} }, ErrAxleMismatch},
		{"pressure count mismatch", func(tr *Trip) { tr.TractorPSI = []float64{100} }, ErrAxleMismatch},
		{"unknown config", func(tr *Trip) { tr.Config = "12x2" }, nil},
		{"missing plate", func(tr *Trip) { tr.Plate = "" }, nil},
		{"bad semitrailer class", func(tr *Trip) { tr.Semitrailer = "S9" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := base
			tt.mutate(&trip)
			_, err := Evaluate(trip)
			require.Error(t, err)
			if tt.target != nil {
				require.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestTruckConfigs_Ordered(t *testing.T) {
	cfgs := TruckConfigs()
	require.Len(t, cfgs, 12)
	assert.Equal(t, "4x2", cfgs[0].Code)
	assert.Equal(t, "10x8", cfgs[len(cfgs)-1].Code)
}
