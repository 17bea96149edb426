package domain

import (
	"fmt"
	"math"
)

// Estado is the inflation classification of a reading.
type Estado string

const (
	EstadoOK           Estado = "OK"
	EstadoSubinflado   Estado = "SUBINFLADO"
	EstadoSobreinflado Estado = "SOBREINFLADO"
)

// DefaultTolerancePSI is the classification threshold used when none is configured.
const DefaultTolerancePSI = 3.0

// EnergyVariant selects how the energy-loss proxy is derived from the deviation.
type EnergyVariant string

const (
	// EnergyAbsolute: energia_perdida = |delta_psi| * Factor.
	EnergyAbsolute EnergyVariant = "absolute"
	// EnergyPercentage: indice_energia = |delta_pct| * K,
	// mj_extra = indice_energia / 100 * MJBase100km.
	EnergyPercentage EnergyVariant = "percentage"
)

// ParseEnergyVariant validates a variant name.
func ParseEnergyVariant(s string) (EnergyVariant, error) {
	switch v := EnergyVariant(s); v {
	case EnergyAbsolute, EnergyPercentage:
		return v, nil
	default:
		return "", fmt.Errorf("unknown energy variant %q", s)
	}
}

// EnergyModel parameterizes the energy-loss proxy.
type EnergyModel struct {
	Variant     EnergyVariant
	Factor      float64
	K           float64
	MJBase100km float64
}

// DefaultEnergyModel returns the absolute variant with factor 1.0. The
// percentage parameters default to k = 0.1 and 35 L/100 km of diesel at
// 35.86 MJ/L.
func DefaultEnergyModel() EnergyModel {
	return EnergyModel{
		Variant:     EnergyAbsolute,
		Factor:      1.0,
		K:           0.1,
		MJBase100km: 1255.1,
	}
}

// MetricConfig carries the tunables of ComputeMetrics.
type MetricConfig struct {
	TolerancePSI float64
	Energy       EnergyModel
}

// DefaultMetricConfig returns tolerance 3.0 psi and the default energy model.
func DefaultMetricConfig() MetricConfig {
	return MetricConfig{TolerancePSI: DefaultTolerancePSI, Energy: DefaultEnergyModel()}
}

// MetricRecord is a CanonicalRecord plus its derived deviation metrics.
// Only the energy fields of the configured variant are set.
type MetricRecord struct {
	CanonicalRecord

	DeltaPSI       *float64 `json:"delta_psi"`
	DeltaPct       *float64 `json:"delta_pct"`
	EnergiaPerdida *float64 `json:"energia_perdida,omitempty"`
	IndiceEnergia  *float64 `json:"indice_energia,omitempty"`
	MJExtra        *float64 `json:"mj_extra,omitempty"`
	Estado         Estado   `json:"estado,omitempty"`
}

// Energy returns the energy-loss proxy used for aggregation.
func (r MetricRecord) Energy() *float64 {
	if r.EnergiaPerdida != nil {
		return r.EnergiaPerdida
	}
	return r.MJExtra
}

// ComputeMetrics derives deviation, energy and classification for every record.
// Records without both pressures get nil metrics and an empty Estado.
func ComputeMetrics(records []CanonicalRecord, cfg MetricConfig) []MetricRecord {
	out := make([]MetricRecord, len(records))
	for i, rec := range records {
		out[i] = computeMetric(rec, cfg)
	}
	return out
}

func computeMetric(rec CanonicalRecord, cfg MetricConfig) MetricRecord {
	m := MetricRecord{CanonicalRecord: rec}
	if !rec.Eligible() {
		return m
	}

	delta := *rec.PresionPSI - *rec.PresionOptimaPSI
	m.DeltaPSI = &delta
	m.DeltaPct = deltaPercent(delta, *rec.PresionOptimaPSI)
	m.Estado = ClassifyDelta(delta, cfg.TolerancePSI)

	switch cfg.Energy.Variant {
	case EnergyPercentage:
		if m.DeltaPct != nil {
			idx := math.Abs(*m.DeltaPct) * cfg.Energy.K
			m.IndiceEnergia = &idx
			m.MJExtra = ptr(idx / 100 * cfg.Energy.MJBase100km)
		}
	default:
		m.EnergiaPerdida = ptr(math.Abs(delta) * cfg.Energy.Factor)
	}
	return m
}

// deltaPercent returns nil when the optimum is zero or the ratio is not finite.
func deltaPercent(delta, optimal float64) *float64 {
	if optimal == 0 {
		return nil
	}
	pct := delta / optimal * 100
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return nil
	}
	return &pct
}

// ClassifyDelta applies closed boundaries at ±tol. When both boundaries hold
// (tol <= 0 and delta == 0) the reading is SOBREINFLADO.
func ClassifyDelta(delta, tol float64) Estado {
	switch {
	case delta >= tol:
		return EstadoSobreinflado
	case delta <= -tol:
		return EstadoSubinflado
	default:
		return EstadoOK
	}
}
