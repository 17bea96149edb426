// Package domain models tire-pressure inspection records exported by fleet
// maintenance systems and the deviation analytics computed from them.
//
// # Data Sources
//
// Inspection exports arrive as CSV or XLSX files from at least two tire
// management systems with different column conventions:
//
//	Nazar: PPU, Tipo de Eje, Posición, Fecha Inspección, Valor Presión, Presión Correcta
//	TCCU:  Vehículo, Flota, eje, PRESION CONTROLADA NEU, PRESION OPTIMA NEU
//
// Columns are matched to a closed set of canonical fields through an ordered
// alias table (see [DefaultAliasTable]). Matching ignores case, accents and
// repeated separators, so "Presión  Correcta" and "presion_correcta" resolve
// to the same key. For each field the first alias present in the header wins.
//
// # Canonical Fields
//
//	patente             vehicle plate, trimmed and upper-cased
//	ruta                route or origin-destination label
//	sede                site / terminal / fleet label
//	operacion           operation label; falls back to sede when a file has none
//	eje_tipo            axle class, lower-cased: direccional, traccion, arrastre
//	posicion            wheel position label
//	fecha               inspection date
//	presion_psi         measured pressure (psi)
//	presion_optima_psi  optimal pressure for the position (psi)
//
// Missing values are nil pointers. A value that is present but cannot be
// parsed becomes nil and the field is listed in [CanonicalRecord.Unparsable].
//
// # Deviation Metrics
//
//	delta_psi = presion_psi - presion_optima_psi
//	delta_pct = delta_psi / presion_optima_psi * 100   (nil when the optimum is 0)
//
// Classification uses closed boundaries at the tolerance (default 3.0 psi):
//
//	delta <= -tol  SUBINFLADO
//	delta >= +tol  SOBREINFLADO
//	otherwise      OK
//
// The energy proxy is pluggable, see [EnergyModel]. Both variants are monotone
// in |delta| and are used only for ranking, not as physical estimates.
//
// # Aggregation
//
// [Summarize] groups eligible records (both pressures present) by any tuple of
// canonical fields. Missing dimension values form their own group. Groups are
// ordered by mean absolute deviation, then record count, both descending.
package domain
