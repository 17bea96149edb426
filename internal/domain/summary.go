package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// GroupSummary holds the aggregate statistics of one group.
type GroupSummary struct {
	GroupBy []Field
	// Keys holds one value per GroupBy field; nil marks a missing value.
	Keys []*string

	NRegistros   int
	DeltaProm    *float64
	DeltaAbsProm *float64
	EnergiaTotal float64
	PctSub       float64
	PctSobre     float64
}

// Key returns the group value for f, or nil when f is missing or not grouped on.
func (g GroupSummary) Key(f Field) *string {
	for i, gf := range g.GroupBy {
		if gf == f {
			return g.Keys[i]
		}
	}
	return nil
}

type groupAcc struct {
	keys     []*string
	size     int
	count    int
	nDelta   int
	sumDelta float64
	sumAbs   float64
	energy   float64
	nSub     int
	nSobre   int
}

// Summarize aggregates eligible records by the given fields. Records lacking
// a pressure are skipped. The result is sorted by mean absolute deviation
// descending, then record count descending, then group key ascending with
// missing values last.
func Summarize(records []MetricRecord, groupBy ...Field) ([]GroupSummary, error) {
	if err := validateGroupBy(groupBy); err != nil {
		return nil, err
	}

	groups := make(map[string]*groupAcc)
	var order []*groupAcc
	for _, rec := range records {
		if !rec.Eligible() {
			continue
		}
		keys := make([]*string, len(groupBy))
		for i, f := range groupBy {
			if v, ok := rec.Value(f); ok {
				keys[i] = ptr(v)
			}
		}
		id := groupID(keys)
		acc, ok := groups[id]
		if !ok {
			acc = &groupAcc{keys: keys}
			groups[id] = acc
			order = append(order, acc)
		}
		acc.add(rec)
	}

	out := make([]GroupSummary, 0, len(order))
	for _, acc := range order {
		out = append(out, acc.summary(groupBy))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessSummary(out[i], out[j])
	})
	return out, nil
}

func (a *groupAcc) add(rec MetricRecord) {
	a.size++
	if rec.PresionPSI != nil {
		a.count++
	}
	if rec.DeltaPSI != nil {
		a.nDelta++
		a.sumDelta += *rec.DeltaPSI
		a.sumAbs += math.Abs(*rec.DeltaPSI)
	}
	if e := rec.Energy(); e != nil {
		a.energy += *e
	}
	switch rec.Estado {
	case EstadoSubinflado:
		a.nSub++
	case EstadoSobreinflado:
		a.nSobre++
	}
}

func (a *groupAcc) summary(groupBy []Field) GroupSummary {
	s := GroupSummary{
		GroupBy:      append([]Field(nil), groupBy...),
		Keys:         a.keys,
		NRegistros:   a.count,
		EnergiaTotal: a.energy,
	}
	if a.nDelta > 0 {
		s.DeltaProm = ptr(a.sumDelta / float64(a.nDelta))
		s.DeltaAbsProm = ptr(a.sumAbs / float64(a.nDelta))
	}
	if a.size > 0 {
		s.PctSub = float64(a.nSub) / float64(a.size) * 100
		s.PctSobre = float64(a.nSobre) / float64(a.size) * 100
	}
	return s
}

func validateGroupBy(groupBy []Field) error {
	if len(groupBy) == 0 {
		return fmt.Errorf("%w: no fields", ErrInvalidGroupBy)
	}
	seen := make(map[Field]bool, len(groupBy))
	for _, f := range groupBy {
		if _, err := ParseField(string(f)); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidGroupBy, err)
		}
		if seen[f] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidGroupBy, f)
		}
		seen[f] = true
	}
	return nil
}

// groupID builds a map key that distinguishes a missing value from "".
func groupID(keys []*string) string {
	var b strings.Builder
	for _, k := range keys {
		if k == nil {
			b.WriteString("\x01")
		} else {
			b.WriteString("\x02")
			b.WriteString(*k)
		}
		b.WriteString("\x00")
	}
	return b.String()
}

func lessSummary(a, b GroupSummary) bool {
	switch {
	case a.DeltaAbsProm == nil && b.DeltaAbsProm != nil:
		return false
	case a.DeltaAbsProm != nil && b.DeltaAbsProm == nil:
		return true
	case a.DeltaAbsProm != nil && *a.DeltaAbsProm != *b.DeltaAbsProm:
		return *a.DeltaAbsProm > *b.DeltaAbsProm
	}
	if a.NRegistros != b.NRegistros {
		return a.NRegistros > b.NRegistros
	}
	return compareKeys(a.Keys, b.Keys) < 0
}

// compareKeys orders key tuples lexicographically with nil after any value.
func compareKeys(a, b []*string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] == nil && b[i] == nil:
			continue
		case a[i] == nil:
			return 1
		case b[i] == nil:
			return -1
		}
		if c := strings.Compare(*a[i], *b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// EnergyRank is one row of an energy ranking.
type EnergyRank struct {
	GroupBy      []Field
	Keys         []*string
	NRegistros   int
	EnergiaTotal float64
	EnergiaProm  float64
}

// RankByEnergy orders groups by mean energy per record, descending. Groups
// with no records are excluded, as are groups with a missing key when
// dropMissing is set. topN <= 0 keeps every group.
func RankByEnergy(summaries []GroupSummary, topN int, dropMissing bool) []EnergyRank {
	out := make([]EnergyRank, 0, len(summaries))
	for _, s := range summaries {
		if s.NRegistros == 0 {
			continue
		}
		if dropMissing && hasMissingKey(s.Keys) {
			continue
		}
		out = append(out, EnergyRank{
			GroupBy:      s.GroupBy,
			Keys:         s.Keys,
			NRegistros:   s.NRegistros,
			EnergiaTotal: s.EnergiaTotal,
			EnergiaProm:  s.EnergiaTotal / float64(s.NRegistros),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EnergiaProm != out[j].EnergiaProm {
			return out[i].EnergiaProm > out[j].EnergiaProm
		}
		return compareKeys(out[i].Keys, out[j].Keys) < 0
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func hasMissingKey(keys []*string) bool {
	for _, k := range keys {
		if k == nil {
			return true
		}
	}
	return false
}
