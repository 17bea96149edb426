package pipeline

import (
	"slices"
	"time"

	"github.com/gasparespejo/EFILabs/internal/domain"
)

// Outcome classifies a run by how many of its files were accepted.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// FileReport describes an accepted file.
type FileReport struct {
	File     string
	Rows     int
	Eligible int
	// Columns maps each resolved canonical field to the raw header it came from.
	Columns map[domain.Field]string
}

// Rejection records a file left out of the run. Reason wraps one of
// domain.ErrMalformedFile, domain.ErrUnmappableSchema or domain.ErrNoUsableRows.
type Rejection struct {
	File   string
	Reason error
}

// Summary is the aggregation of one grouping.
type Summary struct {
	Name    string
	GroupBy []domain.Field
	Groups  []domain.GroupSummary
}

// Ranking is an energy ranking over one dimension.
type Ranking struct {
	Name    string
	GroupBy []domain.Field
	Ranks   []domain.EnergyRank
}

// Result is everything a run produced.
type Result struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	TolerancePSI float64
	Energy       domain.EnergyVariant

	Accepted []FileReport
	Rejected []Rejection

	// Detail holds every row of every accepted file in input order,
	// including rows that could not be classified.
	Detail    []domain.MetricRecord
	Summaries []Summary
	Rankings  []Ranking
}

// Outcome reports success when every file was accepted, partial when some
// were, and failed when none were.
func (r *Result) Outcome() Outcome {
	switch {
	case len(r.Accepted) == 0:
		return OutcomeFailed
	case len(r.Rejected) > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// Tables renders the detail view, every summary and every ranking, in that order.
func (r *Result) Tables() []domain.Table {
	out := make([]domain.Table, 0, 1+len(r.Summaries)+len(r.Rankings))
	out = append(out, domain.DetailTable(r.Detail, r.Energy))
	for _, s := range r.Summaries {
		out = append(out, domain.SummaryTable(s.Name, s.GroupBy, s.Groups))
	}
	for _, rk := range r.Rankings {
		out = append(out, domain.RankingTable(rk.Name, rk.GroupBy, rk.Ranks))
	}
	return out
}

// Eligible returns the detail records that carry both pressures.
func (r *Result) Eligible() []domain.MetricRecord {
	out := make([]domain.MetricRecord, 0, len(r.Detail))
	for _, m := range r.Detail {
		if m.Eligible() {
			out = append(out, m)
		}
	}
	return out
}

func (r *Result) summaryFor(groupBy []domain.Field) ([]domain.GroupSummary, bool) {
	for _, s := range r.Summaries {
		if slices.Equal(s.GroupBy, groupBy) {
			return s.Groups, true
		}
	}
	return nil, false
}

// RunStatus is the JSON summary of a finished run served on /runs/latest.
type RunStatus struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Outcome    Outcome        `json:"outcome"`
	Accepted   []string       `json:"accepted"`
	Rejected   []FileError    `json:"rejected"`
	Records    int            `json:"records"`
	Estados    map[string]int `json:"estados"`
}

// FileError is a rejected file and the reason it was left out.
type FileError struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Status summarizes the run for reporting.
func (r *Result) Status() RunStatus {
	s := RunStatus{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Outcome:    r.Outcome(),
		Accepted:   make([]string, 0, len(r.Accepted)),
		Rejected:   make([]FileError, 0, len(r.Rejected)),
		Records:    len(r.Detail),
		Estados:    make(map[string]int),
	}
	for _, a := range r.Accepted {
		s.Accepted = append(s.Accepted, a.File)
	}
	for _, rej := range r.Rejected {
		s.Rejected = append(s.Rejected, FileError{File: rej.File, Reason: rej.Reason.Error()})
	}
	for _, m := range r.Detail {
		if m.Estado != "" {
			s.Estados[string(m.Estado)]++
		}
	}
	return s
}
