package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/gasparespejo/EFILabs/internal/domain"
	"github.com/gasparespejo/EFILabs/internal/observability"
	"github.com/gasparespejo/EFILabs/internal/recommend"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Source lists and reads input files.
type Source interface {
	Fetch(ctx context.Context) ([]domain.SourceFile, error)
}

// Parser turns one input file into a raw table. Failures should wrap
// domain.ErrMalformedFile.
type Parser interface {
	Parse(f domain.SourceFile) (domain.RawTable, error)
}

// Loader delivers a finished analysis to a destination.
type Loader interface {
	Name() string
	Load(ctx context.Context, res *Result) error
}

// rankingFields are the dimensions that get an energy ranking. Rankings by
// patente keep the missing-plate group; the others drop missing keys.
var rankingFields = []domain.Field{
	domain.FieldPatente,
	domain.FieldOperacion,
	domain.FieldRuta,
	domain.FieldSede,
}

// Options configures an analysis.
type Options struct {
	Aliases     domain.AliasTable
	Metric      domain.MetricConfig
	Groupings   [][]domain.Field
	RankingTopN int
	Workers     int

	// ReferenceOptimal fills a missing optimal pressure from the axle
	// reference pressure of the record's eje_tipo.
	ReferenceOptimal bool

	Clock clockwork.Clock
}

// DefaultOptions returns the built-in alias table, tolerance 3.0 psi, the
// absolute energy model and the five standard groupings.
func DefaultOptions() Options {
	return Options{
		Aliases: domain.DefaultAliasTable(),
		Metric:  domain.DefaultMetricConfig(),
		Groupings: [][]domain.Field{
			{domain.FieldPatente},
			{domain.FieldOperacion},
			{domain.FieldPatente, domain.FieldOperacion},
			{domain.FieldRuta},
			{domain.FieldSede},
		},
		RankingTopN: 10,
		Workers:     1,
		Clock:       clockwork.NewRealClock(),
	}
}

// Pipeline orchestrates normalization, metric calculation, aggregation and
// delivery for a batch of files.
type Pipeline struct {
	parser  Parser
	loaders []Loader
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[RunStatus]
}

// New creates a Pipeline. Zero-valued options fall back to DefaultOptions.
func New(parser Parser, loaders []Loader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	def := DefaultOptions()
	if opts.Aliases == nil {
		opts.Aliases = def.Aliases
	}
	if tol := opts.Metric.TolerancePSI; !(tol > 0) || math.IsInf(tol, 0) {
		opts.Metric.TolerancePSI = def.Metric.TolerancePSI
	}
	if opts.Metric.Energy.Variant == "" {
		opts.Metric.Energy = def.Metric.Energy
	}
	if len(opts.Groupings) == 0 {
		opts.Groupings = def.Groupings
	}
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Pipeline{
		parser:  parser,
		loaders: loaders,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed a run, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the status of the most recent run, if any.
func (p *Pipeline) LastRun() (RunStatus, bool) {
	s := p.last.Load()
	if s == nil {
		return RunStatus{}, false
	}
	return *s, true
}

// FetchAll reads the files of every source, in source order.
func FetchAll(ctx context.Context, sources ...Source) ([]domain.SourceFile, error) {
	var files []domain.SourceFile
	for _, s := range sources {
		got, err := s.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		files = append(files, got...)
	}
	return files, nil
}

// Run analyzes files and hands the result to every loader. Loader failures
// do not stop the remaining loaders; all of them are joined into the
// returned error. When no file is accepted the loaders are skipped and the
// error wraps domain.ErrEmptyResult.
func (p *Pipeline) Run(ctx context.Context, files []domain.SourceFile) (*Result, error) {
	start := p.opts.Clock.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res, err := p.Analyze(ctx, files)
	if res == nil {
		p.metrics.RunsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		p.metrics.LastRunSuccess.Set(0)
		return nil, err
	}

	var loadErr error
	if len(res.Accepted) > 0 {
		loadErr = p.load(ctx, res)
	}

	outcome := res.Outcome()
	p.metrics.RunsTotal.WithLabelValues(string(outcome)).Inc()
	p.metrics.RunDuration.Observe(p.opts.Clock.Since(start).Seconds())
	if outcome == OutcomeFailed {
		p.metrics.LastRunSuccess.Set(0)
	} else {
		p.metrics.LastRunSuccess.Set(1)
	}
	status := res.Status()
	p.last.Store(&status)
	p.ready.Store(true)

	p.logger.Info("run finished",
		"run_id", res.RunID,
		"outcome", outcome,
		"accepted", len(res.Accepted),
		"rejected", len(res.Rejected),
		"records", len(res.Detail),
		"duration", p.opts.Clock.Since(start),
	)
	return res, errors.Join(err, loadErr)
}

func (p *Pipeline) load(ctx context.Context, res *Result) error {
	var errs []error
	for _, l := range p.loaders {
		start := p.opts.Clock.Now()
		err := l.Load(ctx, res)
		p.metrics.SinkDuration.WithLabelValues(l.Name()).Observe(p.opts.Clock.Since(start).Seconds())
		if err != nil {
			p.metrics.SinkErrors.WithLabelValues(l.Name()).Inc()
			p.logger.Error("sink failed", "sink", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", l.Name(), err))
			continue
		}
		p.logger.Info("sink delivered", "sink", l.Name(), "run_id", res.RunID)
	}
	return errors.Join(errs...)
}

// Analyze normalizes every file, computes metrics on the combined records
// and aggregates them. A rejected file never aborts the run. The returned
// Result is non-nil unless ctx is canceled or a grouping is invalid; with
// zero accepted files it is returned together with domain.ErrEmptyResult.
func (p *Pipeline) Analyze(ctx context.Context, files []domain.SourceFile) (*Result, error) {
	res := &Result{
		RunID:        uuid.NewString(),
		StartedAt:    p.opts.Clock.Now(),
		TolerancePSI: p.opts.Metric.TolerancePSI,
		Energy:       p.opts.Metric.Energy.Variant,
	}

	outcomes := make([]fileOutcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.processFile(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []domain.CanonicalRecord
	for _, o := range outcomes {
		if o.rejection != nil {
			p.metrics.FilesProcessed.WithLabelValues(rejectionLabel(o.rejection.Reason)).Inc()
			p.logger.Warn("file rejected", "file", o.rejection.File, "error", o.rejection.Reason)
			res.Rejected = append(res.Rejected, *o.rejection)
			continue
		}
		p.metrics.FilesProcessed.WithLabelValues("accepted").Inc()
		p.logger.Debug("file accepted", "file", o.report.File, "rows", o.report.Rows, "eligible", o.report.Eligible)
		res.Accepted = append(res.Accepted, o.report)
		records = append(records, o.records...)
	}

	res.Detail = domain.ComputeMetrics(records, p.opts.Metric)
	p.recordRowMetrics(res.Detail)

	for _, groupBy := range p.opts.Groupings {
		groups, err := domain.Summarize(res.Detail, groupBy...)
		if err != nil {
			return nil, err
		}
		res.Summaries = append(res.Summaries, Summary{
			Name:    domain.SummaryName(groupBy),
			GroupBy: groupBy,
			Groups:  groups,
		})
	}
	res.Rankings = p.rank(res)

	res.FinishedAt = p.opts.Clock.Now()
	if len(res.Accepted) == 0 {
		return res, fmt.Errorf("%w (%d files rejected)", domain.ErrEmptyResult, len(res.Rejected))
	}
	return res, nil
}

type fileOutcome struct {
	report    FileReport
	records   []domain.CanonicalRecord
	rejection *Rejection
}

func (p *Pipeline) processFile(f domain.SourceFile) fileOutcome {
	reject := func(err error) fileOutcome {
		return fileOutcome{rejection: &Rejection{File: f.Name, Reason: err}}
	}

	if f.ReadErr != nil {
		return reject(fmt.Errorf("%w: %w", domain.ErrMalformedFile, f.ReadErr))
	}

	tbl, err := p.parser.Parse(f)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedFile) {
			err = fmt.Errorf("%w: %w", domain.ErrMalformedFile, err)
		}
		return reject(err)
	}

	cm := domain.ResolveColumns(tbl.Header, p.opts.Aliases)
	if missing := cm.Missing(p.requiredFields(cm)); len(missing) > 0 {
		return reject(fmt.Errorf("%w: no column for %v", domain.ErrUnmappableSchema, missing))
	}

	records := domain.NormalizeTable(tbl, cm)
	if p.opts.ReferenceOptimal {
		fillReferenceOptimal(records)
	}

	eligible := 0
	for _, r := range records {
		if r.Eligible() {
			eligible++
		}
	}
	if eligible == 0 {
		return reject(fmt.Errorf("%w: %d rows read", domain.ErrNoUsableRows, len(records)))
	}

	return fileOutcome{
		report: FileReport{
			File:     f.Name,
			Rows:     len(records),
			Eligible: eligible,
			Columns:  columnNames(tbl.Header, cm),
		},
		records: records,
	}
}

// requiredFields relaxes presion_optima_psi when it can be estimated from
// the axle type column.
func (p *Pipeline) requiredFields(cm domain.ColumnMap) []domain.Field {
	if !p.opts.ReferenceOptimal {
		return domain.RequiredFields
	}
	if _, ok := cm[domain.FieldEjeTipo]; !ok {
		return domain.RequiredFields
	}
	out := make([]domain.Field, 0, len(domain.RequiredFields))
	for _, f := range domain.RequiredFields {
		if f != domain.FieldPresionOptimaPSI {
			out = append(out, f)
		}
	}
	return out
}

func fillReferenceOptimal(records []domain.CanonicalRecord) {
	for i := range records {
		r := &records[i]
		if r.PresionOptimaPSI != nil || r.EjeTipo == nil {
			continue
		}
		if ref, ok := recommend.ReferenceForEjeTipo(*r.EjeTipo); ok {
			r.PresionOptimaPSI = &ref
			r.OptimaEstimada = true
		}
	}
}

func (p *Pipeline) rank(res *Result) []Ranking {
	if p.opts.RankingTopN <= 0 {
		return nil
	}
	var out []Ranking
	for _, f := range rankingFields {
		groupBy := []domain.Field{f}
		groups, ok := res.summaryFor(groupBy)
		if !ok {
			// Groupings are validated above; a single canonical field cannot fail.
			groups, _ = domain.Summarize(res.Detail, groupBy...)
		}
		out = append(out, Ranking{
			Name:    domain.RankingName(groupBy),
			GroupBy: groupBy,
			Ranks:   domain.RankByEnergy(groups, p.opts.RankingTopN, f != domain.FieldPatente),
		})
	}
	return out
}

func (p *Pipeline) recordRowMetrics(detail []domain.MetricRecord) {
	p.metrics.RowsRead.Add(float64(len(detail)))
	for _, r := range detail {
		for _, f := range r.Unparsable {
			p.metrics.UnparsableValues.WithLabelValues(string(f)).Inc()
		}
		if !r.Eligible() {
			p.metrics.RowsExcluded.Inc()
			continue
		}
		p.metrics.Readings.WithLabelValues(string(r.Estado)).Inc()
	}
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnmappableSchema):
		return "unmappable"
	case errors.Is(err, domain.ErrNoUsableRows):
		return "no_rows"
	default:
		return "malformed"
	}
}

func columnNames(header []string, cm domain.ColumnMap) map[domain.Field]string {
	out := make(map[domain.Field]string, len(cm))
	for f, i := range cm {
		out[f] = header[i]
	}
	return out
}
