// Package analyzer runs the grouping pipeline and the statistics engine over every
// labeled period of a capture log and commits the results to the report, the diagram
// sink and the publishers.
package analyzer

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/engine/grouping"
	"Go2NetPeriod/internal/metrics"
	"Go2NetPeriod/internal/model"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Options holds the switches of one analysis run.
type Options struct {
	Grouping         grouping.Options
	ReportVariance   bool
	ReportThroughput bool
	State            model.State
	Workers          int
}

// OptionsFromConfig converts the analysis section of the config.
func OptionsFromConfig(cfg config.AnalysisConfig) (Options, error) {
	state, err := model.ParseState(cfg.State)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Grouping: grouping.Options{
			ServerLimit:         cfg.ServerLimit,
			NegligibleThreshold: cfg.NegligibleThreshold,
			ExcludeZeroPayload:  cfg.ExcludeZeroPayload,
			ZeroPayloadMarker:   cfg.ZeroPayloadMarker,
		},
		ReportVariance:   cfg.ReportVariance,
		ReportThroughput: cfg.ReportThroughput,
		State:            state,
		Workers:          cfg.Workers,
	}, nil
}

// Result describes a finished run.
type Result struct {
	RunID      string
	Periods    int
	Groups     int
	Negligible int
}

// Analyzer orchestrates the analysis of a record store.
type Analyzer struct {
	opts       Options
	report     model.ReportWriter
	diagrams   model.DiagramSink // nil disables plotting
	publishers []model.Publisher
	metrics    *metrics.Metrics // may be nil
	now        func() time.Time
}

// New creates an Analyzer. diagrams and m may be nil.
func New(opts Options, report model.ReportWriter, diagrams model.DiagramSink, publishers []model.Publisher, m *metrics.Metrics) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Analyzer{
		opts:       opts,
		report:     report,
		diagrams:   diagrams,
		publishers: publishers,
		metrics:    m,
		now:        time.Now,
	}
}

// periodResult is everything computed for one period, ready to be committed.
type periodResult struct {
	directions []directionResult
	err        error
}

// Run analyzes every period against local. All periods are validated before any work
// starts. Periods are computed by the worker pool; only once every period succeeded are
// the diagrams rendered, then the report written in period order, then the summaries
// published. A failure in any step before publishing leaves the report and the bus
// untouched.
func (a *Analyzer) Run(ctx context.Context, store model.RecordStore, periods []model.Period, local string) (Result, error) {
	// 1. Fail fast on invalid periods.
	for _, p := range periods {
		if err := p.Validate(store.Len()); err != nil {
			return Result{}, fmt.Errorf("%w %q: %v", grouping.ErrInvalidPeriod, p.Label, err)
		}
	}

	runID := uuid.NewString()
	log.Printf("Analysis run %s started: %d periods, %d records, %d workers.", runID, len(periods), store.Len(), a.opts.Workers)

	// 2. Compute every period with the worker pool.
	results := a.computeAll(ctx, store, periods, local)
	for i, r := range results {
		if r.err != nil {
			return Result{}, fmt.Errorf("failed to analyze period %q: %w", periods[i].Label, r.err)
		}
	}

	// 3. Render every diagram before the report or the bus sees anything.
	if a.diagrams != nil {
		for _, r := range results {
			for _, d := range r.directions {
				for _, s := range d.series {
					if err := a.diagrams.Plot(s); err != nil {
						return Result{}, fmt.Errorf("failed to render diagram %q: %w", s.Title, err)
					}
				}
			}
		}
	}

	// 4. Write the report in period order.
	res := Result{RunID: runID, Periods: len(periods)}
	for _, r := range results {
		for _, d := range r.directions {
			if err := a.report.WriteBlock(d.block); err != nil {
				return Result{}, err
			}
			a.metrics.Reported(d.dir, len(d.summaries))
			a.metrics.Negligible(d.dir, d.negligible)
			a.metrics.Misses(d.misses)
			res.Groups += len(d.summaries)
			res.Negligible += d.negligible
		}
		a.metrics.Period()
	}

	// 5. Publish once the whole report is written.
	for _, r := range results {
		for _, d := range r.directions {
			a.publish(ctx, runID, d.summaries)
		}
	}

	log.Printf("Analysis run %s finished: %d groups reported, %d negligible.", runID, res.Groups, res.Negligible)
	return res, nil
}

func (a *Analyzer) computeAll(ctx context.Context, store model.RecordStore, periods []model.Period, local string) []periodResult {
	results := make([]periodResult, len(periods))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(a.opts.Workers)
	for i := 0; i < a.opts.Workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = a.computePeriod(ctx, store, periods[idx], local)
			}
		}()
	}

	for i := range periods {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (a *Analyzer) computePeriod(ctx context.Context, store model.RecordStore, p model.Period, local string) periodResult {
	var r periodResult
	for _, dir := range model.Directions {
		if err := ctx.Err(); err != nil {
			return periodResult{err: err}
		}
		d, err := a.analyzeDirection(store, p, dir, local)
		if err != nil {
			return periodResult{err: err}
		}
		r.directions = append(r.directions, d)
	}
	return r
}

// publish hands summaries to every publisher. Failures are logged; the report is the
// primary output.
func (a *Analyzer) publish(ctx context.Context, runID string, summaries []model.GroupSummary) {
	for _, s := range summaries {
		s.RunID = runID
		for _, p := range a.publishers {
			if err := p.Publish(ctx, s); err != nil {
				log.Warnf("Failed to publish summary for %s (%s): %v", s.Peer, s.Direction, err)
			}
		}
	}
}
