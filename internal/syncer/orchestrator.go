package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dt-pm-tools/confluence-sync/internal/render"
	"github.com/dt-pm-tools/confluence-sync/internal/source"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// DefaultWorkers is the number of mappings synced concurrently.
const DefaultWorkers = 4

// Recorder receives results as they complete.
type Recorder interface {
	Record(Result)
	Finish(*Report)
}

// Options configures an Orchestrator.
type Options struct {
	Workers  int
	DryRun   bool
	Log      zerolog.Logger
	Recorder Recorder
}

// Orchestrator runs the fetch, convert, resolve and upsert pipeline for a
// list of mappings and collects one result per mapping.
type Orchestrator struct {
	fetcher  source.Fetcher
	engine   *Engine
	workers  int
	dryRun   bool
	log      zerolog.Logger
	recorder Recorder
}

// NewOrchestrator returns an orchestrator reading documents from fetcher
// and writing pages through wiki.
func NewOrchestrator(fetcher source.Fetcher, wiki Wiki, opts Options) *Orchestrator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		fetcher:  fetcher,
		engine:   NewEngine(wiki, opts.DryRun, opts.Log),
		workers:  workers,
		dryRun:   opts.DryRun,
		log:      opts.Log,
		recorder: opts.Recorder,
	}
}

// Run syncs every mapping. A failing mapping never affects the others.
// Once ctx is done no further mapping starts; those left are reported as
// failed, while mappings already in flight run to completion.
func (o *Orchestrator) Run(ctx context.Context, mappings []Mapping) *Report {
	return o.RunPlan(ctx, &Plan{Mappings: mappings})
}

// RunPlan syncs plan.Mappings and reports them after plan.Failed.
func (o *Orchestrator) RunPlan(ctx context.Context, plan *Plan) *Report {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
		DryRun:  o.dryRun,
	}
	log := o.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Int("documents", len(plan.Mappings)).Bool("dry_run", o.dryRun).Msg("sync started")

	results := make([]Result, len(plan.Mappings))
	g := new(errgroup.Group)
	g.SetLimit(o.workers)
	for i, m := range plan.Mappings {
		if err := ctx.Err(); err != nil {
			results[i] = o.cancelled(m, err)
			continue
		}
		i, m := i, m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = o.cancelled(m, err)
				return nil
			}
			results[i] = o.syncOne(context.WithoutCancel(ctx), log, m)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range plan.Failed {
		o.record(res)
	}
	report.Results = append(append([]Result{}, plan.Failed...), results...)
	report.Finished = time.Now().UTC()

	counts := report.Counts()
	log.Info().
		Int("created", counts[Created]).
		Int("updated", counts[Updated]).
		Int("unchanged", counts[Unchanged]).
		Int("failed", counts[Failed]).
		Dur("elapsed", report.Finished.Sub(report.Started)).
		Msg("sync finished")
	if o.recorder != nil {
		o.recorder.Finish(report)
	}
	return report
}

func (o *Orchestrator) cancelled(m Mapping, err error) Result {
	res := failedResult(m, syncerr.Wrap(syncerr.Transport, "sync document", err))
	o.record(res)
	return res
}

func (o *Orchestrator) syncOne(ctx context.Context, log zerolog.Logger, m Mapping) Result {
	start := time.Now()
	log = log.With().Str("path", m.Path).Str("title", m.Title).Logger()

	res := o.pipeline(ctx, m)
	res.Duration = time.Since(start)

	if res.Outcome == Failed {
		log.Error().Str("kind", string(res.ErrorKind)).Str("error", res.Error).Msg("sync failed")
	} else {
		log.Info().Str("outcome", string(res.Outcome)).Str("page_id", res.PageID).Int("version", res.Version).Msg("synced")
	}
	o.record(res)
	return res
}

func (o *Orchestrator) pipeline(ctx context.Context, m Mapping) Result {
	content, err := o.fetcher.Fetch(ctx, m.Repo, m.Path, m.Branch)
	if err != nil {
		return failedResult(m, err)
	}
	converted, err := render.Convert(content.Data)
	if err != nil {
		res := failedResult(m, err)
		res.Fingerprint = content.Fingerprint
		return res
	}

	outcome, page, err := o.engine.Upsert(ctx, m, Desired{Body: converted.Body, Fingerprint: content.Fingerprint})
	if err != nil {
		res := failedResult(m, err)
		res.Fingerprint = content.Fingerprint
		return res
	}
	res := Result{Mapping: m, Outcome: outcome, Fingerprint: content.Fingerprint}
	if page != nil {
		res.PageID = page.ID
		res.Version = page.Version
	}
	return res
}

func (o *Orchestrator) record(res Result) {
	if o.recorder != nil {
		o.recorder.Record(res)
	}
}
