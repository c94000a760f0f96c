package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/delta"
	"github.com/forest-guardian/burnsev/internal/imagery"
	"github.com/forest-guardian/burnsev/internal/index"
	"github.com/forest-guardian/burnsev/internal/log"
	"github.com/forest-guardian/burnsev/internal/mosaic"
	"github.com/forest-guardian/burnsev/internal/period"
	"github.com/forest-guardian/burnsev/internal/raster"
)

// Run processes every period of cfg on a worker pool. A failed period contributes
// nothing to the catalog and is reported in the summary; the other periods carry
// on. The per-period catalogs are merged in configuration order.
func Run(ctx context.Context, cfg Config, src imagery.Source) (*catalog.Catalog, Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Summary{}, err
	}

	var (
		results  = make([]PeriodResult, len(cfg.Periods))
		catalogs = make([]*catalog.Catalog, len(cfg.Periods))
		bar      *progressbar.ProgressBar
	)
	if cfg.ShowProgress {
		bar = progressbar.Default(int64(len(cfg.Periods)), "Processing periods")
	}

	log.Infow("starting run", "run", cfg.RunID, "sensor", cfg.Profile.ID, "formula", cfg.Formula, "periods", len(cfg.Periods))

	wp := workerpool.New(cfg.workers())
	for i, p := range cfg.Periods {
		i, p := i, p
		wp.Submit(func() {
			catalogs[i], results[i] = RunPeriod(ctx, cfg, src, p)
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	wp.StopWait()

	merged := catalog.New().Merge(catalogs...)
	summary := Summary{RunID: cfg.RunID, Periods: results}

	for _, r := range summary.Failed() {
		log.Warnw("period failed", "period", r.Period, "state", r.FailedIn, "error", r.Err)
	}
	log.Infow("run finished", "run", cfg.RunID, "tagged", summary.Tagged(), "failed", len(summary.Failed()), "rasters", merged.Len())

	if err := ctx.Err(); err != nil {
		return merged, summary, fmt.Errorf("run cancelled: %w", err)
	}
	return merged, summary, nil
}

type runner struct {
	cfg     Config
	src     imagery.Source
	period  period.Period
	started time.Time
	result  PeriodResult
}

func (r *runner) enter(s State) {
	log.Debugw("period state", "period", r.period.Name(), "from", r.result.State, "to", s)
	r.result.State = s
}

func (r *runner) fail(err error) (*catalog.Catalog, PeriodResult) {
	r.result.FailedIn = r.result.State
	r.result.Err = err
	r.result.Duration = time.Since(r.started)
	r.enter(Failed)
	return catalog.New(), r.result
}

// RunPeriod drives one period from PENDING to TAGGED or FAILED. On success the
// returned catalog holds exactly one raster per role.
func RunPeriod(ctx context.Context, cfg Config, src imagery.Source, p period.Period) (*catalog.Catalog, PeriodResult) {
	r := &runner{cfg: cfg, src: src, period: p, started: time.Now(), result: PeriodResult{Period: p.Name(), State: Pending}}

	r.enter(Fetching)
	var preScenes, postScenes []*raster.Raster
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		preScenes, err = r.fetch(gctx, p.Pre())
		return err
	})
	g.Go(func() (err error) {
		postScenes, err = r.fetch(gctx, p.Post())
		return err
	})
	if err := g.Wait(); err != nil {
		return r.fail(err)
	}
	r.result.PreScenes, r.result.PostScenes = len(preScenes), len(postScenes)

	r.enter(Masking)
	preMasked, err := mosaic.MaskScenes(preScenes, cfg.Profile)
	if err != nil {
		return r.fail(err)
	}
	postMasked, err := mosaic.MaskScenes(postScenes, cfg.Profile)
	if err != nil {
		return r.fail(err)
	}

	r.enter(Compositing)
	pre, err := mosaic.Assemble(preScenes, preMasked, cfg.AOI)
	if err != nil {
		return r.fail(err)
	}
	post, err := mosaic.Assemble(postScenes, postMasked, cfg.AOI)
	if err != nil {
		return r.fail(err)
	}
	mosaics := map[catalog.Role]*raster.Raster{
		catalog.PreFireMosaic:    pre.Raw,
		catalog.PreFireCMMosaic:  pre.Masked,
		catalog.PostFireMosaic:   post.Raw,
		catalog.PostFireCMMosaic: post.Masked,
	}

	r.enter(Indexing)
	preIndex, err := index.Compute(mosaics[catalog.PreFireCMMosaic], cfg.Profile, cfg.Formula)
	if err != nil {
		return r.fail(err)
	}
	postIndex, err := index.Compute(mosaics[catalog.PostFireCMMosaic], cfg.Profile, cfg.Formula)
	if err != nil {
		return r.fail(err)
	}

	r.enter(Differencing)
	deltaIndex, err := delta.ComputeDelta(preIndex, postIndex)
	if err != nil {
		return r.fail(err)
	}
	r.result.ValidPixels, r.result.Pixels = deltaIndex.ValidCount(), deltaIndex.Len()

	products := map[catalog.Role]*raster.Raster{
		catalog.PreIndex:   preIndex,
		catalog.PostIndex:  postIndex,
		catalog.DeltaIndex: deltaIndex,
	}
	for role, m := range mosaics {
		products[role] = m
	}

	out := catalog.New()
	for _, role := range catalog.Roles() {
		prov := Tag(cfg, p, role)
		img := products[role]
		img.ID = prov.ID()
		if err := out.Append(img, prov); err != nil {
			return r.fail(err)
		}
	}
	r.result.Rasters = out.Len()
	r.result.Duration = time.Since(r.started)
	r.enter(Tagged)
	return out, r.result
}

func (r *runner) fetch(ctx context.Context, window period.DateRange) ([]*raster.Raster, error) {
	fctx, cancel := context.WithTimeout(ctx, r.cfg.fetchTimeout())
	defer cancel()
	return mosaic.Fetch(fctx, r.src, r.cfg.Profile, window, r.cfg.AOI)
}

// Tag builds the provenance of a period product. Pre-fire products span the
// pre-fire window, post-fire products the post-fire window and the delta spans the
// fire window between them. Every product records the fire window.
func Tag(cfg Config, p period.Period, role catalog.Role) catalog.Provenance {
	fire := p.FireWindow()
	prov := catalog.Provenance{
		Period:          p.Name(),
		Role:            role,
		FirePeriodStart: fire.Start,
		FirePeriodEnd:   fire.End,
		Sensor:          string(cfg.Profile.ID),
		RunID:           cfg.RunID,
	}
	var window period.DateRange
	switch role {
	case catalog.PreFireMosaic, catalog.PreFireCMMosaic, catalog.PreIndex:
		window = p.Pre()
	case catalog.PostFireMosaic, catalog.PostFireCMMosaic, catalog.PostIndex:
		window = p.Post()
	default:
		window = fire
	}
	prov.TimeStart, prov.TimeEnd = window.Start, window.End
	if !role.Mosaic() {
		prov.Formula = string(cfg.Formula)
	}
	return prov
}
