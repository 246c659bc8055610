// Package scraper runs product searches in sequential batches, each batch
// fanning out one pipeline per product and fanning back in input order.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pricescout/pricescout/services/browser"
	"pricescout/pricescout/services/enricher"
	"pricescout/pricescout/services/extractor"
	"pricescout/pricescout/services/filter"
	"pricescout/pricescout/utils/logging"
	"pricescout/pricescout/utils/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	ChunkSize   int
	StepTimeout time.Duration
	Filter      filter.Options
}

// BatchFunc observes a batch once all of its pipelines have finished.
// results are in batch order and must not be retained past the call.
type BatchFunc func(b types.Batch, results []types.ProductResult)

// Orchestrator owns the batch loop. It is safe for concurrent Runs; each run
// leases its own sessions.
type Orchestrator struct {
	manager  *browser.Manager
	strategy extractor.Strategy
	opts     Options
}

func NewOrchestrator(manager *browser.Manager, strategy extractor.Strategy, opts Options) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 30 * time.Second
	}
	if opts.Filter == (filter.Options{}) {
		opts.Filter = filter.DefaultOptions()
	}
	return &Orchestrator{manager: manager, strategy: strategy, opts: opts}
}

func (o *Orchestrator) ChunkSize() int {
	return o.opts.ChunkSize
}

// ActiveSessions is the number of browser sessions currently leased.
func (o *Orchestrator) ActiveSessions() int64 {
	return o.manager.Active()
}

// Run scrapes names batch by batch and returns one result per name in input
// order. Per-product failures, connection failures included, are carried in
// the results. The run stops with an error only when ctx is done or every
// pipeline of a batch found the browser backend unreachable
// (types.ErrTransport); the results gathered so far are returned alongside.
func (o *Orchestrator) Run(ctx context.Context, names []string, onBatch BatchFunc) ([]types.ProductResult, error) {
	defer logging.LogDuration(ctx, "Orchestrator.Run")()

	batches := Partition(names, o.opts.ChunkSize)
	out := make([]types.ProductResult, 0, len(names))
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		results, err := o.runBatch(ctx, b)
		if err != nil {
			return out, err
		}
		out = append(out, results...)
		if onBatch != nil {
			onBatch(b, results)
		}
	}
	return out, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, b types.Batch) ([]types.ProductResult, error) {
	defer logging.LogDuration(ctx, fmt.Sprintf("batch-%d", b.Index))()

	results := make([]types.ProductResult, len(b.Queries))
	// Plain Group: a failed product must never cancel its siblings.
	var g errgroup.Group
	for i, q := range b.Queries {
		i, q := i, q
		g.Go(func() error {
			results[i] = o.runProduct(ctx, q)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if backendUnreachable(results) {
		return nil, fmt.Errorf("%w: batch %d: %v", types.ErrTransport, b.Index, results[0].Err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logging.AppLogger.Info("batch complete",
		zap.String("run_id", logging.RunID(ctx)),
		zap.Int("batch", b.Index),
		zap.Int("products", len(results)),
		zap.Int("failed", failed),
	)
	return results, nil
}

// backendUnreachable reports whether every result failed with a transport
// error. A connect that was refused or throttled for only some products is a
// per-product failure.
func backendUnreachable(results []types.ProductResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !errors.Is(r.Err, types.ErrTransport) {
			return false
		}
	}
	return true
}

// runProduct is one product pipeline: lease, extract, filter, enrich, release.
func (o *Orchestrator) runProduct(ctx context.Context, q types.ProductQuery) (res types.ProductResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorLogger.Error("product pipeline panicked",
				zap.String("run_id", logging.RunID(ctx)),
				zap.String("product", q.Name),
				zap.Any("panic", r),
			)
			res = types.Failed(q.Name, fmt.Errorf("pipeline panic: %v", r))
		}
	}()

	var candidates []types.Listing
	err := o.manager.WithSession(ctx, func(sess browser.Session) error {
		listings, err := extractor.Fetch(ctx, sess, o.strategy, q, o.opts.StepTimeout)
		if err != nil {
			return err
		}
		selected := filter.Apply(listings, o.opts.Filter)
		enriched, errs := enricher.Enrich(ctx, sess, o.strategy, selected, o.opts.StepTimeout)
		if n := enricher.Failures(errs); n > 0 {
			logging.AppLogger.Info("candidates left without image",
				zap.String("product", q.Name),
				zap.Int("count", n),
			)
		}
		candidates = enriched
		return nil
	})
	if err != nil {
		logging.ErrorLogger.Warn("product pipeline failed",
			zap.String("run_id", logging.RunID(ctx)),
			zap.String("product", q.Name),
			zap.Error(err),
		)
		return types.Failed(q.Name, err)
	}
	return types.ProductResult{ProductName: q.Name, Candidates: candidates}
}
