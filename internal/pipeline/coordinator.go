package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Lllllllleong/listingflow/internal/metrics"
	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordProcessor handles a single descriptor.
type RecordProcessor interface {
	Process(ctx context.Context, src models.Descriptor) error
}

// CoordinatorOptions tune batch fan-out.
type CoordinatorOptions struct {
	// Name labels logs and metrics.
	Name string
	// MaxConcurrency caps in-flight records; 0 means no cap.
	MaxConcurrency int
	// FailFast cancels the context of sibling records after the first failure.
	// When false every record runs to completion.
	FailFast bool
	Logger   *slog.Logger
}

// Coordinator fans a batch out to a RecordProcessor and joins the outcomes.
type Coordinator struct {
	processor RecordProcessor
	opts      CoordinatorOptions
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(p RecordProcessor, opts CoordinatorOptions) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{processor: p, opts: opts}
}

// HandleBatch processes every descriptor concurrently and waits for all of
// them to settle. It returns nil only if every record succeeded; otherwise the
// first failure observed is returned and the rest are only logged.
func (c *Coordinator) HandleBatch(ctx context.Context, descriptors []models.Descriptor) error {
	if len(descriptors) == 0 {
		return ErrEmptyBatch
	}

	logCtx := c.opts.Logger.With("batchId", uuid.NewString(), "recordCount", len(descriptors))
	logCtx.Info("Processing batch.")
	start := time.Now()

	g, gctx := new(errgroup.Group), ctx
	if c.opts.FailFast {
		g, gctx = errgroup.WithContext(ctx)
	}
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}

	var failed atomic.Int64
	for i, src := range descriptors {
		g.Go(func() error {
			if err := c.processor.Process(gctx, src); err != nil {
				failed.Add(1)
				logCtx.Error("Record failed.", "index", i, "container", src.Container, "key", src.Key, "outcome", Outcome(err), "error", err)
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	metrics.BatchDuration.WithLabelValues(c.opts.Name).Observe(time.Since(start).Seconds())
	metrics.BatchSize.WithLabelValues(c.opts.Name).Observe(float64(len(descriptors)))
	if err != nil {
		metrics.BatchesTotal.WithLabelValues(c.opts.Name, "failure").Inc()
		logCtx.Error("Batch failed.", "failedCount", failed.Load(), "error", err)
		return err
	}
	metrics.BatchesTotal.WithLabelValues(c.opts.Name, "success").Inc()
	logCtx.Debug("Complete!")
	return nil
}
