package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Lllllllleong/listingflow/internal/config"
	"github.com/Lllllllleong/listingflow/internal/gcp"
	"github.com/Lllllllleong/listingflow/internal/kv"
	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

// LoaderName labels the table-loading function in logs and metrics.
const LoaderName = "listing-loader"

// BatchNotifier is told about every batch that loaded without failures.
type BatchNotifier interface {
	BatchLoaded(ctx context.Context, table string, batch []models.Descriptor) error
}

// LoaderDeps are the stores the loader talks to.
type LoaderDeps struct {
	Objects  pipeline.ObjectReader
	Table    pipeline.TableWriter
	Notifier BatchNotifier // optional
	Metrics  MetricsPusher // optional
	Logger   *slog.Logger
	// Closers are released by Close, in order.
	Closers []io.Closer
}

// LoaderFunction fetches listing documents, transforms them and upserts the
// result into the destination table.
type LoaderFunction struct {
	coordinator *pipeline.Coordinator
	notifier    BatchNotifier
	metrics     MetricsPusher
	table       string
	closers     []io.Closer
	logger      *slog.Logger
}

// NewLoader builds the loader with clients for the configured backends.
func NewLoader(ctx context.Context, cfg *config.Config) (*LoaderFunction, error) {
	if err := cfg.ValidateLoader(); err != nil {
		return nil, err
	}

	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	deps := LoaderDeps{
		Objects: gcp.NewObjectStore(storageClient, false),
		Metrics: newMetricsPusher(cfg, LoaderName),
		Closers: []io.Closer{storageClient},
	}

	switch cfg.TableBackend {
	case config.BackendRedis:
		table, err := kv.NewRedisTable(ctx, cfg.RedisURL)
		if err != nil {
			closeAll(deps.Closers)
			return nil, err
		}
		deps.Table = table
		deps.Closers = append(deps.Closers, table)
	default:
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			closeAll(deps.Closers)
			return nil, err
		}
		deps.Table = gcp.NewTableStore(firestoreClient)
		deps.Closers = append(deps.Closers, firestoreClient)
	}

	if cfg.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			closeAll(deps.Closers)
			return nil, err
		}
		deps.Notifier = trigger
		deps.Closers = append(deps.Closers, trigger)
	}

	f, err := NewLoaderWith(cfg, deps)
	if err != nil {
		closeAll(deps.Closers)
		return nil, err
	}
	f.logger.Info("Listing loader initialized.", "table", cfg.DestinationTable, "backend", cfg.TableBackend, "strategy", cfg.TransformStrategy, "workflow", cfg.WorkflowID)
	return f, nil
}

// NewLoaderWith builds the loader over already constructed stores.
func NewLoaderWith(cfg *config.Config, deps LoaderDeps) (*LoaderFunction, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("function", LoaderName)

	transformer, err := pipeline.NewTransformer(cfg.TransformStrategy, cfg.PartitionLabel)
	if err != nil {
		return nil, err
	}
	processor, err := pipeline.NewProcessor(pipeline.Config{
		Name:        LoaderName,
		Fetcher:     pipeline.NewObjectFetcher(deps.Objects),
		Validator:   pipeline.Validator{Field: transformer.Field()},
		Transformer: transformer,
		Persister:   pipeline.NewTablePersister(deps.Table, cfg.DestinationTable),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build loader pipeline: %w", err)
	}

	return &LoaderFunction{
		coordinator: pipeline.NewCoordinator(processor, pipeline.CoordinatorOptions{
			Name:           LoaderName,
			MaxConcurrency: cfg.MaxConcurrency,
			FailFast:       cfg.FailFast,
			Logger:         logger,
		}),
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		table:    cfg.DestinationTable,
		closers:  deps.Closers,
		logger:   logger,
	}, nil
}

// Process handles one notification batch. The notifier only hears about
// batches in which every record was written. Metrics are pushed either way.
func (f *LoaderFunction) Process(ctx context.Context, batch []models.Descriptor) error {
	err := f.coordinator.HandleBatch(ctx, batch)
	pushMetrics(ctx, f.metrics, f.logger)
	if err != nil {
		return err
	}
	if f.notifier == nil {
		return nil
	}
	if err := f.notifier.BatchLoaded(ctx, f.table, batch); err != nil {
		f.logger.Error("Failed to notify downstream of loaded batch.", "error", err)
		return err
	}
	return nil
}

// Close releases the store clients.
func (f *LoaderFunction) Close() error {
	return closeAll(f.closers)
}

func closeAll(closers []io.Closer) error {
	var first error
	for _, c := range closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
