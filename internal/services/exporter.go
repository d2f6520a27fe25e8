package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Lllllllleong/listingflow/internal/config"
	"github.com/Lllllllleong/listingflow/internal/external"
	"github.com/Lllllllleong/listingflow/internal/gcp"
	"github.com/Lllllllleong/listingflow/internal/messaging"
	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

// ExporterName labels the copy-through function in logs and metrics.
const ExporterName = "listing-exporter"

// ExporterDeps are the collaborators of the exporter.
type ExporterDeps struct {
	// Source is the object store or external API the documents come from.
	Source pipeline.Fetcher
	// Objects receives the copies.
	Objects pipeline.ObjectWriter
	// Emitter and Metrics are optional.
	Emitter pipeline.Emitter
	Metrics MetricsPusher
	Logger  *slog.Logger
	Closers []io.Closer
}

// ExporterFunction copies listing documents unchanged into the destination
// bucket, logging and optionally emitting each one on the way.
type ExporterFunction struct {
	coordinator *pipeline.Coordinator
	metrics     MetricsPusher
	closers     []io.Closer
	logger      *slog.Logger
}

// NewExporter builds the exporter. Documents are read from the external API
// when EXTERNAL_API_BASE_URL is set, otherwise from the notified bucket.
func NewExporter(ctx context.Context, cfg *config.Config) (*ExporterFunction, error) {
	if err := cfg.ValidateExporter(); err != nil {
		return nil, err
	}

	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	objects := gcp.NewObjectStore(storageClient, cfg.ObjectIfAbsent)
	deps := ExporterDeps{
		Source:  pipeline.NewObjectFetcher(objects),
		Objects: objects,
		Metrics: newMetricsPusher(cfg, ExporterName),
		Closers: []io.Closer{storageClient},
	}

	if cfg.ExternalAPIBaseURL != "" {
		api, err := external.NewAPIFetcher(cfg.ExternalAPIBaseURL, cfg.ExternalAPITimeout)
		if err != nil {
			closeAll(deps.Closers)
			return nil, err
		}
		deps.Source = api
	}

	if cfg.EmitSubject != "" {
		emitter, err := messaging.NewNATSEmitter(messaging.DefaultNATSConfig(cfg.NATSURL, cfg.EmitSubject))
		if err != nil {
			closeAll(deps.Closers)
			return nil, err
		}
		deps.Emitter = emitter
		deps.Closers = append(deps.Closers, emitter)
	}

	f, err := NewExporterWith(cfg, deps)
	if err != nil {
		closeAll(deps.Closers)
		return nil, err
	}
	f.logger.Info("Listing exporter initialized.", "bucket", cfg.DestinationBucket, "externalApi", cfg.ExternalAPIBaseURL != "", "emitSubject", cfg.EmitSubject)
	return f, nil
}

// NewExporterWith builds the exporter over already constructed collaborators.
func NewExporterWith(cfg *config.Config, deps ExporterDeps) (*ExporterFunction, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("function", ExporterName)

	persister := pipeline.NewObjectPersister(deps.Objects, pipeline.ObjectPersisterConfig{
		Container: cfg.DestinationBucket,
		KeyPrefix: cfg.KeyPrefix,
		Options: pipeline.PutOptions{
			ContentType:   cfg.ContentType,
			EncryptionKey: cfg.KMSKeyName,
		},
		Emitter: deps.Emitter,
		Logger:  logger,
	})
	processor, err := pipeline.NewProcessor(pipeline.Config{
		Name:      ExporterName,
		Fetcher:   deps.Source,
		Validator: pipeline.Validator{Field: cfg.ValidateField},
		Persister: persister,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build exporter pipeline: %w", err)
	}

	return &ExporterFunction{
		coordinator: pipeline.NewCoordinator(processor, pipeline.CoordinatorOptions{
			Name:           ExporterName,
			MaxConcurrency: cfg.MaxConcurrency,
			FailFast:       cfg.FailFast,
			Logger:         logger,
		}),
		metrics: deps.Metrics,
		closers: deps.Closers,
		logger:  logger,
	}, nil
}

// Process handles one notification batch.
func (f *ExporterFunction) Process(ctx context.Context, batch []models.Descriptor) error {
	err := f.coordinator.HandleBatch(ctx, batch)
	pushMetrics(ctx, f.metrics, f.logger)
	return err
}

// Close releases the clients.
func (f *ExporterFunction) Close() error {
	return closeAll(f.closers)
}
