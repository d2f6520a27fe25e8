package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/listingflow/internal/config"
	"github.com/Lllllllleong/listingflow/internal/metrics"
	"github.com/Lllllllleong/listingflow/internal/models"
)

// storageEventPrefix matches Cloud Storage object event types, e.g.
// google.cloud.storage.object.v1.finalized.
const storageEventPrefix = "google.cloud.storage.object."

// DescriptorsFromEvent extracts the batch carried by a CloudEvent. Cloud
// Storage events become a one-record batch; any other type must carry a
// models.Notification payload.
func DescriptorsFromEvent(e cloudevents.Event) ([]models.Descriptor, error) {
	if strings.HasPrefix(e.Type(), storageEventPrefix) {
		var obj models.StorageObjectEvent
		if err := e.DataAs(&obj); err != nil {
			return nil, fmt.Errorf("failed to decode storage event data: %w", err)
		}
		d, err := obj.Descriptor()
		if err != nil {
			return nil, err
		}
		return []models.Descriptor{d}, nil
	}

	var n models.Notification
	if err := e.DataAs(&n); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return n.Descriptors()
}

// Function is a listing function ready to process batches.
type Function interface {
	Process(ctx context.Context, batch []models.Descriptor) error
	io.Closer
}

var (
	_ Function = (*LoaderFunction)(nil)
	_ Function = (*ExporterFunction)(nil)
)

// MetricsPusher publishes the process's metrics after a batch.
type MetricsPusher interface {
	Push(ctx context.Context) error
}

func newMetricsPusher(cfg *config.Config, job string) MetricsPusher {
	if cfg.PushgatewayURL == "" {
		return nil
	}
	return metrics.NewPusher(cfg.PushgatewayURL, job, nil)
}

// pushMetrics never fails the batch; a lost push only costs one sample.
func pushMetrics(ctx context.Context, p MetricsPusher, logger *slog.Logger) {
	if p == nil {
		return
	}
	if err := p.Push(ctx); err != nil {
		logger.Warn("Failed to push metrics.", "error", err)
	}
}

// HandleEvent decodes e and hands the batch to f. A returned error marks the
// invocation as failed so the platform can retry it.
func HandleEvent(ctx context.Context, f Function, e cloudevents.Event) error {
	batch, err := DescriptorsFromEvent(e)
	if err != nil {
		slog.Error("Failed to decode event.", "eventId", e.ID(), "eventType", e.Type(), "error", err)
		return err
	}
	return f.Process(ctx, batch)
}
