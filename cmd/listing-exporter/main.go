package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/listingflow/internal/config"
	"github.com/Lllllllleong/listingflow/internal/logging"
	"github.com/Lllllllleong/listingflow/internal/services"
)

var (
	exporterInstance *services.ExporterFunction
	once             sync.Once
	initErr          error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// "ExportListings" is the entry point name configured in GCP.
	functions.CloudEvent("ExportListings", exportListings)
}

// main serves the registered entry point on $PORT, as the platform does.
func main() {
	if err := funcframework.Start(listenPort()); err != nil {
		slog.Error("Function framework exited.", "error", err)
		os.Exit(1)
	}
}

// listenPort returns $PORT, or 8080 when it is unset.
func listenPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8080"
}

func exportListings(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load()
		if initErr != nil {
			return
		}
		slog.SetDefault(logging.New(cfg.LogLevel, cfg.LogFormat))
		exporterInstance, initErr = services.NewExporter(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		return initErr
	}

	// Errors are logged per record inside the coordinator; returning one marks the invocation failed.
	return services.HandleEvent(ctx, exporterInstance, e)
}
