package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/listingflow/internal/metrics"
	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/Lllllllleong/listingflow/internal/services"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a notification batch",
	Long:  "Read a batch notification from a file and run it through the loader or exporter against the configured stores.",
	Example: `  listingctl run --file batch.json --role loader
  DESTINATION_BUCKET=listings-export listingctl run -f batch.json -r exporter`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		role, _ := cmd.Flags().GetString("role")

		batch, err := readBatch(path)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var f services.Function
		switch role {
		case roleLoader:
			f, err = services.NewLoader(ctx, cfg)
		case roleExporter:
			f, err = services.NewExporter(ctx, cfg)
		default:
			err = validateRole(cfg, role)
		}
		if err != nil {
			return err
		}
		defer f.Close()

		err = f.Process(ctx, batch)
		if summaryErr := printSummary(cmd.OutOrStdout(), nil); summaryErr != nil {
			return summaryErr
		}
		if err != nil {
			return fmt.Errorf("batch failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d records.\n", len(batch))
		return nil
	},
}

// printSummary writes the metrics recorded by this process.
func printSummary(w io.Writer, g prometheus.Gatherer) error {
	fmt.Fprintln(w, "Metrics:")
	return metrics.WriteSummary(w, g)
}

// readBatch decodes a models.Notification from path.
func readBatch(path string) ([]models.Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var n models.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("failed to decode batch file %s: %w", path, err)
	}
	return n.Descriptors()
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "Notification JSON file")
	runCmd.Flags().StringP("role", "r", roleLoader, "Function to run: loader or exporter")
	_ = runCmd.MarkFlagRequired("file")
}
