package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/listingflow/internal/models"
	"github.com/Lllllllleong/listingflow/internal/pipeline"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Dry-run a transform on a local document",
	Long:  "Parse, validate and transform a local JSON document and print the item the loader would write. Nothing is persisted.",
	Example: `  listingctl transform --file person.json
  listingctl transform -f person.json --strategy name --label PEOPLE`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		strategy, _ := cmd.Flags().GetString("strategy")
		label, _ := cmd.Flags().GetString("label")

		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		item, err := transformDocument(models.Descriptor{Container: "local", Key: path}, body, strategy, label)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(item)
	},
}

// transformDocument runs the loader's parse, validate and transform steps on body.
func transformDocument(src models.Descriptor, body []byte, strategy, label string) (pipeline.Item, error) {
	t, err := pipeline.NewTransformer(strategy, label)
	if err != nil {
		return nil, err
	}
	rec, err := pipeline.Parse(src, body)
	if err != nil {
		return nil, err
	}
	if !(pipeline.Validator{Field: t.Field()}).Valid(rec) {
		return nil, &pipeline.ValidationError{Source: src, Field: t.Field()}
	}
	return t.Transform(rec), nil
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().StringP("file", "f", "", "JSON document")
	transformCmd.Flags().StringP("strategy", "s", pipeline.StrategyIdentity, "Transform strategy: identity or name")
	transformCmd.Flags().String("label", pipeline.DefaultPartitionLabel, "Partition label")
	_ = transformCmd.MarkFlagRequired("file")
}
