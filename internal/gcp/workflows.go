package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/listingflow/internal/models"
)

// WorkflowTrigger starts a Cloud Workflows execution once a batch has been
// loaded, handing the workflow the table and the sources it now contains.
type WorkflowTrigger struct {
	client *executions.Client
	parent string
}

// NewWorkflowTrigger creates an executions client for the given workflow.
func NewWorkflowTrigger(ctx context.Context, projectID, location, workflowID string) (*WorkflowTrigger, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow executions client: %w", err)
	}
	return &WorkflowTrigger{client: client, parent: WorkflowParent(projectID, location, workflowID)}, nil
}

// WorkflowParent is the resource name executions are created under.
func WorkflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

type batchArgument struct {
	Table     string              `json:"table"`
	BatchSize int                 `json:"batchSize"`
	Sources   []models.Descriptor `json:"sources"`
}

// BatchArgument renders the execution argument for a loaded batch.
func BatchArgument(table string, batch []models.Descriptor) (string, error) {
	payload, err := json.Marshal(batchArgument{Table: table, BatchSize: len(batch), Sources: batch})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	return string(payload), nil
}

// BatchLoaded creates one execution for the batch.
func (w *WorkflowTrigger) BatchLoaded(ctx context.Context, table string, batch []models.Descriptor) error {
	arg, err := BatchArgument(table, batch)
	if err != nil {
		return err
	}
	exec, err := w.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent:    w.parent,
		Execution: &executionspb.Execution{Argument: arg},
	})
	if err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	slog.Info("Triggered workflow.", "workflow", w.parent, "execution", exec.GetName(), "batchSize", len(batch))
	return nil
}

// Close releases the executions client.
func (w *WorkflowTrigger) Close() error {
	return w.client.Close()
}
