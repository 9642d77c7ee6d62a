// Package orchestrator runs the customer pipeline on Temporal: workflow
// definitions, activity adapters, the worker and the trigger client.
package orchestrator

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/customer-pipeline/internal/config"
	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
)

// activityTimeout bounds a single activity attempt.
const activityTimeout = 10 * time.Minute

// FlowInput parameterizes a flow run.
type FlowInput struct {
	SourceKey string `json:"source_key"`
}

// FlowResult summarizes a finished flow run.
type FlowResult struct {
	SourceKey string   `json:"source_key"`
	Customers int      `json:"customers"`
	Loaded    int64    `json:"loaded,omitempty"`
	Exported  []string `json:"exported,omitempty"`
}

// Workflows holds the flow definitions and the retry settings they schedule
// activities with.
type Workflows struct {
	retry config.RetryConfig
}

// NewWorkflows creates the flow definitions.
func NewWorkflows(retry config.RetryConfig) *Workflows {
	return &Workflows{retry: retry}
}

// extractOptions retries extract_transactions on transient failures only.
func (w *Workflows) extractOptions() workflow.ActivityOptions {
	nonRetryable := make([]string, len(pipeline.NonRetryableKinds))
	for i, k := range pipeline.NonRetryableKinds {
		nonRetryable[i] = string(k)
	}
	maxAttempts := w.retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Duration(w.retry.InitialBackoffMs) * time.Millisecond,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Duration(w.retry.MaxBackoffMs) * time.Millisecond,
			MaximumAttempts:        int32(maxAttempts),
			NonRetryableErrorTypes: nonRetryable,
		},
	}
}

// taskOptions runs every other activity exactly once.
func (w *Workflows) taskOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: activityTimeout,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
}

// CustomerPipeline is the my_pipeline flow: extract_transactions and
// extract_customer_old concurrently, then transform, then load_postgres.
func (w *Workflows) CustomerPipeline(ctx workflow.Context, in FlowInput) (*FlowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("flow started", "flow", pipeline.FlowName, "source_key", in.SourceKey)

	extractCtx := workflow.WithActivityOptions(ctx, w.extractOptions())
	taskCtx := workflow.WithActivityOptions(ctx, w.taskOptions())

	txFuture := workflow.ExecuteActivity(extractCtx, pipeline.TaskExtractTransactions, in.SourceKey)
	// The existing table is read for its contract only; nothing consumes it.
	oldFuture := workflow.ExecuteActivity(taskCtx, pipeline.TaskExtractCustomerOld)

	var transactions frame.Frame
	if err := txFuture.Get(ctx, &transactions); err != nil {
		return nil, err
	}

	var customers frame.Frame
	if err := workflow.ExecuteActivity(taskCtx, pipeline.TaskTransform, &transactions).Get(ctx, &customers); err != nil {
		return nil, err
	}

	var loaded int64
	if err := workflow.ExecuteActivity(taskCtx, pipeline.TaskLoadPostgres, &customers).Get(ctx, &loaded); err != nil {
		return nil, err
	}

	if err := oldFuture.Get(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("flow complete", "flow", pipeline.FlowName, "customers", customers.NumRows(), "loaded", loaded)
	return &FlowResult{SourceKey: in.SourceKey, Customers: customers.NumRows(), Loaded: loaded}, nil
}

// CustomerExport is the customer_export flow: extract_transactions, transform,
// then load_csv and load_parquet concurrently.
func (w *Workflows) CustomerExport(ctx workflow.Context, in FlowInput) (*FlowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("flow started", "flow", pipeline.ExportFlowName, "source_key", in.SourceKey)

	extractCtx := workflow.WithActivityOptions(ctx, w.extractOptions())
	taskCtx := workflow.WithActivityOptions(ctx, w.taskOptions())

	var transactions frame.Frame
	if err := workflow.ExecuteActivity(extractCtx, pipeline.TaskExtractTransactions, in.SourceKey).Get(ctx, &transactions); err != nil {
		return nil, err
	}

	var customers frame.Frame
	if err := workflow.ExecuteActivity(taskCtx, pipeline.TaskTransform, &transactions).Get(ctx, &customers); err != nil {
		return nil, err
	}

	csvFuture := workflow.ExecuteActivity(taskCtx, pipeline.TaskLoadCSV, &customers)
	parquetFuture := workflow.ExecuteActivity(taskCtx, pipeline.TaskLoadParquet, &customers)

	res := &FlowResult{SourceKey: in.SourceKey, Customers: customers.NumRows()}
	var firstErr error
	for _, f := range []workflow.Future{csvFuture, parquetFuture} {
		var key string
		if err := f.Get(ctx, &key); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Exported = append(res.Exported, key)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	logger.Info("flow complete", "flow", pipeline.ExportFlowName, "exported", res.Exported)
	return res, nil
}
