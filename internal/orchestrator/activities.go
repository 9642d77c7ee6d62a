package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/metrics"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
)

// Activities adapts pipeline tasks to Temporal activities. One instance is
// shared by every run the worker executes.
type Activities struct {
	tasks *pipeline.Tasks
}

// NewActivities wraps tasks.
func NewActivities(tasks *pipeline.Tasks) *Activities {
	return &Activities{tasks: tasks}
}

// ExtractTransactions is one attempt at reading the transaction partition.
func (a *Activities) ExtractTransactions(ctx context.Context, key string) (*frame.Frame, error) {
	f, err := observe(ctx, pipeline.TaskExtractTransactions, func() (*frame.Frame, error) {
		return a.tasks.ExtractTransactions(ctx, key)
	})
	return f, toApplicationError(err)
}

// ExtractCustomerOld reads the current customer table.
func (a *Activities) ExtractCustomerOld(ctx context.Context) (*frame.Frame, error) {
	f, err := observe(ctx, pipeline.TaskExtractCustomerOld, func() (*frame.Frame, error) {
		return a.tasks.ExtractCustomerOld(ctx)
	})
	return f, toApplicationError(err)
}

// Transform derives the customer dimension.
func (a *Activities) Transform(ctx context.Context, transactions *frame.Frame) (*frame.Frame, error) {
	f, err := observe(ctx, pipeline.TaskTransform, func() (*frame.Frame, error) {
		return a.tasks.Transform(ctx, transactions)
	})
	return f, toApplicationError(err)
}

// LoadPostgres replaces the customer table and returns the rows written.
func (a *Activities) LoadPostgres(ctx context.Context, customers *frame.Frame) (int64, error) {
	n, err := observe(ctx, pipeline.TaskLoadPostgres, func() (int64, error) {
		return a.tasks.LoadPostgres(ctx, customers)
	})
	return n, toApplicationError(err)
}

// LoadCSV uploads customer.csv and returns its key.
func (a *Activities) LoadCSV(ctx context.Context, customers *frame.Frame) (string, error) {
	key, err := observe(ctx, pipeline.TaskLoadCSV, func() (string, error) {
		return a.tasks.LoadCSV(ctx, customers)
	})
	return key, toApplicationError(err)
}

// LoadParquet uploads customer.parquet and returns its key.
func (a *Activities) LoadParquet(ctx context.Context, customers *frame.Frame) (string, error) {
	key, err := observe(ctx, pipeline.TaskLoadParquet, func() (string, error) {
		return a.tasks.LoadParquet(ctx, customers)
	})
	return key, toApplicationError(err)
}

// observe logs and records metrics for one activity attempt.
func observe[T any](ctx context.Context, task string, fn func() (T, error)) (T, error) {
	info := activity.GetInfo(ctx)
	logger := activity.GetLogger(ctx)
	if info.Attempt > 1 {
		metrics.ObserveRetry(task)
	}
	logger.Info("task running", "task", task, "attempt", info.Attempt)

	start := time.Now()
	val, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		state := pipeline.Failed.String()
		if pipeline.IsRetryable(err) {
			state = pipeline.Retrying.String()
		}
		metrics.ObserveTask(task, state, elapsed)
		logger.Warn("task attempt failed", "task", task, "attempt", info.Attempt,
			"kind", string(pipeline.KindOf(err)), "error", err)
		return val, err
	}
	metrics.ObserveTask(task, pipeline.Succeeded.String(), elapsed)
	logger.Info("task succeeded", "task", task, "elapsed", elapsed)
	return val, nil
}

// toApplicationError converts a task failure into an application error whose
// type is the failure kind. Only transient failures stay retryable.
func toApplicationError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}
	kind := pipeline.KindOf(err)
	if kind == pipeline.KindTransient {
		return temporal.NewApplicationErrorWithCause(err.Error(), string(kind), err)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
}
