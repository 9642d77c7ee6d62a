package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/customer-pipeline/internal/frame"
	"github.com/sells-group/customer-pipeline/internal/metrics"
	"github.com/sells-group/customer-pipeline/internal/resilience"
)

// RunOpts configures a local flow run.
type RunOpts struct {
	SourceKey string // object key of the transaction partition
	Export    bool   // also upload customer.csv and customer.parquet
}

// RunResult is the outcome of a local flow run.
type RunResult struct {
	Flow      string        `json:"flow"`
	State     string        `json:"state"`
	SourceKey string        `json:"source_key"`
	Customers int           `json:"customers"`
	Loaded    int64         `json:"loaded"`
	Exported  []string      `json:"exported,omitempty"`
	Tasks     []TaskStatus  `json:"tasks"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Runner executes the flow in-process.
type Runner struct {
	tasks *Tasks
	retry resilience.RetryConfig
}

// NewRunner creates a Runner. retry bounds extract_transactions only.
func NewRunner(tasks *Tasks, retry resilience.RetryConfig) *Runner {
	return &Runner{tasks: tasks, retry: retry}
}

// Run executes extract_transactions and extract_customer_old concurrently,
// then transform and load_postgres on the transaction branch. With
// opts.Export, load_csv and load_parquet follow load_postgres. Cancellation
// is observed between tasks; a task already started runs to completion.
func (r *Runner) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	names := append([]string(nil), FlowTasks...)
	if opts.Export {
		names = append(names, TaskLoadCSV, TaskLoadParquet)
	}
	tr := NewTracker(names...)
	tr.AllowRetry(TaskExtractTransactions)

	log := zap.L().With(zap.String("flow", FlowName), zap.String("source_key", opts.SourceKey))
	log.Info("flow run starting")
	start := time.Now()

	res := &RunResult{Flow: FlowName, SourceKey: opts.SourceKey}

	var g errgroup.Group
	var oldErr error
	g.Go(func() error {
		oldErr = runTask(ctx, tr, TaskExtractCustomerOld, func(ctx context.Context) (int, error) {
			f, err := r.tasks.ExtractCustomerOld(ctx)
			return f.NumRows(), err
		})
		return nil
	})

	chainErr := r.runChain(ctx, tr, opts, res)
	_ = g.Wait()

	err := chainErr
	if err == nil {
		err = oldErr
	}

	res.Tasks = tr.Statuses()
	res.Elapsed = time.Since(start)
	if err != nil {
		res.State = Failed.String()
		metrics.ObserveFlow(FlowName, res.State)
		log.Error("flow run failed",
			zap.Strings("failed_tasks", tr.Failed()),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(err),
		)
		return res, err
	}

	res.State = Succeeded.String()
	metrics.ObserveFlow(FlowName, res.State)
	log.Info("flow run complete",
		zap.Int("customers", res.Customers),
		zap.Int64("loaded", res.Loaded),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (r *Runner) runChain(ctx context.Context, tr *Tracker, opts RunOpts, res *RunResult) error {
	var transactions *frame.Frame
	err := runTask(ctx, tr, TaskExtractTransactions, func(ctx context.Context) (int, error) {
		cfg := r.retry
		cfg.ShouldRetry = IsRetryable
		onRetry := resilience.RetryLogger(TaskExtractTransactions, zap.String("key", opts.SourceKey))
		cfg.OnRetry = func(attempt int, err error) {
			onRetry(attempt, err)
			metrics.ObserveRetry(TaskExtractTransactions)
			_ = tr.Transition(TaskExtractTransactions, Retrying)
		}

		f, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*frame.Frame, error) {
			if tr.State(TaskExtractTransactions) == Retrying {
				_ = tr.Transition(TaskExtractTransactions, Running)
			}
			return r.tasks.ExtractTransactions(ctx, opts.SourceKey)
		})
		transactions = f
		return f.NumRows(), err
	})
	if err != nil {
		return err
	}

	var customers *frame.Frame
	err = runTask(ctx, tr, TaskTransform, func(ctx context.Context) (int, error) {
		f, err := r.tasks.Transform(ctx, transactions)
		customers = f
		return f.NumRows(), err
	})
	if err != nil {
		return err
	}
	res.Customers = customers.NumRows()

	err = runTask(ctx, tr, TaskLoadPostgres, func(ctx context.Context) (int, error) {
		n, err := r.tasks.LoadPostgres(ctx, customers)
		res.Loaded = n
		return int(n), err
	})
	if err != nil || !opts.Export {
		return err
	}

	err = runTask(ctx, tr, TaskLoadCSV, func(ctx context.Context) (int, error) {
		key, err := r.tasks.LoadCSV(ctx, customers)
		if err == nil {
			res.Exported = append(res.Exported, key)
		}
		return customers.NumRows(), err
	})
	if err != nil {
		return err
	}
	return runTask(ctx, tr, TaskLoadParquet, func(ctx context.Context) (int, error) {
		key, err := r.tasks.LoadParquet(ctx, customers)
		if err == nil {
			res.Exported = append(res.Exported, key)
		}
		return customers.NumRows(), err
	})
}

// runTask drives one task through the state machine. The task body runs on a
// context that is not cancelled with ctx, so cancellation lands at the next
// task boundary.
func runTask(ctx context.Context, tr *Tracker, task string, fn func(ctx context.Context) (int, error)) error {
	if err := ctx.Err(); err != nil {
		cerr := taskErr(task, KindPermanent, eris.Wrap(err, "pipeline: cancelled before start"))
		_ = tr.Transition(task, Running)
		_ = tr.Fail(task, cerr)
		return cerr
	}

	if err := tr.Transition(task, Running); err != nil {
		return err
	}
	start := time.Now()

	rows, err := fn(context.WithoutCancel(ctx))
	elapsed := time.Since(start)
	if err != nil {
		var te *TaskError
		if !errors.As(err, &te) {
			err = taskErr(task, KindOf(err), err)
		}
		_ = tr.Fail(task, err)
		metrics.ObserveTask(task, Failed.String(), elapsed)
		zap.L().Error("task failed",
			zap.String("task", task),
			zap.String("kind", string(KindOf(err))),
			zap.Int("attempts", tr.Attempts(task)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return err
	}

	tr.SetRows(task, rows)
	_ = tr.Transition(task, Succeeded)
	metrics.ObserveTask(task, Succeeded.String(), elapsed)
	zap.L().Debug("task succeeded", zap.String("task", task), zap.Duration("elapsed", elapsed))
	return nil
}
