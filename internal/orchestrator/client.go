package orchestrator

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sells-group/customer-pipeline/internal/config"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
)

// Dial connects to the scheduler. The connection is checked eagerly, so an
// unreachable scheduler fails here.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewZapLogger(zap.L()),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: dial %s", cfg.HostPort)
	}
	return c, nil
}

// RunRef identifies a started flow run.
type RunRef struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// Trigger starts flow runs on the scheduler.
type Trigger struct {
	client     client.Client
	taskQueue  string
	defaultKey string
}

// NewTrigger creates a Trigger. defaultKey is used when a request names
// neither a partition nor a key.
func NewTrigger(c client.Client, taskQueue, defaultKey string) *Trigger {
	return &Trigger{client: c, taskQueue: taskQueue, defaultKey: defaultKey}
}

// Start launches flow for the given partition date or source key.
func (t *Trigger) Start(ctx context.Context, flow, partition, sourceKey string) (RunRef, error) {
	if !KnownFlow(flow) {
		return RunRef{}, &pipeline.TaskError{
			Task: "trigger",
			Kind: pipeline.KindConfig,
			Err:  eris.Errorf("orchestrator: unknown flow %q", flow),
		}
	}
	key, err := pipeline.ResolveSourceKey(t.defaultKey, partition, sourceKey)
	if err != nil {
		return RunRef{}, err
	}

	opts := client.StartWorkflowOptions{
		ID:        flow + "-" + uuid.NewString(),
		TaskQueue: t.taskQueue,
	}
	run, err := t.client.ExecuteWorkflow(ctx, opts, flow, FlowInput{SourceKey: key})
	if err != nil {
		return RunRef{}, eris.Wrapf(err, "orchestrator: start %s", flow)
	}

	zap.L().Info("flow run started",
		zap.String("flow", flow),
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.String("source_key", key),
	)
	return RunRef{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// Wait blocks until the run finishes and returns its result.
func (t *Trigger) Wait(ctx context.Context, ref RunRef) (*FlowResult, error) {
	var res FlowResult
	if err := t.client.GetWorkflow(ctx, ref.WorkflowID, ref.RunID).Get(ctx, &res); err != nil {
		return nil, eris.Wrapf(err, "orchestrator: run %s", ref.WorkflowID)
	}
	return &res, nil
}
