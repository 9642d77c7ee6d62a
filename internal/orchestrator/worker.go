package orchestrator

import (
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// Worker serves the flows on a task queue.
type Worker struct {
	w         worker.Worker
	taskQueue string
}

// NewWorker registers the flows and activities on taskQueue.
func NewWorker(c client.Client, taskQueue string, wf *Workflows, acts *Activities) *Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w, wf, acts)
	return &Worker{w: w, taskQueue: taskQueue}
}

// Start begins polling. It does not block.
func (w *Worker) Start() error {
	if err := w.w.Start(); err != nil {
		return eris.Wrapf(err, "orchestrator: start worker on %s", w.taskQueue)
	}
	zap.L().Info("worker started", zap.String("task_queue", w.taskQueue), zap.Strings("flows", Flows))
	return nil
}

// Stop drains in-flight tasks and stops polling.
func (w *Worker) Stop() {
	w.w.Stop()
	zap.L().Info("worker stopped", zap.String("task_queue", w.taskQueue))
}
