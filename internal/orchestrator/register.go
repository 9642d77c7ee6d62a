package orchestrator

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/customer-pipeline/internal/pipeline"
)

// Registrar is the registration surface shared by worker.Worker and the
// workflow test environment.
type Registrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
	RegisterActivityWithOptions(a interface{}, options activity.RegisterOptions)
}

// Register binds the flows and activities to their stable names.
func Register(r Registrar, wf *Workflows, acts *Activities) {
	r.RegisterWorkflowWithOptions(wf.CustomerPipeline, workflow.RegisterOptions{Name: pipeline.FlowName})
	r.RegisterWorkflowWithOptions(wf.CustomerExport, workflow.RegisterOptions{Name: pipeline.ExportFlowName})

	activities := map[string]interface{}{
		pipeline.TaskExtractTransactions: acts.ExtractTransactions,
		pipeline.TaskExtractCustomerOld:  acts.ExtractCustomerOld,
		pipeline.TaskTransform:           acts.Transform,
		pipeline.TaskLoadPostgres:        acts.LoadPostgres,
		pipeline.TaskLoadCSV:             acts.LoadCSV,
		pipeline.TaskLoadParquet:         acts.LoadParquet,
	}
	for name, fn := range activities {
		r.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}
}

// Flows lists the registered flow names.
var Flows = []string{pipeline.FlowName, pipeline.ExportFlowName}

// KnownFlow reports whether name is a registered flow.
func KnownFlow(name string) bool {
	for _, f := range Flows {
		if f == name {
			return true
		}
	}
	return false
}
