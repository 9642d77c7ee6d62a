// Package pipeline defines the customer-dimension tasks, their failure kinds
// and lifecycle, and an in-process runner for the task graph.
package pipeline

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Flow names registered with the scheduler.
const (
	FlowName       = "my_pipeline"
	ExportFlowName = "customer_export"
)

// Task names.
const (
	TaskExtractTransactions = "extract_transactions"
	TaskExtractCustomerOld  = "extract_customer_old"
	TaskTransform           = "transform"
	TaskLoadPostgres        = "load_postgres"
	TaskLoadCSV             = "load_csv"
	TaskLoadParquet         = "load_parquet"
)

// FlowTasks lists the tasks of the default flow.
var FlowTasks = []string{TaskExtractTransactions, TaskExtractCustomerOld, TaskTransform, TaskLoadPostgres}

// ExportTasks lists the tasks of the export flow.
var ExportTasks = []string{TaskExtractTransactions, TaskTransform, TaskLoadCSV, TaskLoadParquet}

// PartitionLayout is the date layout partitions are addressed by.
const PartitionLayout = "2006-01-02"

// PartitionKey returns the transaction object key for a daily partition.
func PartitionKey(date time.Time) string {
	return fmt.Sprintf("common/data/partitioned/%04d/%02d/%02d/transaction.csv",
		date.Year(), int(date.Month()), date.Day())
}

// ResolveSourceKey picks the object key for a run. An explicit key wins over a
// partition date, which wins over the configured default.
func ResolveSourceKey(defaultKey, partition, sourceKey string) (string, error) {
	if sourceKey != "" {
		return sourceKey, nil
	}
	if partition == "" {
		return defaultKey, nil
	}
	d, err := time.Parse(PartitionLayout, partition)
	if err != nil {
		return "", &TaskError{
			Task: "resolve_source",
			Kind: KindConfig,
			Err:  eris.Wrapf(err, "pipeline: invalid partition %q (want YYYY-MM-DD)", partition),
		}
	}
	return PartitionKey(d), nil
}
