package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/customer-pipeline/internal/pipeline"
	"github.com/sells-group/customer-pipeline/internal/resilience"
)

var (
	runPartition string
	runKey       string
	runExport    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the flow once in-process, without the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		key, err := pipeline.ResolveSourceKey(cfg.Source.Key, runPartition, runKey)
		if err != nil {
			return err
		}

		tasks, closeFn, err := initTasks(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		retry := resilience.FromRetryConfig(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs)
		res, runErr := pipeline.NewRunner(tasks, retry).Run(ctx, pipeline.RunOpts{
			SourceKey: key,
			Export:    runExport,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "encode result")
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runPartition, "partition", "", "partition date YYYY-MM-DD (default: source_path)")
	runCmd.Flags().StringVar(&runKey, "key", "", "explicit source object key (overrides --partition)")
	runCmd.Flags().BoolVar(&runExport, "export", false, "also upload customer.csv and customer.parquet")
	rootCmd.AddCommand(runCmd)
}
