package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/customer-pipeline/internal/orchestrator"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
)

var (
	triggerFlow      string
	triggerPartition string
	triggerKey       string
	triggerWait      bool
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Start a flow run on the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := orchestrator.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		tr := orchestrator.NewTrigger(c, cfg.Temporal.TaskQueue, cfg.Source.Key)
		ref, err := tr.Start(ctx, triggerFlow, triggerPartition, triggerKey)
		if err != nil {
			return err
		}

		var out any = ref
		if triggerWait {
			res, err := tr.Wait(ctx, ref)
			if err != nil {
				return err
			}
			out = struct {
				orchestrator.RunRef
				Result *orchestrator.FlowResult `json:"result"`
			}{ref, res}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(out), "encode result")
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerFlow, "flow", pipeline.FlowName, "flow to start (my_pipeline | customer_export)")
	triggerCmd.Flags().StringVar(&triggerPartition, "partition", "", "partition date YYYY-MM-DD (default: source_path)")
	triggerCmd.Flags().StringVar(&triggerKey, "key", "", "explicit source object key (overrides --partition)")
	triggerCmd.Flags().BoolVar(&triggerWait, "wait", false, "block until the run finishes and print its result")
	rootCmd.AddCommand(triggerCmd)
}
