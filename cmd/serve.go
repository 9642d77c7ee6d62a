package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/customer-pipeline/internal/orchestrator"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
	"github.com/sells-group/customer-pipeline/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Register the flows with the scheduler and serve them until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := orchestrator.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		tasks, closeFn, err := initTasks(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		w := orchestrator.NewWorker(c, cfg.Temporal.TaskQueue,
			orchestrator.NewWorkflows(cfg.Retry),
			orchestrator.NewActivities(tasks),
		)
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		trigger := orchestrator.NewTrigger(c, cfg.Temporal.TaskQueue, cfg.Source.Key)
		srv := server.New(trigger,
			server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
			server.WithTriggerLimit(cfg.Server.TriggerRate, cfg.Server.TriggerBurst),
		)

		zap.L().Info("serving flow",
			zap.String("flow", pipeline.FlowName),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("warehouse", cfg.Postgres.RedactedURL()),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.ListenAndServe(gctx, port, srv.Handler())
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "trigger API port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
