package main

import (
	"context"

	"github.com/sells-group/customer-pipeline/internal/config"
	"github.com/sells-group/customer-pipeline/internal/export"
	"github.com/sells-group/customer-pipeline/internal/objectstore"
	"github.com/sells-group/customer-pipeline/internal/pipeline"
	"github.com/sells-group/customer-pipeline/internal/warehouse"
)

// initTasks opens one object-store client and one warehouse pool and binds
// them to the task set. The returned func releases both.
func initTasks(ctx context.Context, c *config.Config) (*pipeline.Tasks, func(), error) {
	store, err := objectstore.New(ctx, c.ObjectStore)
	if err != nil {
		return nil, nil, err
	}

	wh, closeWH, err := warehouse.Open(ctx, c.Postgres, c.Warehouse)
	if err != nil {
		closeStore(store)
		return nil, nil, err
	}

	tasks := &pipeline.Tasks{
		Store:     store,
		Warehouse: wh,
		Exporter:  export.New(store, c.Source.Bucket, c.Output.OutputKey),
		Bucket:    c.Source.Bucket,
		Table:     c.Warehouse.Table,
	}
	return tasks, func() {
		closeWH()
		closeStore(store)
	}, nil
}

func closeStore(s objectstore.Store) {
	if c, ok := s.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
