package pipelinetest

import (
	"context"
	"errors"

	"github.com/sells-group/customer-pipeline/internal/objectstore"
	"github.com/sells-group/customer-pipeline/internal/resilience"
)

// Bucket and Key address the seeded transaction partition.
const (
	Bucket = "fullstackdata2023"
	Key    = "common/data/partitioned/2023/11/30/transaction.csv"
)

// HappyPathCSV holds three transactions for two distinct customers.
const HappyPathCSV = `customer_id,customer_name,customer_province,date,amount
C1,Alice,BKK,2023-11-30,100
C1,Alice,BKK,2023-11-30,250
C2,Bob,CNX,2023-11-30,75
`

// Store returns a memory store holding body at Bucket/Key.
func Store(body string) *objectstore.Memory {
	m := objectstore.NewMemory()
	if err := m.Put(context.Background(), Bucket, Key, []byte(body), "text/csv"); err != nil {
		panic(err)
	}
	return m
}

// TransportError is a retryable fault as an object-store backend reports it.
func TransportError() error {
	return resilience.NewTransientError(errors.New("read tcp: connection reset by peer"), 0)
}
