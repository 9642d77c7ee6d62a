package pipeline

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/resilience"
	"github.com/sells-group/customer-pipeline/internal/transform"
)

// Kind classifies a task failure.
type Kind string

const (
	// KindConfig is a missing or invalid setting. Fatal before any task runs.
	KindConfig Kind = "config"
	// KindTransient is a retryable I/O failure.
	KindTransient Kind = "transient"
	// KindPermanent is an I/O failure that retrying cannot fix.
	KindPermanent Kind = "permanent"
	// KindData is input that does not have the expected shape.
	KindData Kind = "data"
	// KindWrite is any failure while replacing or uploading output.
	KindWrite Kind = "write"
)

var errNoExporter = eris.New("pipeline: no exporter configured")

// NonRetryableKinds lists every kind except KindTransient.
var NonRetryableKinds = []Kind{KindConfig, KindPermanent, KindData, KindWrite}

// TaskError is the single failure signal a task reports.
type TaskError struct {
	Task string
	Kind Kind
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Task, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on another attempt.
func (e *TaskError) Retryable() bool { return e.Kind == KindTransient }

func taskErr(task string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &TaskError{Task: task, Kind: kind, Err: err}
}

// KindOf returns the kind carried by err. Errors that did not come from a task
// are classified from their cause.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	return classify(err)
}

// classify maps an I/O error to transient or permanent, and shape errors to data.
func classify(err error) Kind {
	switch {
	case transform.IsDataError(err):
		return KindData
	case resilience.IsTransient(err):
		return KindTransient
	default:
		return KindPermanent
	}
}

// IsRetryable reports whether err is a transient task failure.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
