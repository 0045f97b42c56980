package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/doc-intake/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting for extraction.
type Job struct {
	Input       pipeline.Input
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs the extraction for one input; *pipeline.Pipeline implements it.
type Processor interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.ExtractionResult, error)
}

// ResultHandler receives every finished job, successful or not.
type ResultHandler func(ctx context.Context, job Job, res *pipeline.ExtractionResult, err error)
