package async

import (
	"context"
	"time"

	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

// Job is one document waiting to be processed.
type Job struct {
	Document    entity.Document
	SubmittedAt time.Time
	TraceID     string // becomes the request id of the run when set
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
