package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobs "github.com/madelhuette/carvitra-sub001/internal/async"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

type fakeProcessor struct {
	gate    chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
	reqIDs  sync.Map
	timeout atomic.Bool
}

func (f *fakeProcessor) Process(ctx context.Context, doc entity.Document) entity.OfferResult {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			f.timeout.Store(true)
		}
	}
	id := common.RequestIDFromContext(ctx)
	f.reqIDs.Store(doc.Name, id)
	return entity.OfferResult{JobID: id, Source: doc.Name, Accepted: true}
}

func TestProcessorQueue_ProcessesAllAndReportsResults(t *testing.T) {
	proc := &fakeProcessor{}
	var mu sync.Mutex
	got := map[string]entity.OfferResult{}
	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithResultHandler(func(job jobs.Job, res entity.OfferResult) {
			mu.Lock()
			got[job.Document.Name] = res
			mu.Unlock()
		}),
	)

	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"} {
		require.NoError(t, q.Enqueue(context.Background(), jobs.Job{Document: entity.Document{Name: name}}))
	}
	q.Shutdown(context.Background())

	assert.Len(t, got, 4)
	assert.True(t, got["c.pdf"].Accepted)
	assert.LessOrEqual(t, proc.peak.Load(), int32(2))
}

func TestProcessorQueue_TraceIDBecomesRequestID(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), jobs.Job{Document: entity.Document{Name: "a.pdf"}, TraceID: "trace-1"}))
	q.Shutdown(context.Background())

	id, _ := proc.reqIDs.Load("a.pdf")
	assert.Equal(t, "trace-1", id)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), jobs.Job{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProcessorQueue_BackpressureRespectsContext(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(proc.gate)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), jobs.Job{Document: entity.Document{Name: "running.pdf"}}))
	require.Eventually(t, func() bool { return proc.active.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), jobs.Job{Document: entity.Document{Name: "queued.pdf"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, jobs.Job{Document: entity.Document{Name: "blocked.pdf"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessorQueue_JobTimeout(t *testing.T) {
	proc := &fakeProcessor{gate: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(10*time.Millisecond))

	require.NoError(t, q.Enqueue(context.Background(), jobs.Job{Document: entity.Document{Name: "slow.pdf"}}))
	q.Shutdown(context.Background())

	assert.True(t, proc.timeout.Load())
}
