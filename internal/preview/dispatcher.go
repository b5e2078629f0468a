package preview

import (
	"context"
	"errors"
	"sync"

	"github.com/dokstore/dokstore/pkg/logger"
)

// ErrQueueFull is returned when a dispatch cannot be accepted without
// blocking. The caller's create/replace already committed; a dropped job is
// recoverable through explicit regeneration.
var ErrQueueFull = errors.New("preview queue full")

// ChanDispatcher is the in-process Dispatcher: a buffered channel drained
// by a worker pool in the same process.
type ChanDispatcher struct {
	jobs chan Job

	closeOnce sync.Once
}

func NewChanDispatcher(buffer int) *ChanDispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChanDispatcher{jobs: make(chan Job, buffer)}
}

// Dispatch enqueues without blocking the caller.
func (d *ChanDispatcher) Dispatch(ctx context.Context, j Job) error {
	select {
	case d.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs; running workers drain what remains.
func (d *ChanDispatcher) Close() {
	d.closeOnce.Do(func() { close(d.jobs) })
}

// Run consumes jobs with `workers` goroutines until the channel closes or
// ctx is canceled. Blocks; call in a goroutine.
func (d *ChanDispatcher) Run(ctx context.Context, g *Generator, workers int) {
	if workers <= 0 {
		workers = 2
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-d.jobs:
					if !ok {
						return
					}
					if err := g.Generate(ctx, j.DocumentID, j.Force); err != nil {
						logger.Errorf("preview worker: %v", err)
					}
				}
			}
		}()
	}
	wg.Wait()
}
