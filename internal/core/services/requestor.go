package services

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/logger"
)

// fetchRequest asks the requestor to read one dependency.
type fetchRequest struct {
	id   domain.CanonicalID
	path string
}

// fetchResult is a completed dependency read.
type fetchResult struct {
	id       domain.CanonicalID
	contents []byte
	err      error
}

// dependencyRequestor reads demand-loaded dependencies from disk.
// Requests queue without bound so the coordinator never blocks on it.
type dependencyRequestor struct {
	reader  driven.FileReader
	limiter *rate.Limiter

	mu    sync.Mutex
	queue []fetchRequest
	wake  chan struct{}
}

// newDependencyRequestor creates a requestor. A positive readsPerSecond
// throttles reads.
func newDependencyRequestor(reader driven.FileReader, readsPerSecond float64) *dependencyRequestor {
	q := &dependencyRequestor{
		reader: reader,
		wake:   make(chan struct{}, 1),
	}
	if readsPerSecond > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(readsPerSecond), 1)
	}
	return q
}

// request queues a read. Safe to call from the coordinator.
func (q *dependencyRequestor) request(id domain.CanonicalID, path string) {
	q.mu.Lock()
	q.queue = append(q.queue, fetchRequest{id: id, path: path})
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *dependencyRequestor) next() (fetchRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return fetchRequest{}, false
	}
	req := q.queue[0]
	q.queue = q.queue[1:]
	return req, true
}

// run reads queued dependencies and sends results to out until ctx ends.
func (q *dependencyRequestor) run(ctx context.Context, out chan<- fetchResult) {
	for {
		req, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
		}

		logger.Debug("Reading dependency: %s", req.id)
		contents, err := q.reader.ReadFile(ctx, req.path)
		select {
		case out <- fetchResult{id: req.id, contents: contents, err: err}:
		case <-ctx.Done():
			return
		}
	}
}
