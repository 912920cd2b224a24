package persist

import (
	"context"
	"errors"
	"time"

	"github.com/listkeeper/listkeeper/pkg/logger"
)

// errQueueFull is reported on a task's result channel when the bounded queue
// cannot accept it. The producer is never blocked.
var errQueueFull = errors.New("sync queue full, task dropped")

// errQueueStopped is reported for tasks abandoned by a shutdown.
var errQueueStopped = errors.New("sync queue stopped")

// syncTask is one unit of background replication. The result channel lets
// tests assert on eventual delivery without sleeping; production callers
// simply ignore it.
type syncTask struct {
	describe string
	run      func(ctx context.Context) error
	result   chan error
}

// syncQueue is the bounded retry queue behind fire-and-forget replication.
// A single worker drains it, retrying each task up to retryLimit attempts.
// Terminal failures are logged and reported on the task's result channel;
// they never reach the producer as an error return.
type syncQueue struct {
	tasks      chan syncTask
	log        logger.Logger
	retryLimit int
	retryDelay time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func newSyncQueue(size, retryLimit int, retryDelay time.Duration, log logger.Logger) *syncQueue {
	if size <= 0 {
		size = 1
	}
	if retryLimit <= 0 {
		retryLimit = 1
	}
	return &syncQueue{
		tasks:      make(chan syncTask, size),
		log:        log,
		retryLimit: retryLimit,
		retryDelay: retryDelay,
	}
}

// start launches the worker. Idempotent start is not supported; callers pair
// one start with one stop.
func (q *syncQueue) start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.done = make(chan struct{})
	go q.loop(ctx)
}

// stop cancels the worker and waits for it to exit. Tasks still queued are
// reported as abandoned.
func (q *syncQueue) stop() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	<-q.done
	q.cancel = nil

	for {
		select {
		case t := <-q.tasks:
			t.result <- errQueueStopped
			close(t.result)
		default:
			return
		}
	}
}

// enqueue offers a task without blocking. The returned channel receives the
// terminal outcome of the task exactly once.
func (q *syncQueue) enqueue(describe string, run func(ctx context.Context) error) <-chan error {
	t := syncTask{
		describe: describe,
		run:      run,
		result:   make(chan error, 1),
	}
	select {
	case q.tasks <- t:
	default:
		q.log.Warn("sync queue full, dropping task", logger.Fields{"task": describe})
		t.result <- errQueueFull
		close(t.result)
	}
	return t.result
}

// pending reports how many tasks are waiting, for diagnostics.
func (q *syncQueue) pending() int {
	return len(q.tasks)
}

func (q *syncQueue) loop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.process(ctx, t)
		}
	}
}

func (q *syncQueue) process(ctx context.Context, t syncTask) {
	var err error
	for attempt := 1; attempt <= q.retryLimit; attempt++ {
		err = t.run(ctx)
		if err == nil {
			break
		}
		if attempt == q.retryLimit {
			break
		}
		select {
		case <-ctx.Done():
			err = errQueueStopped
		case <-time.After(q.retryDelay):
			continue
		}
		break
	}
	if err != nil {
		q.log.Error("background sync task failed", logger.Fields{
			"task":     t.describe,
			"attempts": q.retryLimit,
			"error":    err.Error(),
		})
	} else {
		q.log.Debug("background sync task delivered", logger.Fields{"task": t.describe})
	}
	t.result <- err
	close(t.result)
}
