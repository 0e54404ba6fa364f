// Package workpool runs side effects that have no ordering relationship with
// protocol events, such as plugin initialisation, on a fixed set of worker
// goroutines.
package workpool

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/logging"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("work pool closed")

// DefaultReleaseTimeout bounds how long Close waits for running tasks.
const DefaultReleaseTimeout = 5 * time.Second

type antsLogger struct{}

func (antsLogger) Printf(format string, args ...any) {
	logging.L().Sugar().Warnf(format, args...)
}

// Pool is a FIFO of tasks consumed by a bounded number of workers. The
// queue itself is unbounded so Enqueue never waits for a worker.
type Pool struct {
	workers *ants.Pool

	mu      sync.Mutex
	drained *sync.Cond
	queue   []func()
	// busy counts tasks handed to a worker that have not returned yet.
	busy   int
	closed bool
	ready  chan struct{}
	done   chan struct{}

	releaseTimeout time.Duration
}

// New starts a pool with size workers.
func New(size int) (*Pool, error) {
	if size <= 0 {
		return nil, errors.Newf("work pool size must be positive, got %d", size)
	}

	workers, err := ants.NewPool(size,
		ants.WithNonblocking(false),
		ants.WithLogger(antsLogger{}),
		ants.WithPanicHandler(func(v any) {
			logging.L().Error("task panicked", zap.Any("panic", v), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}

	p := &Pool{
		workers:        workers,
		ready:          make(chan struct{}, 1),
		done:           make(chan struct{}),
		releaseTimeout: DefaultReleaseTimeout,
	}
	p.drained = sync.NewCond(&p.mu)
	go p.feed()
	return p, nil
}

// Enqueue appends task to the queue. It never blocks.
func (p *Pool) Enqueue(task func()) error {
	if task == nil {
		return errors.New("nil task")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
	return nil
}

// feed moves queued tasks to the workers in order. Submit blocks while
// every worker is busy, which keeps the remaining tasks in the queue where
// Close can drop them.
func (p *Pool) feed() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.mu.Unlock()
			<-p.ready
			p.mu.Lock()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.busy++
		p.mu.Unlock()

		if err := p.workers.Submit(func() {
			defer p.finish()
			if p.isClosed() {
				return
			}
			task()
		}); err != nil {
			logging.L().Warn("submit task", zap.Error(err))
			p.finish()
		}
	}
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) finish() {
	p.mu.Lock()
	p.busy--
	if p.busy == 0 && len(p.queue) == 0 {
		p.drained.Broadcast()
	}
	p.mu.Unlock()
}

// WaitForDrain blocks until the queue is empty and no task is running.
func (p *Pool) WaitForDrain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.busy > 0 || (len(p.queue) > 0 && !p.closed) {
		p.drained.Wait()
	}
}

// Pending reports the number of queued and running tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + p.busy
}

// Close drops every task that has not started and waits for the running
// ones to return. It returns how many tasks were dropped.
func (p *Pool) Close() (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, nil
	}
	p.closed = true
	dropped := len(p.queue)
	p.queue = nil
	p.drained.Broadcast()
	p.mu.Unlock()

	select {
	case p.ready <- struct{}{}:
	default:
	}
	<-p.done

	if dropped > 0 {
		logging.L().Debug("dropped queued tasks", zap.Int("count", dropped))
	}
	if err := p.workers.ReleaseTimeout(p.releaseTimeout); err != nil {
		return dropped, errors.Wrap(err, "release workers")
	}
	return dropped, nil
}
