/*
Package threadpool offloads non real-time work from audio and control
goroutines.

The pool consists of a load balancer goroutine and a number of workers.
Every goroutine owns a bounded SPSC channel. Scheduled tasks are sent to
the load balancer which forwards them to workers in round-robin order.
Shutdown is ordered: the stop event is propagated by the load balancer to
every worker, then the load balancer and workers are joined. Every task
accepted before Close is executed before Close returns.

Pool is not safe for concurrent use: Schedule and Close must be called
from a single goroutine.
*/
package threadpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"pipelined.dev/webaudio/internal/spsc"
)

// ErrClosed is returned when task is scheduled after Close.
var ErrClosed = errors.New("thread pool is closed")

type (
	// Config defines size of the pool.
	Config struct {
		// Workers is a number of worker goroutines.
		Workers int
		// LoadBalancerQueueSize is a capacity of load balancer channel.
		LoadBalancerQueueSize int
		// WorkerQueueSize is a capacity of every worker channel.
		WorkerQueueSize int
		// Wait defines how full and empty channels are awaited.
		Wait spsc.WaitStrategy
	}

	// Pool executes tasks on a fixed set of goroutines.
	Pool struct {
		balancer *spsc.Sender[event]
		closed   atomic.Bool
		wg       sync.WaitGroup // load balancer.
		workers  sync.WaitGroup
	}

	// event is either a task or stop signal.
	event struct {
		task func()
		stop bool
	}
)

// DefaultConfig returns the default pool size.
func DefaultConfig() Config {
	return Config{
		Workers:               4,
		LoadBalancerQueueSize: 32,
		WorkerQueueSize:       32,
		Wait:                  spsc.Park,
	}
}

// New creates a pool and starts all goroutines.
func New(cfg Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("invalid number of workers: %d", cfg.Workers)
	}
	if cfg.LoadBalancerQueueSize <= 0 || cfg.WorkerQueueSize <= 0 {
		return nil, fmt.Errorf("invalid queue size: balancer %d worker %d", cfg.LoadBalancerQueueSize, cfg.WorkerQueueSize)
	}
	sender, receiver := spsc.New[event](cfg.LoadBalancerQueueSize, cfg.Wait)
	p := Pool{
		balancer: sender,
	}
	workers := make([]*spsc.Sender[event], cfg.Workers)
	p.workers.Add(cfg.Workers)
	for i := range workers {
		s, r := spsc.New[event](cfg.WorkerQueueSize, cfg.Wait)
		workers[i] = s
		go p.work(r)
	}
	p.wg.Add(1)
	go p.balance(receiver, workers)
	return &p, nil
}

// Schedule sends the task to execution. It blocks only if load balancer
// channel is full. Task must not panic and must eventually return,
// otherwise the pool will never shut down.
func (p *Pool) Schedule(task func()) error {
	if p.closed.Load() {
		return ErrClosed
	}
	p.balancer.Send(event{task: task})
	return nil
}

// Close stops the pool and waits until all accepted tasks are executed.
// Consequent calls are no-op.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.balancer.Send(event{stop: true})
	p.wg.Wait()
	p.workers.Wait()
}

func (p *Pool) work(r *spsc.Receiver[event]) {
	defer p.workers.Done()
	for {
		e := r.Receive()
		if e.stop {
			return
		}
		e.task()
	}
}

func (p *Pool) balance(r *spsc.Receiver[event], workers []*spsc.Sender[event]) {
	defer p.wg.Done()
	next := 0
	for {
		e := r.Receive()
		if e.stop {
			for _, w := range workers {
				w.Send(e)
			}
			return
		}
		workers[next].Send(e)
		next = (next + 1) % len(workers)
	}
}
