package threadpool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/webaudio/internal/spsc"
	"pipelined.dev/webaudio/threadpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewInvalid(t *testing.T) {
	tests := []struct {
		description string
		cfg         threadpool.Config
	}{
		{
			description: "no workers",
			cfg:         threadpool.Config{Workers: 0, LoadBalancerQueueSize: 1, WorkerQueueSize: 1},
		},
		{
			description: "no balancer queue",
			cfg:         threadpool.Config{Workers: 1, LoadBalancerQueueSize: 0, WorkerQueueSize: 1},
		},
		{
			description: "no worker queue",
			cfg:         threadpool.Config{Workers: 1, LoadBalancerQueueSize: 1, WorkerQueueSize: 0},
		},
	}
	for _, test := range tests {
		_, err := threadpool.New(test.cfg)
		assert.Error(t, err, test.description)
	}
}

func TestAllTasksExecuted(t *testing.T) {
	tests := []struct {
		description string
		cfg         threadpool.Config
		tasks       int
	}{
		{
			description: "default",
			cfg:         threadpool.DefaultConfig(),
			tasks:       1000,
		},
		{
			description: "single worker tiny queues",
			cfg: threadpool.Config{
				Workers:               1,
				LoadBalancerQueueSize: 1,
				WorkerQueueSize:       1,
			},
			tasks: 500,
		},
		{
			description: "yield",
			cfg: threadpool.Config{
				Workers:               3,
				LoadBalancerQueueSize: 2,
				WorkerQueueSize:       2,
				Wait:                  spsc.Yield,
			},
			tasks: 500,
		},
	}
	for _, test := range tests {
		p, err := threadpool.New(test.cfg)
		require.NoError(t, err, test.description)
		var executed atomic.Int64
		for i := 0; i < test.tasks; i++ {
			err := p.Schedule(func() {
				executed.Add(1)
			})
			require.NoError(t, err, test.description)
		}
		p.Close()
		assert.Equal(t, int64(test.tasks), executed.Load(), test.description)
	}
}

// Slow tasks keep the queues full when Close is called, none of accepted
// tasks must be dropped.
func TestCloseWithQueuedTasks(t *testing.T) {
	p, err := threadpool.New(threadpool.Config{
		Workers:               2,
		LoadBalancerQueueSize: 4,
		WorkerQueueSize:       2,
	})
	require.NoError(t, err)

	tasks := 20
	var executed atomic.Int64
	for i := 0; i < tasks; i++ {
		require.NoError(t, p.Schedule(func() {
			time.Sleep(time.Millisecond)
			executed.Add(1)
		}))
	}
	p.Close()
	assert.Equal(t, int64(tasks), executed.Load())
}

func TestRoundRobin(t *testing.T) {
	workers := 4
	p, err := threadpool.New(threadpool.Config{
		Workers:               workers,
		LoadBalancerQueueSize: 8,
		WorkerQueueSize:       8,
	})
	require.NoError(t, err)

	// every worker is blocked by its first task, so the first tasks are
	// guaranteed to run on distinct goroutines.
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, p.Schedule(func() {
			started.Done()
			<-release
		}))
	}
	started.Wait()
	close(release)
	p.Close()
}

func TestScheduleAfterClose(t *testing.T) {
	p, err := threadpool.New(threadpool.DefaultConfig())
	require.NoError(t, err)
	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Schedule(func() {}), threadpool.ErrClosed)
}
