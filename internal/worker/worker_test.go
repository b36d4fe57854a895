package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoRunsFunction(t *testing.T) {
	pool := NewPool(2, 4)
	pool.Start()
	defer pool.Stop()

	var ran int32
	err := pool.Do(context.Background(), func() {
		atomic.StoreInt32(&ran, 1)
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestDoManyConcurrent(t *testing.T) {
	pool := NewPool(4, 64)
	pool.Start()
	defer pool.Stop()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), func() {
				atomic.AddInt64(&counter, 1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), atomic.LoadInt64(&counter))
}

func TestDoContextCancelledWhileQueued(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start()
	defer pool.Stop()

	block := make(chan struct{})
	defer close(block)

	// 占住唯一的 worker 和队列
	go pool.Do(context.Background(), func() { <-block })
	go pool.Do(context.Background(), func() {})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoAfterStop(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Start()
	pool.Stop()

	err := pool.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestDoRecoversPanic(t *testing.T) {
	pool := NewPool(1, 2)
	pool.Start()
	defer pool.Stop()

	err := pool.Do(context.Background(), func() {
		panic("boom")
	})
	assert.NoError(t, err)

	// 池在 panic 之后仍然可用
	var ran int32
	err = pool.Do(context.Background(), func() {
		atomic.StoreInt32(&ran, 1)
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}
