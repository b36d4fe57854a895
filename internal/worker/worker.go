package worker

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
)

// ErrPoolStopped 工作池已关闭
var ErrPoolStopped = errors.New("worker pool stopped")

// call 一次待执行的同步调用
type call struct {
	fn   func()
	done chan struct{}
}

// Pool 有界协程池。编解码等 CPU 密集工作经由它执行，
// 避免单个大转换饿死其他请求。
type Pool struct {
	workers int
	queue   chan *call
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewPool 创建工作池
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		queue:   make(chan *call, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 启动工作池
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.started = true
	log.Printf("Worker pool started with %d workers", p.workers)
}

// Stop 停止工作池
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()

	log.Println("Worker pool stopped")
}

// Do 在池上执行 fn 并等待完成。ctx 取消时提前返回；
// 已开始执行的 fn 不会被中断，需由 fn 自行观察 ctx。
func (p *Pool) Do(ctx context.Context, fn func()) error {
	c := &call{
		fn:   fn,
		done: make(chan struct{}),
	}

	select {
	case p.queue <- c:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// worker 工作协程
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case c := <-p.queue:
			p.execute(c)
		case <-p.ctx.Done():
			return
		}
	}
}

// execute 执行调用并捕获 panic
func (p *Pool) execute(c *call) {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic recovered in worker task: %v\n%s", r, debugStack())
		}
	}()
	c.fn()
}

func debugStack() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
