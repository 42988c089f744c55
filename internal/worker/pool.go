package worker

import (
	"context"
	"sync"
)

// Job is a unit of work executed by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job returns
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers. Stop is cooperative: jobs that
// already started run to completion, queued jobs are dropped and Submit
// refuses new work. Results are collected as jobs finish, so Submit never
// waits on a reader.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	collected  []Result
	collectEnd chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	stopCh     chan struct{}
	stopOnce   sync.Once
	queueOnce  sync.Once
	closeOnce  sync.Once
	mu         sync.Mutex
	dropped    int
}

// NewPool creates a pool whose jobs run under ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		collectEnd: make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
		stopCh:     make(chan struct{}),
	}
	go p.collect()
	return p
}

func (p *Pool) collect() {
	defer close(p.collectEnd)
	for result := range p.results {
		p.collected = append(p.collected, result)
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			if p.Stopped() {
				p.mu.Lock()
				p.dropped++
				p.mu.Unlock()
				continue
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns false when the pool is stopping.
func (p *Pool) Submit(job Job) bool {
	if p.Stopped() {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case <-p.stopCh:
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Stop asks the pool to finish in-flight jobs and drop the rest.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Stopped reports whether Stop was called.
func (p *Pool) Stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// Done is closed when Stop is called.
func (p *Pool) Done() <-chan struct{} {
	return p.stopCh
}

// Dropped returns how many queued jobs were discarded after Stop.
func (p *Pool) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Wait closes the queue, waits for the workers and returns all results
func (p *Pool) Wait() []Result {
	p.queueOnce.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	p.closeResults()
	<-p.collectEnd
	return p.collected
}

// Shutdown cancels running jobs and returns once the workers exit
func (p *Pool) Shutdown() {
	p.Stop()
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
