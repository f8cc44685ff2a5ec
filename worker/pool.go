package worker

import (
	"context"
	"log"
	"sync"

	"screen-context-bridge/prompt"
)

// AnalysisFunc performs one analysis run; supplied by the bridge.
type AnalysisFunc func(ctx context.Context) prompt.AnalysisResponse

// ResultCallback is invoked on completion from a worker goroutine. Callers
// that need loop affinity should post back into their own loop.
type ResultCallback func(resp prompt.AnalysisResponse)

// Pool runs analysis jobs on a fixed set of workers with a 1-slot input
// queue. A submission while the slot is occupied is dropped: an analysis
// already in flight makes a second concurrent one pointless, and the LLM
// call is the slowest thing in the system.
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup

	closeOnce sync.Once
}

type job struct {
	ctx context.Context
	run AnalysisFunc
	cb  ResultCallback
}

// New creates a pool with n workers (minimum 1). Queue is 1 slot.
func New(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(n)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				resp := j.run(j.ctx)
				log.Printf("Worker: analysis completed, type=%s", resp.Type)
				if j.cb != nil {
					j.cb(resp)
				}
			}
		}()
	}
}

// Submit enqueues an analysis job if the slot is free. Returns false if
// dropped.
func (p *Pool) Submit(ctx context.Context, run AnalysisFunc, cb ResultCallback) bool {
	if run == nil {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, run: run, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining queued work. Safe to call twice.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
