package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/dbgeval/eval"
)

// ErrStopped is returned by Do once the pool has been stopped.
var ErrStopped = errors.New("server: worker pool stopped")

// workRequest represents a unit of work to be executed by a worker.
type workRequest struct {
	fn   func(*eval.Evaluator) interface{}
	done chan workResult
}

// workResult holds the return value from a worker call.
type workResult struct {
	value interface{}
	err   error
}

// Pool runs evaluations on a fixed number of worker goroutines, bounding
// how many expressions read the target at once.
type Pool struct {
	ev       *eval.Evaluator
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool creates a Pool of n workers sharing ev and starts them.
func NewPool(ev *eval.Evaluator, n int) *Pool {
	if n < 1 {
		n = 1
	}
	p := &Pool{
		ev:       ev,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.loop()
	}
	return p
}

// loop processes requests until the pool stops.
func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			req.done <- p.execute(req.fn)
		case <-p.quit:
			return
		}
	}
}

// execute runs a function on the evaluator, recovering from panics.
func (p *Pool) execute(fn func(*eval.Evaluator) interface{}) workResult {
	var result workResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("worker panic: %v", r)
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(p.ev)
	}()
	return result
}

// Do submits fn to a worker and blocks until it completes or ctx is
// done. Returns the result and any error (including panics).
func (p *Pool) Do(ctx context.Context, fn func(*eval.Evaluator) interface{}) (interface{}, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case <-p.quit:
		return nil, ErrStopped
	default:
	}
	select {
	case p.requests <- req:
	case <-p.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-p.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the workers and waits for them to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Evaluator returns the shared evaluator.
func (p *Pool) Evaluator() *eval.Evaluator {
	return p.ev
}
