package orchestrator

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of work handed to an executor.
type Task func(ctx context.Context)

// Executor runs submitted tasks. Wait blocks until every submitted task
// has finished; no task may be submitted after Wait.
type Executor interface {
	Submit(ctx context.Context, t Task) error
	Wait()
}

// ErrClosed is returned by Submit after Wait.
var ErrClosed = eris.New("orchestrator: executor closed")

// PoolExecutor runs tasks on a bounded number of goroutines. Submit blocks
// while the pool is full.
type PoolExecutor struct {
	g      errgroup.Group
	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool running at most size tasks at once.
func NewPool(size int) *PoolExecutor {
	p := &PoolExecutor{}
	p.g.SetLimit(max(size, 1))
	return p
}

// Submit implements Executor.
func (p *PoolExecutor) Submit(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	p.g.Go(func() error {
		t(ctx)
		return nil
	})
	return nil
}

// Wait implements Executor.
func (p *PoolExecutor) Wait() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	_ = p.g.Wait()
}

// SerialExecutor runs tasks one at a time in submission order on a single
// goroutine. Browser sessions run here.
type SerialExecutor struct {
	mu     sync.Mutex
	queue  []queued
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

type queued struct {
	ctx context.Context
	t   Task
}

// NewSerial starts a serial executor.
func NewSerial() *SerialExecutor {
	s := &SerialExecutor{wake: make(chan struct{}, 1), done: make(chan struct{})}
	go s.loop()
	return s
}

// Submit implements Executor. It never blocks.
func (s *SerialExecutor) Submit(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, queued{ctx: ctx, t: t})
	s.mu.Unlock()
	s.signal()
	return nil
}

// Wait implements Executor.
func (s *SerialExecutor) Wait() {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if !already {
		s.signal()
	}
	<-s.done
}

func (s *SerialExecutor) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *SerialExecutor) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.wake
			continue
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if next.ctx.Err() == nil {
			next.t(next.ctx)
		}
	}
}
