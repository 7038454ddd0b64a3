// Package clock schedules timer callbacks onto a single owner goroutine.
//
// Every periodic activity of a practice session (loop polling, metronome
// clicks, autoscroll frames) is a Timer created from a Clock. Callbacks never
// run concurrently with each other or with the code that owns the Clock, so
// session state needs no locking.
package clock

import (
	"context"
	"time"
)

// Clock creates timers whose callbacks run on the clock owner's goroutine.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback. Stop reports whether the call prevented the
// callback from running.
type Timer interface {
	Stop() bool
}

// Poster delivers a function to the owner goroutine for execution.
type Poster func(f func())

// Real is a Clock backed by the runtime timers. Fired timers are handed to
// Post instead of running on the timer goroutine.
type Real struct {
	Post Poster
}

// NewReal returns a real clock that delivers callbacks through post.
func NewReal(post Poster) *Real {
	return &Real{Post: post}
}

func (c *Real) Now() time.Time { return time.Now() }

func (c *Real) AfterFunc(d time.Duration, f func()) Timer {
	t := &realTimer{}
	t.timer = time.AfterFunc(d, func() {
		c.Post(func() {
			// Stop may have run on the owner goroutine after the runtime
			// timer fired but before this closure was dequeued.
			if t.stopped {
				return
			}
			t.stopped = true
			f()
		})
	})
	return t
}

// realTimer fields other than timer are only touched on the owner goroutine.
type realTimer struct {
	timer   *time.Timer
	stopped bool
}

func (t *realTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// Loop is a minimal owner goroutine for headless use: Post queues work and Run
// executes it in order until the context ends.
type Loop struct {
	tasks chan func()
}

// NewLoop returns a loop with the given queue capacity.
func NewLoop(capacity int) *Loop {
	return &Loop{tasks: make(chan func(), capacity)}
}

// Post queues f. It blocks when the queue is full.
func (l *Loop) Post(f func()) {
	l.tasks <- f
}

// Run executes posted functions until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-l.tasks:
			f()
		}
	}
}

// Do runs f on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	select {
	case l.tasks <- func() { f(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
