package biz

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"
)

// PassFunc is one filter pass.
type PassFunc func(ctx context.Context) error

// pass is a scheduled run; done closes when it finishes.
type pass struct {
	done chan struct{}
}

// PassRunner runs passes one at a time. While a pass runs, further
// triggers coalesce into a single queued pass that starts when it ends.
type PassRunner struct {
	ctx      context.Context
	name     string
	fn       PassFunc
	notifier Notifier
	log      *log.Helper

	mu      sync.Mutex
	running *pass
	queued  *pass
}

// NewPassRunner creates a runner whose passes run on ctx.
func NewPassRunner(ctx context.Context, name string, fn PassFunc, notifier Notifier, logger log.Logger) *PassRunner {
	return &PassRunner{
		ctx:      ctx,
		name:     name,
		fn:       fn,
		notifier: notifier,
		log:      log.NewHelper(log.With(logger, "module", "biz/runner", "runner", name)),
	}
}

// Trigger schedules a pass and returns a channel closed when a pass that
// started after this call has finished.
func (r *PassRunner) Trigger() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running == nil {
		r.running = &pass{done: make(chan struct{})}
		go r.loop(r.running)
		return r.running.done
	}
	if r.queued == nil {
		r.queued = &pass{done: make(chan struct{})}
	}
	return r.queued.done
}

// Idle reports whether no pass is running or queued.
func (r *PassRunner) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running == nil
}

func (r *PassRunner) loop(p *pass) {
	for p != nil {
		r.exec()
		close(p.done)

		r.mu.Lock()
		p = r.queued
		r.queued = nil
		r.running = p
		r.mu.Unlock()
	}
}

func (r *PassRunner) exec() {
	err := r.safeRun()
	if err == nil {
		return
	}
	r.log.Errorf("%s pass failed: %v", r.name, err)
	if r.notifier != nil {
		r.notifier.Notify(r.ctx, Notification{
			Title:   fmt.Sprintf("Filter %s error", r.name),
			Message: userMessage(err, "unknown error"),
		})
	}
}

func (r *PassRunner) safeRun() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = ErrPassFailed.WithCause(fmt.Errorf("panic: %v", rec))
		}
	}()
	return r.fn(r.ctx)
}
