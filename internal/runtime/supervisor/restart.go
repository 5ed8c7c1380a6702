package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	logx "editbot/pkg/logx"
)

// A run lasting this long resets the backoff to its minimum.
const stableRun = 30 * time.Second

var errExited = errors.New("exited")

type RestartOption func(*restartPolicy)

type restartPolicy struct {
	min, max      time.Duration
	stopWhenClean bool
	publishErr    bool
}

func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(p *restartPolicy) {
		if min > 0 {
			p.min = min
		}
		if max > 0 {
			p.max = max
		}
	}
}

// WithPublishFirstError records the first failure as the supervisor Err
// while the task keeps restarting.
func WithPublishFirstError(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.publishErr = enabled }
}

// WithStopOnCleanExit ends the task when fn returns nil. Default true; with
// false a clean return is restarted like a failure.
func WithStopOnCleanExit(enabled bool) RestartOption {
	return func(p *restartPolicy) { p.stopWhenClean = enabled }
}

// next returns the jittered wait for cur and the following backoff.
func (p restartPolicy) next(cur time.Duration) (wait, following time.Duration) {
	wait = min(cur, p.max)
	if j := int64(wait) / 5; j > 0 {
		wait += time.Duration(rand.Int64N(j + 1))
	}
	return wait, min(cur*2, p.max)
}

// GoRestart runs fn as task name and restarts it after an error or panic
// with jittered exponential backoff, until the context is cancelled.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	p := restartPolicy{min: 250 * time.Millisecond, max: 30 * time.Second, stopWhenClean: true}
	for _, o := range opts {
		o(&p)
	}
	p.max = max(p.max, p.min)

	st := s.tasks.get(name)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		backoff := p.min
		for runs := 0; s.ctx.Err() == nil; runs++ {
			startedAt := st.begin(runs > 0)
			err := s.call(st, fn)
			if s.ctx.Err() != nil || errors.Is(err, context.Canceled) {
				st.end(nil)
				return
			}
			if err == nil {
				if p.stopWhenClean {
					st.end(nil)
					return
				}
				err = errExited
			}
			err = fmt.Errorf("%s: %w", name, err)
			st.end(err)
			if p.publishErr {
				s.record(err)
			}

			if time.Since(startedAt) >= stableRun {
				backoff = p.min
			}
			var wait time.Duration
			wait, backoff = p.next(backoff)
			s.log.Warn("task restarting", logx.String("task", name), logx.Duration("backoff", wait), logx.Err(err))

			t := time.NewTimer(wait)
			select {
			case <-s.ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}()
}

// GoRestart0 is GoRestart for functions without an error result.
func (s *Supervisor) GoRestart0(name string, fn func(ctx context.Context), opts ...RestartOption) {
	if fn == nil {
		return
	}
	s.GoRestart(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}, opts...)
}
