// Package scheduler implements the timer/scheduler (C9): a single
// repeating ticker driving the adaptive controller's periodic pass
// (derive → export → prune → publish), cancellable on shutdown.
package scheduler

import (
	"time"

	log "github.com/cihub/seelog"
)

// Scheduler fires callback every interval. Because the ticker and the
// callback invocation share one goroutine, and time.Ticker only ever
// buffers a single pending tick, a callback that overruns interval simply
// absorbs the next tick instead of piling up — "late firings do not
// accumulate: one outstanding callback at most" (§4.9) falls out of this
// structure for free.
type Scheduler struct {
	interval time.Duration
	callback func(now time.Time)
	done     chan struct{}
}

// New returns a Scheduler that has not yet been started.
func New(interval time.Duration, callback func(now time.Time)) *Scheduler {
	return &Scheduler{
		interval: interval,
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start launches the ticking goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop cancels the ticker; it does not wait for an in-flight callback to
// finish, matching §5's "the timer is cancelled explicitly" (the final
// drain pass, if any, is the caller's responsibility).
func (s *Scheduler) Stop() {
	close(s.done)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("scheduler: callback panicked, continuing: %v", r)
		}
	}()
	s.callback(now)
}
