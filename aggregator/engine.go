package aggregator

import (
	"sync/atomic"
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/stats"
)

// Engine drives one aggregator variant's receiver/processor/flusher tasks
// (§4.2). The receiver goroutine drains the input channel into a bounded
// internal queue so a blocked or slow fold never backs up the channel the
// upstream detector writes to; the processor+flusher goroutine dequeues
// flows (folding them into the variant's table, which serializes access
// internally) and, on every tick of window, snapshots and emits.
type Engine[E any] struct {
	queue chan *model.Flow

	observe func(*model.Flow)
	flush   func() []E
	out     chan<- E

	window      time.Duration
	sendTimeout time.Duration

	done    chan struct{}
	dropped uint64
}

// NewEngine wires a variant's Observe/Flush closures into an Engine.
func NewEngine[E any](queueSize int, window, sendTimeout time.Duration, observe func(*model.Flow), flush func() []E, out chan<- E) *Engine[E] {
	return &Engine[E]{
		queue:       make(chan *model.Flow, queueSize),
		observe:     observe,
		flush:       flush,
		out:         out,
		window:      window,
		sendTimeout: sendTimeout,
		done:        make(chan struct{}),
	}
}

// Start launches the receiver and processor/flusher goroutines, reading
// flows from in until Stop is called or in is closed.
func (e *Engine[E]) Start(in <-chan *model.Flow) {
	go e.receive(in)
	go e.run()
}

// Stop signals both goroutines to exit after a final flush.
func (e *Engine[E]) Stop() {
	close(e.done)
}

// Dropped reports how many emitted events were dropped on a send timeout.
func (e *Engine[E]) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

func (e *Engine[E]) receive(in <-chan *model.Flow) {
	for {
		select {
		case <-e.done:
			return
		case flow, ok := <-in:
			if !ok {
				return
			}
			select {
			case e.queue <- flow:
			case <-e.done:
				return
			}
		}
	}
}

func (e *Engine[E]) run() {
	ticker := time.NewTicker(e.window)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			e.flushNow()
			return
		case flow := <-e.queue:
			e.observe(flow)
		case <-ticker.C:
			e.flushNow()
		}
	}
}

func (e *Engine[E]) flushNow() {
	events := e.flush()
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		e.send(ev)
	}
	stats.Client.Count("aggregator.flushed", int64(len(events)), nil, 1)
}

func (e *Engine[E]) send(ev E) {
	if e.sendTimeout <= 0 {
		e.out <- ev
		return
	}
	select {
	case e.out <- ev:
	case <-time.After(e.sendTimeout):
		atomic.AddUint64(&e.dropped, 1)
		stats.Client.Count("aggregator.dropped", 1, nil, 1)
		log.Warnf("aggregator: dropped event after %s send timeout", e.sendTimeout)
	}
}
