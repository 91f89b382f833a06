// Package writer drains the three long-lived output streams (reporter,
// evidence, aggregator-out) onto their JSON sinks. It keeps the teacher's
// buffer-ticker-flush shape from trace_writer.go (Start/Stop, a periodic
// flush ticker racing the input channel, flush-on-shutdown, stats
// counters) and drops what that file needed only for talking to the
// Datadog trace-ingest API: protobuf payload framing, gzip, HTTP
// retries/multi-endpoint fan-out. None of that has a home here — the
// core's output streams are local JSON sinks, not a downstream API (the
// spec's Non-goals explicitly put MISP/IDEA/HTTP reporting out of scope).
package writer

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/stats"
)

// StreamWriter buffers JSON-marshalable records received on In and
// flushes them, one per line, to Out on a ticker.
type StreamWriter struct {
	name        string
	in          <-chan interface{}
	out         io.Writer
	flushPeriod time.Duration

	mu  sync.Mutex
	buf [][]byte

	done chan struct{}
	wg   sync.WaitGroup
}

// NewStreamWriter returns a writer not yet started. name tags its stats
// counters (e.g. "writer.reporter", "writer.evidence").
func NewStreamWriter(name string, in <-chan interface{}, out io.Writer, flushPeriod time.Duration) *StreamWriter {
	return &StreamWriter{
		name:        name,
		in:          in,
		out:         out,
		flushPeriod: flushPeriod,
		done:        make(chan struct{}),
	}
}

// Start launches the writer's goroutine.
func (w *StreamWriter) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop signals shutdown and waits for the final flush to complete.
func (w *StreamWriter) Stop() {
	close(w.done)
	w.wg.Wait()
}

func (w *StreamWriter) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-w.in:
			if !ok {
				w.flush()
				return
			}
			w.append(rec)
		case <-ticker.C:
			w.flush()
		case <-w.done:
			log.Infof("%s: exiting, flushing all remaining records", w.name)
			w.flush()
			return
		}
	}
}

func (w *StreamWriter) append(rec interface{}) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Errorf("%s: failed to serialize record, dropping: %s", w.name, err)
		stats.Client.Count(w.name+".marshal_errors", 1, nil, 1)
		return
	}
	w.mu.Lock()
	w.buf = append(w.buf, data)
	w.mu.Unlock()
}

func (w *StreamWriter) flush() {
	w.mu.Lock()
	buf := w.buf
	w.buf = nil
	w.mu.Unlock()

	if len(buf) == 0 {
		return
	}
	for _, line := range buf {
		if _, err := w.out.Write(line); err != nil {
			log.Errorf("%s: write failed, dropping %d buffered records: %s", w.name, len(buf), err)
			stats.Client.Count(w.name+".write_errors", 1, nil, 1)
			return
		}
		w.out.Write([]byte("\n"))
	}
	log.Debugf("%s: flushed %d records", w.name, len(buf))
	stats.Client.Count(w.name+".flushed", int64(len(buf)), nil, 1)
}
