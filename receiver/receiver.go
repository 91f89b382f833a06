// Package receiver implements the stream receiver set (C1): one
// independent task per input channel, decoding records and pushing them
// onto a shared bounded queue (§4.1).
package receiver

import (
	"context"
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/stats"
)

// ResultKind distinguishes the outcomes a Source.Receive call can return,
// replacing the exceptions-as-control-flow idiom the source style uses
// (§9: "explicit sum-type return from the receive call").
type ResultKind int

const (
	// ResultMessage carries one successfully decoded record.
	ResultMessage ResultKind = iota
	// ResultRenegotiate signals the upstream schema changed; Message still
	// carries the re-delivered record decoded under the new template, so no
	// record is dropped (§4.1, §7 "Schema renegotiation").
	ResultRenegotiate
	// ResultEndOfStream signals a terminal end-of-stream token: this
	// reader — and only this reader — should stop.
	ResultEndOfStream
)

// Result is one outcome of a Source.Receive call.
type Result struct {
	Kind    ResultKind
	Message interface{}
}

// Source is the per-channel decoder collaborator. Implementations own
// their channel's wire format and decoder template; Receive blocks until
// the next record, a renegotiation, end-of-stream, or a malformed-record
// error (§4.1, §7 "Malformed record").
type Source interface {
	Receive(ctx context.Context) (Result, error)
}

// QueueItem is one decoded record tagged with the channel it arrived on,
// as pushed onto the shared bounded queue consumed by the classifier.
type QueueItem struct {
	Channel model.Channel
	Message interface{}
}

// queueRetryInterval bounds how long Reader waits before retrying a full
// queue (§4.1: "queue full backs the reader off ... blocks briefly then
// retries").
const queueRetryInterval = 100 * time.Millisecond

// Reader is C1's one-task-per-channel loop.
type Reader struct {
	Channel model.Channel
	Source  Source
	Queue   chan<- QueueItem
}

// NewReader returns a Reader for channel, decoding via source and
// enqueuing onto queue.
func NewReader(channel model.Channel, source Source, queue chan<- QueueItem) *Reader {
	return &Reader{Channel: channel, Source: source, Queue: queue}
}

// Run drains Source until ctx is cancelled (the process-wide stop flag,
// §5 "Cancellation") or the source reports end-of-stream. Cancellation is
// cooperative: the loop checks ctx between receives, never mid-decode.
func (r *Reader) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := r.Source.Receive(ctx)
		if err != nil {
			log.Warnf("receiver[%s]: discarding malformed record: %s", r.Channel, err)
			stats.Client.Count("receiver.malformed", 1, []string{"channel:" + r.Channel.String()}, 1)
			continue
		}

		switch res.Kind {
		case ResultEndOfStream:
			log.Infof("receiver[%s]: end of stream, stopping this reader only", r.Channel)
			return
		case ResultRenegotiate:
			log.Infof("receiver[%s]: schema renegotiated, re-delivering record under new template", r.Channel)
			r.enqueue(ctx, res.Message)
		case ResultMessage:
			r.enqueue(ctx, res.Message)
		}
	}
}

func (r *Reader) enqueue(ctx context.Context, msg interface{}) {
	item := QueueItem{Channel: r.Channel, Message: msg}
	for {
		select {
		case r.Queue <- item:
			return
		case <-ctx.Done():
			return
		case <-time.After(queueRetryInterval):
			log.Debugf("receiver[%s]: queue full, retrying", r.Channel)
		}
	}
}
