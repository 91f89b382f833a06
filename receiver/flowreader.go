package receiver

import (
	"context"
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/stats"
)

// FlowReader is the C1 receive loop for the four raw-flow input channels
// that feed the aggregators directly (blacklist-ip-flow, blacklist-url-flow,
// portscan-flow, host-scan-flow) rather than the classifier queue. It
// shares Reader's cancellation, malformed-record, renegotiation and
// queue-full-retry semantics against a *model.Flow-typed destination.
type FlowReader struct {
	Channel model.Channel
	Source  Source
	Queue   chan<- *model.Flow
}

// NewFlowReader returns a FlowReader for channel.
func NewFlowReader(channel model.Channel, source Source, queue chan<- *model.Flow) *FlowReader {
	return &FlowReader{Channel: channel, Source: source, Queue: queue}
}

// Run drains Source until ctx is cancelled or end-of-stream is reported.
func (r *FlowReader) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := r.Source.Receive(ctx)
		if err != nil {
			log.Warnf("flowreader[%s]: discarding malformed record: %s", r.Channel, err)
			stats.Client.Count("receiver.malformed", 1, []string{"channel:" + r.Channel.String()}, 1)
			continue
		}

		switch res.Kind {
		case ResultEndOfStream:
			log.Infof("flowreader[%s]: end of stream, stopping this reader only", r.Channel)
			return
		case ResultRenegotiate, ResultMessage:
			flow, ok := res.Message.(*model.Flow)
			if !ok {
				log.Warnf("flowreader[%s]: dropping message of unexpected type", r.Channel)
				continue
			}
			if err := flow.Normalize(); err != nil {
				log.Warnf("flowreader[%s]: discarding malformed record: %s", r.Channel, err)
				stats.Client.Count("receiver.malformed", 1, []string{"channel:" + r.Channel.String()}, 1)
				continue
			}
			r.enqueue(ctx, flow)
		}
	}
}

func (r *FlowReader) enqueue(ctx context.Context, flow *model.Flow) {
	for {
		select {
		case r.Queue <- flow:
			return
		case <-ctx.Done():
			return
		case <-time.After(queueRetryInterval):
			log.Debugf("flowreader[%s]: queue full, retrying", r.Channel)
		}
	}
}
