package receiver

import (
	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/scenario"
)

// Dispatch converts one dequeued QueueItem into either a scenario.Record
// (channels #1 aggregated-blacklist and #2 DNS-detection, routed to
// Controller.Observe) or a *model.AdaptiveRecord (channel #3
// adaptive-re-detection, routed to Controller.IngestSatellite). Exactly
// one of the two return values is non-zero; a message whose concrete type
// does not match its channel is logged and dropped as malformed.
func Dispatch(item QueueItem) (scenario.Record, *model.AdaptiveRecord) {
	switch item.Channel {
	case model.ChannelAggregatedIP, model.ChannelAggregatedURL:
		if ev, ok := item.Message.(*model.AggregatedEvent); ok {
			return scenario.Record{Channel: item.Channel, Aggregated: ev}, nil
		}
	case model.ChannelDNS:
		if rec, ok := item.Message.(*model.DNSRecord); ok {
			return scenario.Record{Channel: item.Channel, DNS: rec}, nil
		}
	case model.ChannelAdaptive:
		if rec, ok := item.Message.(*model.AdaptiveRecord); ok {
			return scenario.Record{}, rec
		}
	}
	log.Warnf("receiver: dropping message of unexpected type on channel %s", item.Channel)
	return scenario.Record{}, nil
}
