package model

import (
	"net"
	"time"
)

// AggregatedKind distinguishes the two pre-aggregated blacklist record
// shapes carried by the "Aggregated blacklist" channel (§6).
type AggregatedKind string

const (
	// AggregatedKindIP marks a record produced by the blacklist-IP aggregator.
	AggregatedKindIP AggregatedKind = "ip"
	// AggregatedKindURL marks a record produced by the blacklist-URL aggregator.
	AggregatedKindURL AggregatedKind = "url"
)

// AggregatedEvent is both the output of the blacklist-IP/URL aggregators
// (C2) and the JSON wire shape of the "Aggregated blacklist" input channel
// to the adaptive controller (§6, input #1). Field names follow the
// lowercase/underscore wire convention used by the JSON channel.
type AggregatedEvent struct {
	Type AggregatedKind `json:"type"`

	// Source is the blacklisted endpoint: an IP for AggregatedKindIP, a
	// normalized host for AggregatedKindURL.
	Source string `json:"source"`
	// URLPath is only set for AggregatedKindURL events.
	URLPath string `json:"url_path,omitempty"`
	// DstIP is only set for AggregatedKindURL events (the destination the
	// blacklisted URL was fetched from).
	DstIP string `json:"dst_ip,omitempty"`

	Targets      []string `json:"targets"`
	SourcePorts  []uint16 `json:"source_ports"`
	Protocol     uint8    `json:"protocol"`
	BlacklistID  uint64   `json:"blacklist_id"`
	AggWinMinutes float64 `json:"agg_win_minutes"`

	TsFirst time.Time `json:"ts_first"`
	TsLast  time.Time `json:"ts_last"`

	SrcSentBytes   uint64 `json:"src_sent_bytes"`
	SrcSentPackets uint64 `json:"src_sent_packets"`
	SrcSentFlows   uint64 `json:"src_sent_flows"`
	TgtSentBytes   uint64 `json:"tgt_sent_bytes"`
	TgtSentPackets uint64 `json:"tgt_sent_packets"`
	TgtSentFlows   uint64 `json:"tgt_sent_flows"`
}

// DNSRecord is the DNS-enriched flow record on input channel #2 (§6),
// JSON encoded on the wire. Field names mirror the wire schema listed in
// the spec.
type DNSRecord struct {
	DstIP net.IP `json:"dst_ip"`
	SrcIP net.IP `json:"src_ip"`

	Bytes     uint64    `json:"bytes"`
	TimeFirst time.Time `json:"time_first"`
	TimeLast  time.Time `json:"time_last"`
	Packets   uint32    `json:"packets"`
	Protocol  uint8     `json:"protocol"`
	DstPort   uint16    `json:"dst_port"`
	SrcPort   uint16    `json:"src_port"`

	DNSID      uint16 `json:"dns_id"`
	DNSAnswers uint16 `json:"dns_answers"`
	DNSName    string `json:"dns_name"`
	DNSQType   uint16 `json:"dns_qtype"`
	DNSRLength uint16 `json:"dns_rlength"`
	DNSRCode   uint8  `json:"dns_rcode"`
	DNSRData   []byte `json:"dns_rdata,omitempty"`
	DNSDo      uint8  `json:"dns_do"`
	DNSClass   uint16 `json:"dns_class"`
	DNSPSize   uint16 `json:"dns_psize"`
	DNSRRTTL   uint32 `json:"dns_rr_ttl"`

	Blacklist uint64 `json:"blacklist"`
}

// AdaptiveRecord is the satellite re-detection record on input channel #3
// (§6), JSON encoded: a DNSRecord-shaped flow plus per-direction
// blacklist bitmaps and the comma-separated scenario UUID list that
// correlates it back to one or more scenario instances.
type AdaptiveRecord struct {
	DstIP net.IP `json:"dst_ip"`
	SrcIP net.IP `json:"src_ip"`

	Bytes        uint64 `json:"bytes"`
	DstBlacklist uint64 `json:"dst_blacklist"`
	SrcBlacklist uint64 `json:"src_blacklist"`

	TimeFirst time.Time `json:"time_first"`
	TimeLast  time.Time `json:"time_last"`
	Packets   uint32    `json:"packets"`
	DstPort   uint16    `json:"dst_port"`
	SrcPort   uint16    `json:"src_port"`
	Protocol  uint8     `json:"protocol"`

	// AdaptiveIDs is the raw comma-separated UUID list as received on the
	// wire; use AdaptiveIDList to split it.
	AdaptiveIDs string `json:"adaptive_ids"`
}

// AdaptiveIDList splits the comma-separated AdaptiveIDs field into its
// component scenario-instance UUID strings.
func (a *AdaptiveRecord) AdaptiveIDList() []string {
	if a.AdaptiveIDs == "" {
		return nil
	}
	var ids []string
	start := 0
	for i := 0; i <= len(a.AdaptiveIDs); i++ {
		if i == len(a.AdaptiveIDs) || a.AdaptiveIDs[i] == ',' {
			if i > start {
				ids = append(ids, a.AdaptiveIDs[start:i])
			}
			start = i + 1
		}
	}
	return ids
}
