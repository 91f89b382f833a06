package model

import "time"

// ScanKind distinguishes the two scan-detection aggregator variants (§2
// C2, "per-detector windowed aggregators").
type ScanKind string

const (
	// ScanKindPort marks a record produced by the portscan aggregator: one
	// source probing many ports, either across many destinations
	// (block-scan mode) or against a single destination.
	ScanKindPort ScanKind = "portscan"
	// ScanKindHost marks a record produced by the host-scan aggregator: one
	// source probing the same destination port across many destinations.
	ScanKindHost ScanKind = "hostscan"
)

// ScanEvent is the compacted output of the portscan/host-scan aggregators,
// sharing the aggregator-out output stream with AggregatedEvent (§5
// "three long-lived output streams").
type ScanEvent struct {
	Type ScanKind `json:"type"`

	SourceIP string `json:"source_ip"`
	// DstIP is populated only when the key fixes a single destination:
	// portscan events folded in non-block mode.
	DstIP string `json:"dst_ip,omitempty"`
	// DstIPs is populated for host-scan events and block-mode portscan
	// events: the set of distinct destinations the source touched.
	DstIPs []string `json:"dst_ips,omitempty"`
	// DstPort is populated for host-scan events: the single port scanned
	// across every destination in DstIPs.
	DstPort uint16 `json:"dst_port,omitempty"`
	// DstPorts is populated for portscan events: the set of distinct ports
	// the source touched on DstIP (or across DstIPs in block-scan mode).
	DstPorts []uint16 `json:"dst_ports,omitempty"`

	Protocol uint8 `json:"protocol"`

	TsFirst time.Time `json:"ts_first"`
	TsLast  time.Time `json:"ts_last"`

	Bytes   uint64 `json:"bytes"`
	Packets uint64 `json:"packets"`
	Flows   uint64 `json:"flows"`
}
