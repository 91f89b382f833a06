package aggregator

import (
	"time"

	"github.com/CESNET/Nemea-Detectors/model"
)

// HostscanKey is the host-scan aggregator fold key (§4.2): `(src_ip,
// dst_port)` — one source probing the same port across many destinations.
type HostscanKey struct {
	SrcIP   string
	DstPort uint16
}

type hostscanAccumulator struct {
	srcIP    string
	dstPort  uint16
	dstIPs   map[string]bool
	protocol uint8

	tsFirst, tsLast       time.Time
	bytes, packets, flows uint64
}

func newHostscanAccumulator(srcIP string, dstPort uint16, protocol uint8) *hostscanAccumulator {
	return &hostscanAccumulator{
		srcIP:    srcIP,
		dstPort:  dstPort,
		dstIPs:   make(map[string]bool),
		protocol: protocol,
	}
}

func (a *hostscanAccumulator) fold(flow *model.Flow) {
	a.dstIPs[flow.DstIP.String()] = true

	if a.tsFirst.IsZero() || flow.TimeFirst.Before(a.tsFirst) {
		a.tsFirst = flow.TimeFirst
	}
	if flow.TimeLast.After(a.tsLast) {
		a.tsLast = flow.TimeLast
	}
	a.bytes += flow.Bytes
	a.packets += flow.Packets
	a.flows += flow.FlowCount
}

func (a *hostscanAccumulator) emit() model.ScanEvent {
	ips := make([]string, 0, len(a.dstIPs))
	for ip := range a.dstIPs {
		ips = append(ips, ip)
	}
	return model.ScanEvent{
		Type:     model.ScanKindHost,
		SourceIP: a.srcIP,
		DstPort:  a.dstPort,
		DstIPs:   ips,
		Protocol: a.protocol,
		TsFirst:  a.tsFirst,
		TsLast:   a.tsLast,
		Bytes:    a.bytes,
		Packets:  a.packets,
		Flows:    a.flows,
	}
}

// Hostscan is the host-scan aggregator variant.
type Hostscan struct {
	table *Table[HostscanKey, *hostscanAccumulator]
}

// NewHostscan returns a host-scan aggregator.
func NewHostscan() *Hostscan {
	return &Hostscan{table: NewTable[HostscanKey, *hostscanAccumulator]()}
}

// Observe folds flow into the table.
func (h *Hostscan) Observe(flow *model.Flow) {
	key := HostscanKey{SrcIP: flow.SrcIP.String(), DstPort: flow.DstPort}
	h.table.Fold(key, func(existing *hostscanAccumulator, ok bool) *hostscanAccumulator {
		if !ok {
			existing = newHostscanAccumulator(flow.SrcIP.String(), flow.DstPort, flow.Protocol)
		}
		existing.fold(flow)
		return existing
	})
}

// Flush snapshots and clears the table, emitting one ScanEvent per key.
func (h *Hostscan) Flush() []model.ScanEvent {
	snapshot := h.table.Flush()
	out := make([]model.ScanEvent, 0, len(snapshot))
	for _, acc := range snapshot {
		out = append(out, acc.emit())
	}
	return out
}
