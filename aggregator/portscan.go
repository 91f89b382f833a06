package aggregator

import (
	"time"

	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/model"
)

// PortscanKey is the portscan aggregator fold key (§4.2): `(src_ip,
// protocol)` in block-scan mode, or `(src_ip, dst_ip, protocol)`
// otherwise. DstIP is left zero-valued in block-scan mode so both modes
// share one key type.
type PortscanKey struct {
	SrcIP    string
	DstIP    string
	Protocol uint8
}

type portscanAccumulator struct {
	srcIP    string
	dstIP    string // set only in non-block mode
	dstIPs   map[string]bool
	dstPorts map[uint16]bool
	protocol uint8

	tsFirst, tsLast       time.Time
	bytes, packets, flows uint64
}

func newPortscanAccumulator(srcIP, dstIP string, protocol uint8) *portscanAccumulator {
	return &portscanAccumulator{
		srcIP:    srcIP,
		dstIP:    dstIP,
		dstIPs:   make(map[string]bool),
		dstPorts: make(map[uint16]bool),
		protocol: protocol,
	}
}

func (a *portscanAccumulator) fold(flow *model.Flow) {
	a.dstIPs[flow.DstIP.String()] = true
	a.dstPorts[flow.DstPort] = true

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

func (a *portscanAccumulator) emit() model.ScanEvent {
	ports := make([]uint16, 0, len(a.dstPorts))
	for p := range a.dstPorts {
		ports = append(ports, p)
	}

	ev := model.ScanEvent{
		Type:     model.ScanKindPort,
		SourceIP: a.srcIP,
		DstIP:    a.dstIP,
		DstPorts: ports,
		Protocol: a.protocol,
		TsFirst:  a.tsFirst,
		TsLast:   a.tsLast,
		Bytes:    a.bytes,
		Packets:  a.packets,
		Flows:    a.flows,
	}
	if a.dstIP == "" {
		ips := make([]string, 0, len(a.dstIPs))
		for ip := range a.dstIPs {
			ips = append(ips, ip)
		}
		ev.DstIPs = ips
	}
	return ev
}

// Portscan is the portscan aggregator variant.
type Portscan struct {
	table        *Table[PortscanKey, *portscanAccumulator]
	noBlockScans bool
}

// NewPortscan returns a portscan aggregator. When cfg.NoBlockScans is
// true, the key includes dst_ip (one key per scanner-per-destination);
// otherwise the key folds every destination a scanner touches together
// (§4.2 "block-scan mode").
func NewPortscan(cfg *config.Config) *Portscan {
	return &Portscan{
		table:        NewTable[PortscanKey, *portscanAccumulator](),
		noBlockScans: cfg.NoBlockScans,
	}
}

// Observe folds flow into the table.
func (p *Portscan) Observe(flow *model.Flow) {
	srcIP := flow.SrcIP.String()
	dstIP := flow.DstIP.String()

	key := PortscanKey{SrcIP: srcIP, Protocol: flow.Protocol}
	accDstIP := ""
	if p.noBlockScans {
		key.DstIP = dstIP
		accDstIP = dstIP
	}

	p.table.Fold(key, func(existing *portscanAccumulator, ok bool) *portscanAccumulator {
		if !ok {
			existing = newPortscanAccumulator(srcIP, accDstIP, flow.Protocol)
		}
		existing.fold(flow)
		return existing
	})
}

// Flush snapshots and clears the table, emitting one ScanEvent per key.
func (p *Portscan) Flush() []model.ScanEvent {
	snapshot := p.table.Flush()
	out := make([]model.ScanEvent, 0, len(snapshot))
	for _, acc := range snapshot {
		out = append(out, acc.emit())
	}
	return out
}
