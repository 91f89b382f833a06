package aggregator

import (
	"time"

	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/model"
)

// IPKey is the blacklist-IP aggregator fold key (§4.2): the blacklisted
// side's address, the protocol, and one decomposed blacklist bit.
type IPKey struct {
	Source       string
	Protocol     uint8
	BlacklistBit uint64
}

// URLKey is the blacklist-URL aggregator fold key (§4.2): the normalized
// host, URL path, destination IP and protocol, plus one decomposed
// blacklist bit.
type URLKey struct {
	Host         string
	URLPath      string
	DstIP        string
	Protocol     uint8
	BlacklistBit uint64
}

// blacklistAccumulator holds the running fold for one blacklist-IP or
// blacklist-URL key until the next flush (§4.2 "Accumulators").
type blacklistAccumulator struct {
	kind    model.AggregatedKind
	source  string
	urlPath string
	dstIP   string

	protocol     uint8
	blacklistBit uint64

	targets     map[string]bool
	sourcePorts map[uint16]bool

	tsFirst, tsLast time.Time

	srcSentBytes, srcSentPackets, srcSentFlows uint64
	tgtSentBytes, tgtSentPackets, tgtSentFlows uint64
}

func newBlacklistAccumulator(kind model.AggregatedKind, source, urlPath, dstIP string, protocol uint8, bit uint64) *blacklistAccumulator {
	return &blacklistAccumulator{
		kind:         kind,
		source:       source,
		urlPath:      urlPath,
		dstIP:        dstIP,
		protocol:     protocol,
		blacklistBit: bit,
		targets:      make(map[string]bool),
		sourcePorts:  make(map[uint16]bool),
	}
}

// fold folds one (flow, target, blacklistedPort) observation
// into the accumulator: target is the non-blacklisted peer, blacklistedPort
// is the port used on the blacklisted side (excluded from source_ports
// when ephemeral, per the "targets/source_ports" invariant in §3).
func (a *blacklistAccumulator) fold(flow *model.Flow, target string, blacklistedPort uint16, minSrcPort uint16, srcToTarget bool) {
	a.targets[target] = true
	if blacklistedPort < minSrcPort {
		a.sourcePorts[blacklistedPort] = true
	}

	if a.tsFirst.IsZero() || flow.TimeFirst.Before(a.tsFirst) {
		a.tsFirst = flow.TimeFirst
	}
	if flow.TimeLast.After(a.tsLast) {
		a.tsLast = flow.TimeLast
	}

	if srcToTarget {
		a.srcSentBytes += flow.Bytes
		a.srcSentPackets += flow.Packets
		a.srcSentFlows += flow.FlowCount
	} else {
		a.tgtSentBytes += flow.Bytes
		a.tgtSentPackets += flow.Packets
		a.tgtSentFlows += flow.FlowCount
	}
}

// emitOptions threads the owning aggregator's window (so emitted events can
// report agg_win_minutes) and the oversize-split threshold into emit.
type emitOptions struct {
	aggWinMinutes  float64
	maxTargets     int
}

// emit renders the accumulator into one or more AggregatedEvent copies,
// splitting the target set into chunks of at most maxTargets (§4.2
// "Oversized events").
func (a *blacklistAccumulator) emit(opts emitOptions) []model.AggregatedEvent {
	targets := make([]string, 0, len(a.targets))
	for t := range a.targets {
		targets = append(targets, t)
	}
	ports := make([]uint16, 0, len(a.sourcePorts))
	for p := range a.sourcePorts {
		ports = append(ports, p)
	}

	max := opts.maxTargets
	if max <= 0 {
		max = len(targets)
	}
	if len(targets) == 0 {
		targets = []string{""}
	}

	var events []model.AggregatedEvent
	for start := 0; start < len(targets); start += max {
		end := start + max
		if end > len(targets) {
			end = len(targets)
		}
		events = append(events, model.AggregatedEvent{
			Type:           a.kind,
			Source:         a.source,
			URLPath:        a.urlPath,
			DstIP:          a.dstIP,
			Targets:        append([]string(nil), targets[start:end]...),
			SourcePorts:    ports,
			Protocol:       a.protocol,
			BlacklistID:    a.blacklistBit,
			AggWinMinutes:  opts.aggWinMinutes,
			TsFirst:        a.tsFirst,
			TsLast:         a.tsLast,
			SrcSentBytes:   a.srcSentBytes,
			SrcSentPackets: a.srcSentPackets,
			SrcSentFlows:   a.srcSentFlows,
			TgtSentBytes:   a.tgtSentBytes,
			TgtSentPackets: a.tgtSentPackets,
			TgtSentFlows:   a.tgtSentFlows,
		})
	}
	return events
}

// BlacklistIP is the blacklist-IP aggregator variant: folds flows whose
// src_blacklist or dst_blacklist bitmap is non-zero into per-(ip,
// protocol, bit) accumulators.
type BlacklistIP struct {
	table      *Table[IPKey, *blacklistAccumulator]
	minSrcPort uint16
}

// NewBlacklistIP returns a blacklist-IP aggregator reading the ephemeral
// port cutoff from cfg (§6 min_src_port).
func NewBlacklistIP(cfg *config.Config) *BlacklistIP {
	return &BlacklistIP{
		table:      NewTable[IPKey, *blacklistAccumulator](),
		minSrcPort: cfg.MinSrcPort,
	}
}

// Observe folds flow into the table, one copy per decomposed blacklist
// bit on either side (§4.2 "Multi-bit blacklist bitmaps are decomposed").
func (b *BlacklistIP) Observe(flow *model.Flow) {
	for _, bit := range model.BlacklistBits(flow.SrcBlacklist) {
		b.foldOneSide(flow, flow.SrcIP.String(), flow.DstIP.String(), flow.SrcPort, bit, true)
	}
	for _, bit := range model.BlacklistBits(flow.DstBlacklist) {
		b.foldOneSide(flow, flow.DstIP.String(), flow.SrcIP.String(), flow.DstPort, bit, false)
	}
}

func (b *BlacklistIP) foldOneSide(flow *model.Flow, blacklisted, target string, blacklistedPort uint16, bit uint64, srcIsBlacklisted bool) {
	key := IPKey{Source: blacklisted, Protocol: flow.Protocol, BlacklistBit: bit}
	b.table.Fold(key, func(existing *blacklistAccumulator, ok bool) *blacklistAccumulator {
		if !ok {
			existing = newBlacklistAccumulator(model.AggregatedKindIP, blacklisted, "", "", flow.Protocol, bit)
		}
		existing.fold(flow, target, blacklistedPort, b.minSrcPort, srcIsBlacklisted)
		return existing
	})
}

// Flush snapshots and clears the table, emitting one or more
// AggregatedEvent per key (oversize-split above maxTargets).
func (b *BlacklistIP) Flush(aggWinMinutes float64, maxTargets int) []model.AggregatedEvent {
	snapshot := b.table.Flush()
	var out []model.AggregatedEvent
	for _, acc := range snapshot {
		out = append(out, acc.emit(emitOptions{aggWinMinutes: aggWinMinutes, maxTargets: maxTargets})...)
	}
	return out
}

// BlacklistURL is the blacklist-URL aggregator variant: folds HTTP flows
// whose destination host is on a URL/DNS blacklist.
type BlacklistURL struct {
	table      *Table[URLKey, *blacklistAccumulator]
	minSrcPort uint16
}

// NewBlacklistURL returns a blacklist-URL aggregator.
func NewBlacklistURL(cfg *config.Config) *BlacklistURL {
	return &BlacklistURL{
		table:      NewTable[URLKey, *blacklistAccumulator](),
		minSrcPort: cfg.MinSrcPort,
	}
}

// Observe folds flow into the table, one copy per decomposed bit on the
// destination (blacklisted host) side.
func (b *BlacklistURL) Observe(flow *model.Flow) {
	if flow.DstBlacklist == 0 || flow.HTTPHost == "" {
		return
	}
	host := model.NormalizeHost(flow.HTTPHost)
	dstIP := flow.DstIP.String()
	client := flow.SrcIP.String()

	for _, bit := range model.BlacklistBits(flow.DstBlacklist) {
		key := URLKey{Host: host, URLPath: flow.HTTPURL, DstIP: dstIP, Protocol: flow.Protocol, BlacklistBit: bit}
		b.table.Fold(key, func(existing *blacklistAccumulator, ok bool) *blacklistAccumulator {
			if !ok {
				existing = newBlacklistAccumulator(model.AggregatedKindURL, host, flow.HTTPURL, dstIP, flow.Protocol, bit)
			}
			existing.fold(flow, client, flow.DstPort, b.minSrcPort, false)
			return existing
		})
	}
}

// Flush snapshots and clears the table.
func (b *BlacklistURL) Flush(aggWinMinutes float64, maxTargets int) []model.AggregatedEvent {
	snapshot := b.table.Flush()
	var out []model.AggregatedEvent
	for _, acc := range snapshot {
		out = append(out, acc.emit(emitOptions{aggWinMinutes: aggWinMinutes, maxTargets: maxTargets})...)
	}
	return out
}
