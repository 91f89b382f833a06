package aggregator

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/model"
)

func flowAt(t time.Time, src, dst string, srcBlacklist uint64) *model.Flow {
	return &model.Flow{
		SrcIP:        net.ParseIP(src),
		DstIP:        net.ParseIP(dst),
		SrcPort:      12345,
		DstPort:      443,
		Protocol:     6,
		TimeFirst:    t,
		TimeLast:     t,
		Bytes:        100,
		Packets:      1,
		FlowCount:    1,
		SrcBlacklist: srcBlacklist,
	}
}

func TestBlacklistIPDecomposesMultiBitBitmap(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	b := NewBlacklistIP(cfg)

	now := time.Now()
	b.Observe(flowAt(now, "10.0.0.1", "10.0.0.2", 0b101))

	events := b.Flush(5, 1000)
	assert.Len(events, 2)

	bits := map[uint64]bool{}
	for _, e := range events {
		bits[e.BlacklistID] = true
		assert.Equal([]string{"10.0.0.2"}, e.Targets)
		assert.Equal(uint64(100), e.SrcSentBytes)
		assert.True(e.TsFirst.Equal(e.TsLast) || !e.TsFirst.After(e.TsLast))
	}
	assert.True(bits[0b001])
	assert.True(bits[0b100])
}

func TestBlacklistIPTargetsAreDeduplicated(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	b := NewBlacklistIP(cfg)

	now := time.Now()
	b.Observe(flowAt(now, "10.0.0.1", "10.0.0.2", 0b1))
	b.Observe(flowAt(now.Add(time.Second), "10.0.0.1", "10.0.0.2", 0b1))

	events := b.Flush(5, 1000)
	assert.Len(events, 1)
	assert.Equal([]string{"10.0.0.2"}, events[0].Targets)
	assert.Equal(uint64(200), events[0].SrcSentBytes)
}

func TestBlacklistIPOversizeSplitProducesDisjointTargets(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	cfg.MaxTargetsPerEvent = 1000
	b := NewBlacklistIP(cfg)

	now := time.Now()
	total := cfg.MaxTargetsPerEvent*2 + 1
	for i := 0; i < total; i++ {
		dst := fmt.Sprintf("10.0.%d.%d", i/256, i%256)
		b.Observe(flowAt(now, "10.0.0.1", dst, 0b1))
	}

	events := b.Flush(5, cfg.MaxTargetsPerEvent)
	assert.Len(events, 3)

	seen := map[string]bool{}
	counts := []int{}
	for _, e := range events {
		counts = append(counts, len(e.Targets))
		for _, tgt := range e.Targets {
			assert.False(seen[tgt], "target %s emitted twice", tgt)
			seen[tgt] = true
		}
	}
	assert.ElementsMatch([]int{cfg.MaxTargetsPerEvent, cfg.MaxTargetsPerEvent, 1}, counts)
	assert.Len(seen, total)
}

func TestBlacklistURLKeysOnNormalizedHostAndPath(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	u := NewBlacklistURL(cfg)

	now := time.Now()
	flow := &model.Flow{
		SrcIP:        net.ParseIP("10.0.0.5"),
		DstIP:        net.ParseIP("198.51.100.9"),
		Protocol:     6,
		DstPort:      80,
		TimeFirst:    now,
		TimeLast:     now,
		Bytes:        50,
		Packets:      1,
		FlowCount:    1,
		HTTPHost:     "www.evil.example",
		HTTPURL:      "/payload",
		DstBlacklist: 1 << 2,
	}
	u.Observe(flow)

	events := u.Flush(5, 1000)
	assert.Len(events, 1)
	assert.Equal("evil.example", events[0].Source)
	assert.Equal("/payload", events[0].URLPath)
	assert.Equal("198.51.100.9", events[0].DstIP)
	assert.Equal([]string{"10.0.0.5"}, events[0].Targets)
	assert.Equal(uint64(1<<2), events[0].BlacklistID)
}

func TestPortscanBlockModeFoldsAcrossDestinations(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	cfg.NoBlockScans = false
	p := NewPortscan(cfg)

	now := time.Now()
	p.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.1"), DstPort: 22, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})
	p.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.2"), DstPort: 23, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})

	events := p.Flush()
	assert.Len(events, 1)
	assert.ElementsMatch([]string{"10.0.0.1", "10.0.0.2"}, events[0].DstIPs)
	assert.ElementsMatch([]uint16{22, 23}, events[0].DstPorts)
}

func TestPortscanNonBlockModeKeysPerDestination(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	cfg.NoBlockScans = true
	p := NewPortscan(cfg)

	now := time.Now()
	p.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.1"), DstPort: 22, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})
	p.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.2"), DstPort: 22, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})

	events := p.Flush()
	assert.Len(events, 2)
	for _, e := range events {
		assert.NotEmpty(e.DstIP)
		assert.Nil(e.DstIPs)
	}
}

func TestHostscanKeysOnSourceAndDestinationPort(t *testing.T) {
	assert := assert.New(t)
	h := NewHostscan()

	now := time.Now()
	h.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.1"), DstPort: 22, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})
	h.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.2"), DstPort: 22, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})
	h.Observe(&model.Flow{SrcIP: net.ParseIP("10.0.0.9"), DstIP: net.ParseIP("10.0.0.3"), DstPort: 80, Protocol: 6, TimeFirst: now, TimeLast: now, FlowCount: 1})

	events := h.Flush()
	assert.Len(events, 2)
	for _, e := range events {
		if e.DstPort == 22 {
			assert.ElementsMatch([]string{"10.0.0.1", "10.0.0.2"}, e.DstIPs)
		} else {
			assert.Equal(uint16(80), e.DstPort)
			assert.Equal([]string{"10.0.0.3"}, e.DstIPs)
		}
	}
}

func TestFlushOfEmptyTableReturnsNil(t *testing.T) {
	assert := assert.New(t)
	cfg := config.DefaultConfig()
	b := NewBlacklistIP(cfg)
	assert.Nil(b.Flush(5, 1000))
}
