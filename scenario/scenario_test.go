package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/resolver"
)

func testDeps() Deps {
	return Deps{
		BotnetBlacklistBits: map[uint64]bool{1: true},
		AdaptiveBlacklistID: 999,
		Resolver: resolver.NewStubResolver(map[string][]string{
			"evil.example": {"1.2.3.4", "1.2.3.5"},
		}),
	}
}

func TestBotnetTargetWatchFitsOnActivatedBit(t *testing.T) {
	assert := assert.New(t)
	deps := testDeps()
	kinds := Registry()

	rec := Record{Channel: model.ChannelAggregatedIP, Aggregated: &model.AggregatedEvent{
		Type:        model.AggregatedKindIP,
		Source:      "198.51.100.1",
		BlacklistID: 1,
		Targets:     []string{"10.0.0.1", "10.0.0.2"},
	}}

	kind, ok := Classify(rec, deps, kinds)
	assert.True(ok)
	assert.Equal("botnet-target-watch", kind.Name)
	assert.True(kind.AlsoAlertReporter)

	key, err := kind.Key(rec)
	assert.NoError(err)
	assert.Equal("198.51.100.1", key)

	entities := kind.DeriveEntities([]Record{rec}, deps, "uuid-1")
	assert.ElementsMatch([]string{
		"10.0.0.1,999,uuid-1",
		"10.0.0.2,999,uuid-1",
	}, entities)
}

func TestBotnetTargetWatchDoesNotFitUnactivatedBit(t *testing.T) {
	assert := assert.New(t)
	deps := testDeps()
	kinds := Registry()

	rec := Record{Channel: model.ChannelAggregatedIP, Aggregated: &model.AggregatedEvent{
		BlacklistID: 2,
		Source:      "198.51.100.1",
	}}

	_, ok := Classify(rec, deps, kinds)
	assert.False(ok)
}

func TestDNSNameWatchKeyNormalizesDomain(t *testing.T) {
	assert := assert.New(t)
	deps := testDeps()
	kinds := Registry()

	rec := Record{Channel: model.ChannelDNS, DNS: &model.DNSRecord{
		DNSName:   "Www.Evil.Example.",
		Blacklist: 4,
		DNSAnswers: 1,
	}}

	kind, ok := Classify(rec, deps, kinds)
	assert.True(ok)
	assert.Equal("dns-name-watch", kind.Name)
	assert.False(kind.AlsoAlertReporter)

	key, err := kind.Key(rec)
	assert.NoError(err)
	assert.Equal("evil.example", key)

	entities := kind.DeriveEntities([]Record{rec}, deps, "uuid-2")
	assert.ElementsMatch([]string{
		"1.2.3.4,999,uuid-2",
		"1.2.3.5,999,uuid-2",
	}, entities)
}

func TestDNSNameWatchDoesNotFitWithoutBlacklistHit(t *testing.T) {
	assert := assert.New(t)
	deps := testDeps()
	kinds := Registry()

	rec := Record{Channel: model.ChannelDNS, DNS: &model.DNSRecord{
		DNSName:    "benign.example",
		Blacklist:  0,
		DNSAnswers: 1,
	}}

	_, ok := Classify(rec, deps, kinds)
	assert.False(ok)
}

func TestDNSNameWatchResolutionFailureYieldsNoEntities(t *testing.T) {
	assert := assert.New(t)
	deps := testDeps()
	deps.Resolver = resolver.NewStubResolver(nil)

	rec := Record{DNS: &model.DNSRecord{DNSName: "unknown.example"}}
	entities := dnsDeriveEntities([]Record{rec}, deps, "uuid-3")
	assert.Nil(entities)

	// No real network call is made: the stub resolver ignores ctx, so an
	// already-canceled context still resolves without an error.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := deps.Resolver.Resolve(ctx, "unknown.example")
	assert.NoError(err)
}
