// Package scenario implements the classifier (C3) and per-kind adaptive
// entity derivation (C5) described in the spec. The set of scenario kinds
// is closed and statically registered — no dynamic subclass dispatch, only
// a function-pointer table (§9 "Re-architectural choices").
package scenario

import (
	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/resolver"
)

// Record is the common envelope scenario kinds operate on. Exactly one of
// Aggregated/DNS is populated, selected by Channel.
type Record struct {
	Channel    model.Channel          `json:"channel"`
	Aggregated *model.AggregatedEvent `json:"aggregated,omitempty"`
	DNS        *model.DNSRecord       `json:"dns,omitempty"`
}

// Deps are the external bindings injected into each Kind at registration
// time, so that scenario kinds never need to import the controller (§9):
// the configured blacklist-id activation sets, the adaptive blacklist id
// suffix, and the DNS resolver collaborator (§6).
type Deps struct {
	// BotnetBlacklistBits is the activation set for botnet-target-watch:
	// the set of single-bit blacklist ids whose category is
	// "Intrusion.Botnet" (config.BlacklistConfig.BotnetActivationSet).
	BotnetBlacklistBits map[uint64]bool
	// AdaptiveBlacklistID is the fixed id attached to every adaptive
	// entity line, marking it as coming from the adaptive filter rather
	// than from an original blacklist match.
	AdaptiveBlacklistID uint64
	// Resolver resolves a normalized domain name to its IPv4 addresses
	// for the DNS-name-watch scenario.
	Resolver resolver.Resolver
}

// Kind is one registered scenario: a fits predicate, a key function and an
// entity-derivation function (§3 "Scenario kinds", §9).
type Kind struct {
	Name string

	// AlsoAlertReporter marks scenario kinds whose matching records should
	// additionally be forwarded verbatim to the reporter channel, in
	// addition to being folded into scenario state (§6 "also alert
	// immediately" kinds; currently only botnet-target-watch).
	AlsoAlertReporter bool

	// Fits reports whether rec belongs to this scenario kind.
	Fits func(rec Record, deps Deps) bool
	// Key computes the deterministic scenario key for rec. Only called
	// when Fits(rec) is true.
	Key func(rec Record) (string, error)
	// DeriveEntities computes the adaptive-entity set for a scenario
	// instance from its accumulated detections (§4.5). uuid is the
	// scenario instance's identifier, appended as the last component of
	// every derived entity string.
	DeriveEntities func(detections []Record, deps Deps, uuid string) []string
}

// Registry returns the closed list of scenario kinds, in fixed dispatch
// order. The classifier (Classify) returns the first kind whose Fits
// predicate matches.
func Registry() []Kind {
	return []Kind{
		BotnetTargetWatch(),
		DNSNameWatch(),
	}
}

// Classify returns the first registered kind whose Fits predicate matches
// rec, or ok=false if no kind matches — in which case the record must be
// forwarded verbatim to the reporter (C8).
func Classify(rec Record, deps Deps, kinds []Kind) (Kind, bool) {
	for _, k := range kinds {
		if k.Fits(rec, deps) {
			return k, true
		}
	}
	return Kind{}, false
}
