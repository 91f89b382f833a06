// Package resolver provides the DNS-resolution collaborator used by the
// DNS-name-watch scenario to turn a blacklisted domain name into the set
// of addresses it currently resolves to (§4.5, §6 "External interfaces").
package resolver

import (
	"context"
	"net"
	"sort"

	log "github.com/cihub/seelog"
)

// Resolver resolves a normalized domain name to the distinct IPv4
// addresses it currently answers with. Implementations must be safe for
// concurrent use; DeriveEntities may call Resolve from multiple scenario
// instances concurrently.
type Resolver interface {
	Resolve(ctx context.Context, name string) ([]string, error)
}

// NetResolver is the production Resolver, backed by the standard library's
// net.Resolver (A/AAAA lookup; CNAME chasing is handled internally by
// LookupHost). IPv6 results are discarded: entities are IPv4/four-octet
// only per the adaptive-entity comparator (§9 Open Question resolution).
type NetResolver struct {
	resolver *net.Resolver
}

// NewNetResolver returns a Resolver that uses the system resolver.
func NewNetResolver() *NetResolver {
	return &NetResolver{resolver: net.DefaultResolver}
}

// Resolve implements Resolver.
func (r *NetResolver) Resolve(ctx context.Context, name string) ([]string, error) {
	addrs, err := r.resolver.LookupHost(ctx, name)
	if err != nil {
		log.Debugf("resolver: lookup of %q failed: %s", name, err)
		return nil, err
	}

	var out []string
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil || ip.To4() == nil {
			continue
		}
		out = append(out, ip.String())
	}
	sort.Strings(out)
	return out, nil
}

// StubResolver is a fixed-answer Resolver for tests: it returns whatever
// was seeded for a given name, regardless of how many times it is called.
type StubResolver struct {
	Answers map[string][]string
}

// NewStubResolver returns a StubResolver seeded with answers.
func NewStubResolver(answers map[string][]string) *StubResolver {
	return &StubResolver{Answers: answers}
}

// Resolve implements Resolver.
func (r *StubResolver) Resolve(ctx context.Context, name string) ([]string, error) {
	return r.Answers[name], nil
}
