package scenario

import (
	"context"
	"fmt"
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/model"
)

// dnsResolveTimeout bounds each resolver call made while deriving entities
// for a DNS-name-watch instance, so a stalled external resolver cannot
// block the process tick indefinitely (§7 "Transient I/O").
const dnsResolveTimeout = 5 * time.Second

// DNSNameWatch is the "DNS-name-watch" scenario kind (§3, §4.5): triggered
// by a DNS channel record naming a blacklisted domain. Its key is
// the normalized domain name (lower-cased, trailing dot and leading www.
// stripped); its entities are the domain's currently-resolved IPv4
// addresses, obtained through the injected resolver collaborator.
func DNSNameWatch() Kind {
	return Kind{
		Name:              "dns-name-watch",
		AlsoAlertReporter: false,
		Fits:              dnsFits,
		Key:               dnsKey,
		DeriveEntities:    dnsDeriveEntities,
	}
}

func dnsFits(rec Record, deps Deps) bool {
	if rec.DNS == nil {
		return false
	}
	return rec.DNS.Blacklist != 0 && rec.DNS.DNSAnswers > 0
}

func dnsKey(rec Record) (string, error) {
	if rec.DNS == nil {
		return "", fmt.Errorf("scenario: dns-name-watch key requires a dns record")
	}
	return model.NormalizeDomain(rec.DNS.DNSName), nil
}

// dnsDeriveEntities resolves the normalized domain name shared by every
// accumulated detection (they all key to the same name) and turns each
// resolved address into an adaptive entity. Resolution failures are
// logged and contribute no entities rather than aborting the instance.
func dnsDeriveEntities(detections []Record, deps Deps, uuid string) []string {
	if len(detections) == 0 || detections[0].DNS == nil {
		return nil
	}
	name := model.NormalizeDomain(detections[0].DNS.DNSName)

	ctx, cancel := context.WithTimeout(context.Background(), dnsResolveTimeout)
	defer cancel()

	addrs, err := deps.Resolver.Resolve(ctx, name)
	if err != nil {
		log.Warnf("scenario: dns-name-watch resolution of %q failed: %s", name, err)
		return nil
	}

	var out []string
	for _, addr := range addrs {
		out = append(out, formatAdaptiveEntity(addr, deps.AdaptiveBlacklistID, uuid))
	}
	return out
}
