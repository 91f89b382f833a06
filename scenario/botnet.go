package scenario

import (
	"fmt"
	"net"

	log "github.com/cihub/seelog"
)

// BotnetTargetWatch is the "Botnet-target-watch" scenario kind (§3, §4.5):
// triggered by an aggregated blacklist-IP or blacklist-URL record whose
// single blacklist bit belongs to the configured botnet/C&C activation
// set. Its scenario key is the blacklisted C&C address itself, and
// matching records are additionally forwarded verbatim to the reporter
// channel (§6 "also alert immediately" kinds), grounded on
// adaptive_filter.py's Controller.run() isinstance(detected_scenario,
// scenarios.BotnetDetection) branch.
func BotnetTargetWatch() Kind {
	return Kind{
		Name:              "botnet-target-watch",
		AlsoAlertReporter: true,
		Fits:              botnetFits,
		Key:               botnetKey,
		DeriveEntities:    botnetDeriveEntities,
	}
}

func botnetFits(rec Record, deps Deps) bool {
	if rec.Aggregated == nil {
		return false
	}
	return deps.BotnetBlacklistBits[rec.Aggregated.BlacklistID]
}

func botnetKey(rec Record) (string, error) {
	if rec.Aggregated == nil {
		return "", fmt.Errorf("scenario: botnet-target-watch key requires an aggregated record")
	}
	return rec.Aggregated.Source, nil
}

// botnetDeriveEntities unions the target addresses of every accumulated
// detection into the adaptive-entity set, each suffixed with the adaptive
// blacklist id and the scenario instance's uuid (§4.5, §6 watchlist
// format). Targets that are not IPv4 addresses are skipped with a logged
// warning, since the watchlist comparator orders by four octets.
func botnetDeriveEntities(detections []Record, deps Deps, uuid string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range detections {
		if d.Aggregated == nil {
			continue
		}
		for _, target := range d.Aggregated.Targets {
			if seen[target] {
				continue
			}
			seen[target] = true
			if ip := net.ParseIP(target); ip == nil || ip.To4() == nil {
				log.Warnf("scenario: botnet-target-watch skipping non-IPv4 target %q", target)
				continue
			}
			out = append(out, formatAdaptiveEntity(target, deps.AdaptiveBlacklistID, uuid))
		}
	}
	return out
}

// formatAdaptiveEntity renders one watchlist line in the
// "<addr>/<prefix-or-blank>,<blacklist-id>,<uuid>" shape (§6). prefix is
// left blank since adaptive entities are single host addresses, not
// subnets, matching scenarios.py's `str(SRC_IP) + ',{}'.format(self.id)`.
func formatAdaptiveEntity(addr string, blacklistID uint64, uuid string) string {
	return fmt.Sprintf("%s,%d,%s", addr, blacklistID, uuid)
}
