// Package watchlist implements the watchlist publisher (C6): it tracks
// the union of every live scenario instance's adaptive entities and keeps
// the on-disk watchlist file in sync with it.
package watchlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	log "github.com/cihub/seelog"
)

// Publisher maintains current_union (§4.6) and the watchlist file that
// mirrors it.
type Publisher struct {
	path    string
	current map[string]bool
}

// NewPublisher returns a Publisher writing to path.
func NewPublisher(path string) *Publisher {
	return &Publisher{path: path, current: make(map[string]bool)}
}

// Publish compares entities against current_union; if the sets differ, it
// sorts entities under the numeric four-octet comparator and writes the
// file atomically, then adopts entities as the new current_union (§4.6).
// A nil diff is a no-op, satisfying round-trip property 7 (no input
// change ⇒ no watchlist change).
func (p *Publisher) Publish(entities []string) error {
	next := toSet(entities)
	if setsEqual(p.current, next) {
		return nil
	}

	sorted := append([]string(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool {
		return lessByLeadingOctets(sorted[i], sorted[j])
	})

	if err := writeAtomic(p.path, sorted); err != nil {
		return err
	}
	p.current = next
	return nil
}

func toSet(entities []string) map[string]bool {
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		set[e] = true
	}
	return set
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// lessByLeadingOctets implements the §6 comparator: sort numerically by
// the four octets of the leading address, parsed from the substring
// before the first '/' or ','. Entities whose leading address does not
// parse as IPv4 sort after every valid one (IPv6 is rejected at
// derivation time per §9's Open Question resolution, so this path should
// not be reachable in practice; it exists only so a malformed line cannot
// crash the publisher).
func lessByLeadingOctets(a, b string) bool {
	oa, oka := leadingOctets(a)
	ob, okb := leadingOctets(b)
	if oka && !okb {
		return true
	}
	if !oka && okb {
		return false
	}
	if !oka && !okb {
		return a < b
	}
	for i := 0; i < 4; i++ {
		if oa[i] != ob[i] {
			return oa[i] < ob[i]
		}
	}
	return false
}

func leadingOctets(entity string) ([4]int, bool) {
	addr := entity
	if idx := strings.IndexAny(addr, "/,"); idx >= 0 {
		addr = addr[:idx]
	}
	parts := strings.Split(addr, ".")
	var octets [4]int
	if len(parts) != 4 {
		return octets, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return octets, false
		}
		octets[i] = n
	}
	return octets, true
}

// writeAtomic writes lines to path via a temp-file-then-rename, creating
// path's parent directory if missing (§4.6: "The write must be atomic
// from a reader's point of view").
func writeAtomic(path string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("watchlist: failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".watchlist-*.tmp")
	if err != nil {
		return fmt.Errorf("watchlist: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("watchlist: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("watchlist: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("watchlist: failed to rename temp file into place: %w", err)
	}

	log.Debugf("watchlist: published %d entities to %s", len(lines), path)
	return nil
}
