package controller

import (
	"sync"
	"time"

	"github.com/google/uuid"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/scenario"
	"github.com/CESNET/Nemea-Detectors/stats"
)

// Controller owns the two tables named in §3 "Ownership": the scenario
// state table (keyed by scenario key, C4) and its UUID index (used by
// satellite ingestion and pruning). All four C4 operations run under one
// coarse lock — contention is acceptable because a single classifier
// goroutine feeds it, per §4.4. The classifier dispatch (C3) and the
// reporter bypass (C8) run outside the lock.
type Controller struct {
	mu sync.Mutex

	byKey  map[string]*Instance
	byUUID map[string]*Instance

	kinds []scenario.Kind
	deps  scenario.Deps

	maxDetections int
	maxSatellites int

	// newUUID is the only global-style singleton (§9): trivially replaced
	// by an injected source in tests.
	newUUID func() string

	reporter chan<- scenario.Record
}

// New returns a Controller dispatching against kinds, using deps for
// scenario derivation, with caps and channels taken from cfg and reporter.
func New(cfg *config.Config, kinds []scenario.Kind, deps scenario.Deps, reporter chan<- scenario.Record) *Controller {
	return &Controller{
		byKey:         make(map[string]*Instance),
		byUUID:        make(map[string]*Instance),
		kinds:         kinds,
		deps:          deps,
		maxDetections: cfg.MaxDetectionsPerInstance,
		maxSatellites: cfg.MaxDetectionsPerInstance,
		newUUID:       uuid.NewString,
		reporter:      reporter,
	}
}

// Observe classifies rec (C3) and either folds it into the matching
// scenario instance (C4 observe) or forwards it to the reporter bypass
// (C8). Matching records of an "also alert immediately" kind are folded
// AND forwarded (§6).
func (c *Controller) Observe(rec scenario.Record) {
	kind, ok := scenario.Classify(rec, c.deps, c.kinds)
	if !ok {
		c.sendReporter(rec)
		return
	}

	key, err := kind.Key(rec)
	if err != nil {
		log.Warnf("controller: discarding record, failed to derive scenario key: %s", err)
		return
	}

	c.mu.Lock()
	inst, ok := c.byKey[key]
	if !ok {
		inst = &Instance{
			UUID:          c.newUUID(),
			KindName:      kind.Name,
			Key:           key,
			AlertReporter: kind.AlsoAlertReporter,
			FirstDetectionTS: recordTime(rec),
		}
		c.byKey[key] = inst
		c.byUUID[inst.UUID] = inst
		stats.Client.Count("controller.scenario_instances_created", 1, nil, 1)
	}
	if len(inst.Detections) < c.maxDetections {
		inst.Detections = append(inst.Detections, rec)
	}
	ts := recordTime(rec)
	if ts.After(inst.LastDetectionTS) {
		inst.LastDetectionTS = ts
	}
	c.mu.Unlock()

	if kind.AlsoAlertReporter {
		c.sendReporter(rec)
	}
}

// IngestSatellite folds a satellite re-detection into every scenario
// instance its comma-separated UUID list names (§4.4 ingest_satellite).
// UUIDs naming no live instance are ignored — the instance may already
// have been exported and pruned.
func (c *Controller) IngestSatellite(rec *model.AdaptiveRecord) {
	ids := rec.AdaptiveIDList()
	if len(ids) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		inst, ok := c.byUUID[id]
		if !ok {
			continue
		}
		if len(inst.Satellites) < c.maxSatellites {
			inst.Satellites = append(inst.Satellites, *rec)
		}
	}
}

// DeriveEntities re-derives adaptive entities for every dirty instance
// (C5), replacing its entity set wholesale so a later derivation that
// drops a target propagates correctly (§4.5).
func (c *Controller) DeriveEntities(now time.Time) {
	c.mu.Lock()
	dirty := make([]*Instance, 0)
	for _, inst := range c.byKey {
		if inst.dirty() {
			dirty = append(dirty, inst)
		}
	}
	c.mu.Unlock()

	for _, inst := range dirty {
		kind, ok := findKind(c.kinds, inst.KindName)
		if !ok {
			continue
		}

		c.mu.Lock()
		detections := make([]scenario.Record, len(inst.Detections))
		copy(detections, inst.Detections)
		c.mu.Unlock()

		entities := kind.DeriveEntities(detections, c.deps, inst.UUID)

		c.mu.Lock()
		inst.Entities = entities
		inst.ProcessedTS = now
		c.mu.Unlock()
	}
}

// SnapshotForExport returns every instance exportable at now (§4.4
// snapshot_for_export, §4.7 "exportable"): a shallow copy safe to read
// without holding the lock.
func (c *Controller) SnapshotForExport(now time.Time, evidenceTimeout time.Duration) []*Instance {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Instance
	for _, inst := range c.byKey {
		if inst.exportable(now, evidenceTimeout) {
			cp := *inst
			out = append(out, &cp)
		}
	}
	return out
}

// Prune removes instances by key (§4.4 prune). Their entity shares are
// released implicitly: the watchlist publisher's next diff no longer sees
// them once they are gone from byKey.
func (c *Controller) Prune(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		inst, ok := c.byKey[key]
		if !ok {
			continue
		}
		delete(c.byKey, key)
		delete(c.byUUID, inst.UUID)
	}
}

// CurrentEntities unions every live instance's entity set — the value C6
// diffs against current_union on each tick.
func (c *Controller) CurrentEntities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, inst := range c.byKey {
		for _, e := range inst.Entities {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

func (c *Controller) sendReporter(rec scenario.Record) {
	select {
	case c.reporter <- rec:
	default:
		log.Warnf("controller: reporter channel full, dropping record")
		stats.Client.Count("controller.reporter_dropped", 1, nil, 1)
	}
}

func findKind(kinds []scenario.Kind, name string) (scenario.Kind, bool) {
	for _, k := range kinds {
		if k.Name == name {
			return k, true
		}
	}
	return scenario.Kind{}, false
}

// recordTime extracts the record's own "last seen" timestamp, used both
// as the instance's first-detection stamp on creation and to advance
// last_detection_ts on every observe.
func recordTime(rec scenario.Record) time.Time {
	switch {
	case rec.Aggregated != nil:
		return rec.Aggregated.TsLast
	case rec.DNS != nil:
		return rec.DNS.TimeLast
	default:
		return time.Time{}
	}
}
