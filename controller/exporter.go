package controller

import (
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/stats"
)

// WatchlistPublisher is the C6 collaborator the exporter drives on every
// tick, kept as a narrow interface so this package does not need to
// import the watchlist package's file-writing details.
type WatchlistPublisher interface {
	Publish(entities []string) error
}

// Exporter drives the C7 evidence export/GC pass and, by construction, C5
// (derive) and C6 (publish) too: §4.7 fixes the order as
// derive-entities → collect-exports → prune → publish-watchlist, so an
// exported instance's entities are gone from the union before it is
// published (otherwise the watchlist would still list an instance the
// same tick just removed).
type Exporter struct {
	ctrl      *Controller
	publisher WatchlistPublisher
	out       chan<- EvidenceRecord

	sendTimeout     time.Duration
	evidenceTimeout time.Duration
	maxSatellites   int

	legacyPurgeWithoutExport bool
	purgeTimeout             time.Duration
}

// NewExporter returns an Exporter wired to ctrl, cfg and publisher,
// emitting evidence records on out.
func NewExporter(ctrl *Controller, cfg *config.Config, publisher WatchlistPublisher, out chan<- EvidenceRecord) *Exporter {
	return &Exporter{
		ctrl:                     ctrl,
		publisher:                publisher,
		out:                      out,
		sendTimeout:              cfg.SendTimeout,
		evidenceTimeout:          cfg.EvidenceTimeout,
		maxSatellites:            cfg.MaxSatellitesPerExport,
		legacyPurgeWithoutExport: cfg.LegacyPurgeWithoutExport,
		purgeTimeout:             cfg.PurgeTimeout,
	}
}

// Tick runs one full derive→export→prune→publish pass (§4.7, §4.9).
func (e *Exporter) Tick(now time.Time) {
	e.ctrl.DeriveEntities(now)

	exportable := e.ctrl.SnapshotForExport(now, e.evidenceTimeout)
	var pruneKeys []string
	for _, inst := range exportable {
		if e.legacyPurgeWithoutExport && len(inst.Satellites) == 0 && !inst.FirstDetectionTS.Add(e.purgeTimeout).After(now) {
			// Supplemented legacy behavior (§9 Open Question resolution):
			// drop without exporting evidence when the older copy's rule
			// applies. The newest copy's default is to export unconditionally.
			pruneKeys = append(pruneKeys, inst.Key)
			stats.Client.Count("exporter.legacy_purged_without_export", 1, nil, 1)
			continue
		}

		for _, rec := range splitEvidence(inst, e.maxSatellites) {
			e.send(rec)
		}
		pruneKeys = append(pruneKeys, inst.Key)
	}

	e.ctrl.Prune(pruneKeys)

	if err := e.publisher.Publish(e.ctrl.CurrentEntities()); err != nil {
		log.Errorf("exporter: failed to publish watchlist, current_union left unchanged: %s", err)
	}
}

func (e *Exporter) send(rec EvidenceRecord) {
	if e.sendTimeout <= 0 {
		e.out <- rec
		return
	}
	select {
	case e.out <- rec:
	case <-time.After(e.sendTimeout):
		log.Warnf("exporter: dropped evidence record for instance %s after %s send timeout", rec.UUID, e.sendTimeout)
		stats.Client.Count("exporter.evidence_dropped", 1, nil, 1)
	}
}
