// Package controller implements the adaptive correlation controller: the
// scenario state table (C4), the evidence exporter/GC (C7), and the
// reporter bypass (C8). The scenario classifier itself (C3) lives in
// package scenario; Controller is its only caller.
package controller

import (
	"time"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/scenario"
)

// Instance is one live scenario occurrence, identified by a fresh UUID on
// first detection (§3 "Scenario instance").
type Instance struct {
	UUID        string
	KindName    string
	Key         string
	AlertReporter bool

	Detections []scenario.Record
	Satellites []model.AdaptiveRecord

	FirstDetectionTS time.Time
	LastDetectionTS  time.Time
	ProcessedTS      time.Time

	Entities []string
}

// dirty reports whether the instance has detections newer than its last
// entity derivation (§4.5: "invoked when last_detection_ts > processed_ts").
func (i *Instance) dirty() bool {
	return i.LastDetectionTS.After(i.ProcessedTS)
}

// exportable reports whether the instance has aged past the evidence
// window (§4.7: "first_detection_ts + evidence_window ≤ now").
func (i *Instance) exportable(now time.Time, evidenceTimeout time.Duration) bool {
	return !i.FirstDetectionTS.Add(evidenceTimeout).After(now)
}
