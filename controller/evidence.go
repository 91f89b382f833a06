package controller

import (
	"time"

	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/scenario"
)

// EvidenceRecord is the JSON wire shape of the evidence output channel
// (§6): scenario identity, lifecycle timestamps, every stored detection
// and satellite, and the scatter markers used when a single scenario
// instance is split across several physical messages (§4.7).
type EvidenceRecord struct {
	UUID         string `json:"uuid"`
	ScenarioKind string `json:"scenario_kind"`
	ScenarioKey  string `json:"scenario_key"`

	FirstDetectionTS time.Time `json:"first_detection_ts"`
	LastDetectionTS  time.Time `json:"last_detection_ts"`

	Detections []scenario.Record      `json:"detections"`
	Satellites []model.AdaptiveRecord `json:"satellites"`

	EventScattered bool `json:"event_scattered"`
	ScatterPart    int  `json:"scatter_part,omitempty"`
}

// splitEvidence renders inst into one EvidenceRecord, or several when its
// satellite count exceeds maxSatellites (§4.7 scatter-splitting; §8
// boundary property 10).
func splitEvidence(inst *Instance, maxSatellites int) []EvidenceRecord {
	total := len(inst.Satellites)
	if total <= maxSatellites {
		return []EvidenceRecord{{
			UUID:             inst.UUID,
			ScenarioKind:     inst.KindName,
			ScenarioKey:      inst.Key,
			FirstDetectionTS: inst.FirstDetectionTS,
			LastDetectionTS:  inst.LastDetectionTS,
			Detections:       inst.Detections,
			Satellites:       inst.Satellites,
			EventScattered:   false,
		}}
	}

	var parts []EvidenceRecord
	part := 1
	for start := 0; start < total; start += maxSatellites {
		end := start + maxSatellites
		if end > total {
			end = total
		}
		parts = append(parts, EvidenceRecord{
			UUID:             inst.UUID,
			ScenarioKind:     inst.KindName,
			ScenarioKey:      inst.Key,
			FirstDetectionTS: inst.FirstDetectionTS,
			LastDetectionTS:  inst.LastDetectionTS,
			Detections:       inst.Detections,
			Satellites:       inst.Satellites[start:end],
			EventScattered:   true,
			ScatterPart:      part,
		})
		part++
	}
	return parts
}
