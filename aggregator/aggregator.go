package aggregator

import (
	"time"

	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/model"
)

// NewBlacklistIPEngine wires a BlacklistIP variant into an Engine emitting
// model.AggregatedEvent on out every cfg.AggregationWindow.
func NewBlacklistIPEngine(cfg *config.Config, out chan<- model.AggregatedEvent) (*Engine[model.AggregatedEvent], *BlacklistIP) {
	variant := NewBlacklistIP(cfg)
	aggWinMinutes := cfg.AggregationWindow.Minutes()
	engine := NewEngine(cfg.QueueSize, cfg.AggregationWindow, cfg.SendTimeout,
		variant.Observe,
		func() []model.AggregatedEvent { return variant.Flush(aggWinMinutes, cfg.MaxTargetsPerEvent) },
		out,
	)
	return engine, variant
}

// NewBlacklistURLEngine wires a BlacklistURL variant into an Engine.
func NewBlacklistURLEngine(cfg *config.Config, out chan<- model.AggregatedEvent) (*Engine[model.AggregatedEvent], *BlacklistURL) {
	variant := NewBlacklistURL(cfg)
	aggWinMinutes := cfg.AggregationWindow.Minutes()
	engine := NewEngine(cfg.QueueSize, cfg.AggregationWindow, cfg.SendTimeout,
		variant.Observe,
		func() []model.AggregatedEvent { return variant.Flush(aggWinMinutes, cfg.MaxTargetsPerEvent) },
		out,
	)
	return engine, variant
}

// NewPortscanEngine wires a Portscan variant into an Engine emitting
// model.ScanEvent.
func NewPortscanEngine(cfg *config.Config, out chan<- model.ScanEvent) (*Engine[model.ScanEvent], *Portscan) {
	variant := NewPortscan(cfg)
	engine := NewEngine(cfg.QueueSize, cfg.AggregationWindow, cfg.SendTimeout,
		variant.Observe,
		variant.Flush,
		out,
	)
	return engine, variant
}

// NewHostscanEngine wires a Hostscan variant into an Engine emitting
// model.ScanEvent.
func NewHostscanEngine(cfg *config.Config, out chan<- model.ScanEvent) (*Engine[model.ScanEvent], *Hostscan) {
	variant := NewHostscan()
	engine := NewEngine(cfg.QueueSize, cfg.AggregationWindow, cfg.SendTimeout,
		variant.Observe,
		variant.Flush,
		out,
	)
	return engine, variant
}

// AggWinMinutesFor is a test/documentation helper exposing the
// window-to-minutes conversion applied to every emitted AggregatedEvent.
func AggWinMinutesFor(window time.Duration) float64 {
	return window.Minutes()
}
