// Package config loads and merges the adaptive-core configuration: the
// main YAML options document (§6 "Configuration") and the XML blacklist
// catalog it references.
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"time"

	log "github.com/cihub/seelog"
	"gopkg.in/yaml.v2"
)

// Config holds every recognized option from §6, already resolved to
// concrete durations/counts. Zero-value Config is not usable; build one
// with DefaultConfig and apply LoadYAML on top of it.
type Config struct {
	// ProcessInterval is the tick period driving C5 (derive), C6 (publish)
	// and C7 (export/GC). Default 30s.
	ProcessInterval time.Duration
	// EvidenceTimeout is the minimum instance age before export. Default 10m.
	EvidenceTimeout time.Duration
	// AggregationWindow is the C2 flush period. Default 5m.
	AggregationWindow time.Duration

	// AdaptiveBlacklistPath is the watchlist file written by C6.
	AdaptiveBlacklistPath string
	// BlacklistConfigPath is the XML file enumerating named blacklists.
	BlacklistConfigPath string

	// MaxTargetsPerEvent is the C2 oversize-splitting threshold. Default 1000.
	MaxTargetsPerEvent int
	// MaxSatellitesPerExport is the C7 scatter threshold. Default 100.
	MaxSatellitesPerExport int
	// MinSrcPort is the ephemeral-port cutoff used by C2. Default 49152.
	MinSrcPort uint16

	// MaxDetectionsPerInstance caps the raw detections retained by a
	// scenario instance (§9 Open Question: "the per-instance detection cap
	// is implicit ... pick an explicit cap"). Defaults to MaxSatellitesPerExport.
	MaxDetectionsPerInstance int

	// AdaptiveBlacklistID is the fixed blacklist id stamped onto every
	// adaptive entity this controller derives (distinct from any id in
	// BlacklistConfig, which only enumerates upstream-detector blacklists).
	AdaptiveBlacklistID uint64

	// PurgeTimeout is the supplemented purge-without-export knob (see
	// SPEC_FULL.md "Supplemented features" #1). Only consulted when
	// LegacyPurgeWithoutExport is true.
	PurgeTimeout time.Duration
	// LegacyPurgeWithoutExport gates the older behavior where a scenario
	// instance with no satellites is dropped instead of exported once
	// EvidenceTimeout elapses. Default false: export unconditionally.
	LegacyPurgeWithoutExport bool

	// NoBlockScans disables the portscan aggregator's block-scan folding
	// (src_ip,protocol) in favor of (src_ip,dst_ip,protocol). Default false.
	NoBlockScans bool

	// QueueSize bounds the shared inbound queue (C1 → C3).
	QueueSize int
	// SendTimeout bounds blocking writes on output channels (§5).
	SendTimeout time.Duration

	LogLevel string
	LogFile  string
}

// DefaultConfig returns a Config populated with every default listed in §6.
func DefaultConfig() *Config {
	return &Config{
		ProcessInterval:          30 * time.Second,
		EvidenceTimeout:          600 * time.Second,
		AggregationWindow:        300 * time.Second,
		AdaptiveBlacklistPath:    "/tmp/blacklistfilter/adaptive.blist",
		BlacklistConfigPath:      "/etc/nemea/blacklistfilter/bl_downloader_config.xml",
		MaxTargetsPerEvent:       1000,
		MaxSatellitesPerExport:   100,
		MinSrcPort:               49152,
		MaxDetectionsPerInstance: 100,
		AdaptiveBlacklistID:      1,
		PurgeTimeout:             60 * time.Second,
		LegacyPurgeWithoutExport: false,
		NoBlockScans:             false,
		QueueSize:                10000,
		SendTimeout:              2 * time.Second,
		LogLevel:                 "info",
	}
}

// yamlConfig is the on-disk shape of the configuration file; every field
// is optional and only overrides the default when present, mirroring the
// "pointer/zero-value means unset" merge idiom used throughout this module.
type yamlConfig struct {
	ProcessIntervalSeconds   *int    `yaml:"process_interval"`
	EvidenceTimeoutSeconds   *int    `yaml:"evidence_timeout"`
	AggregationWindowSeconds *int    `yaml:"aggregation_window"`
	AdaptiveBlacklistPath    string  `yaml:"adaptive_blacklist_path"`
	BlacklistConfigPath      string  `yaml:"blacklist_config_path"`
	MaxTargetsPerEvent       int     `yaml:"max_targets_per_event"`
	MaxSatellitesPerExport   int     `yaml:"max_satellites_per_export"`
	MinSrcPort               int     `yaml:"min_src_port"`
	MaxDetectionsPerInstance int     `yaml:"max_detections_per_instance"`
	AdaptiveBlacklistID      int     `yaml:"adaptive_blacklist_id"`
	PurgeTimeoutSeconds      *int    `yaml:"purge_timeout"`
	LegacyPurgeWithoutExport *bool   `yaml:"legacy_purge_without_export"`
	NoBlockScans             *bool   `yaml:"no_block_scans"`
	QueueSize                int     `yaml:"queue_size"`
	SendTimeoutSeconds       float64 `yaml:"send_timeout"`
	LogLevel                 string  `yaml:"log_level"`
	LogFile                  string  `yaml:"log_file"`
}

// newYamlFromBytes parses the raw YAML document.
func newYamlFromBytes(b []byte) (*yamlConfig, error) {
	var yc yamlConfig
	if err := yaml.Unmarshal(b, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml configuration: %s", err)
	}
	return &yc, nil
}

// LoadYAML reads configPath and merges it onto c. Missing keys leave the
// existing value (typically a DefaultConfig default) untouched.
func (c *Config) LoadYAML(configPath string) error {
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return err
	}
	yc, err := newYamlFromBytes(data)
	if err != nil {
		return err
	}
	c.merge(yc)
	return nil
}

func (c *Config) merge(yc *yamlConfig) {
	if yc.ProcessIntervalSeconds != nil {
		c.ProcessInterval = getDuration(*yc.ProcessIntervalSeconds)
	}
	if yc.EvidenceTimeoutSeconds != nil {
		c.EvidenceTimeout = getDuration(*yc.EvidenceTimeoutSeconds)
	}
	if yc.AggregationWindowSeconds != nil {
		c.AggregationWindow = getDuration(*yc.AggregationWindowSeconds)
	}
	if yc.AdaptiveBlacklistPath != "" {
		c.AdaptiveBlacklistPath = yc.AdaptiveBlacklistPath
	}
	if yc.BlacklistConfigPath != "" {
		c.BlacklistConfigPath = yc.BlacklistConfigPath
	}
	if yc.MaxTargetsPerEvent > 0 {
		c.MaxTargetsPerEvent = yc.MaxTargetsPerEvent
	}
	if yc.MaxSatellitesPerExport > 0 {
		c.MaxSatellitesPerExport = yc.MaxSatellitesPerExport
	}
	if yc.MinSrcPort > 0 {
		c.MinSrcPort = uint16(yc.MinSrcPort)
	}
	if yc.MaxDetectionsPerInstance > 0 {
		c.MaxDetectionsPerInstance = yc.MaxDetectionsPerInstance
	}
	if yc.AdaptiveBlacklistID > 0 {
		c.AdaptiveBlacklistID = uint64(yc.AdaptiveBlacklistID)
	}
	if yc.PurgeTimeoutSeconds != nil {
		c.PurgeTimeout = getDuration(*yc.PurgeTimeoutSeconds)
	}
	if yc.LegacyPurgeWithoutExport != nil {
		c.LegacyPurgeWithoutExport = *yc.LegacyPurgeWithoutExport
		if c.LegacyPurgeWithoutExport {
			log.Warn("legacy_purge_without_export is deprecated, scenario instances without satellites will be dropped instead of exported")
		}
	}
	if yc.NoBlockScans != nil {
		c.NoBlockScans = *yc.NoBlockScans
	}
	if yc.QueueSize > 0 {
		c.QueueSize = yc.QueueSize
	}
	if yc.SendTimeoutSeconds > 0 {
		c.SendTimeout = time.Duration(yc.SendTimeoutSeconds * float64(time.Second))
	}
	if yc.LogLevel != "" {
		c.LogLevel = yc.LogLevel
	}
	if yc.LogFile != "" {
		c.LogFile = yc.LogFile
	}
}

// Validate fails fast on the configuration errors that the spec (§7)
// classifies as fatal: the process should refuse to start rather than run
// with a nonsensical window/cap.
func (c *Config) Validate() error {
	if c.ProcessInterval <= 0 {
		return errors.New("config: process_interval must be positive")
	}
	if c.AggregationWindow <= 0 {
		return errors.New("config: aggregation_window must be positive")
	}
	if c.EvidenceTimeout <= 0 {
		return errors.New("config: evidence_timeout must be positive")
	}
	if c.MaxTargetsPerEvent <= 0 {
		return errors.New("config: max_targets_per_event must be positive")
	}
	if c.MaxSatellitesPerExport <= 0 {
		return errors.New("config: max_satellites_per_export must be positive")
	}
	if c.AdaptiveBlacklistPath == "" {
		return errors.New("config: adaptive_blacklist_path must be set")
	}
	return nil
}

// getDuration converts a number of whole seconds into a Duration, the
// convention used by every *_seconds option in §6.
func getDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

