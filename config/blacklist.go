package config

import (
	"encoding/xml"
	"fmt"
	"io/ioutil"
)

// BlacklistKind distinguishes the two <array type="..."> sections of the
// blacklist catalog (§6 blacklist_config_path).
type BlacklistKind string

const (
	// BlacklistKindIP covers IP-reputation blacklists.
	BlacklistKindIP BlacklistKind = "IP"
	// BlacklistKindURLDNS covers URL/domain blacklists.
	BlacklistKindURLDNS BlacklistKind = "URL/DNS"
)

// BlacklistEntry binds one named, sourced blacklist to its activation bit.
type BlacklistEntry struct {
	// Bit is 1 << (n-1) where n is the <id> read from the XML entry.
	Bit      uint64
	Name     string
	Category string
	Source   string
}

// BlacklistConfig is the parsed catalog: every entry, keyed by kind then by
// activation bit.
type BlacklistConfig struct {
	IP     map[uint64]BlacklistEntry
	URLDNS map[uint64]BlacklistEntry
}

// BotnetActivationSet returns the set of IP-blacklist bits whose category
// is "Intrusion.Botnet" — the activation set for the botnet-target-watch
// scenario (§6 blacklist_config_path, §3 "Botnet-target-watch").
func (bc *BlacklistConfig) BotnetActivationSet() map[uint64]bool {
	set := make(map[uint64]bool)
	for bit, entry := range bc.IP {
		if entry.Category == "Intrusion.Botnet" {
			set[bit] = true
		}
	}
	return set
}

// xmlDocument mirrors the bl_downloader_config.xml layout: a plist-style
// document with two <array type="IP"|"URL/DNS"> sections, each holding
// <dict> structs of <string name="...">value</string> entries.
type xmlDocument struct {
	Arrays []xmlArray `xml:"array"`
}

type xmlArray struct {
	Type   string     `xml:"type,attr"`
	Dicts  []xmlDict  `xml:"dict"`
}

type xmlDict struct {
	Fields []xmlField `xml:"string"`
}

type xmlField struct {
	Name string `xml:"name,attr"`
	Text string `xml:",chardata"`
}

// LoadBlacklistConfig parses the XML catalog at configPath, the Go
// counterpart of original_source's utils.load_blacklists: each entry's
// <id> n is converted to the bitmap bit 1 << (n-1), exactly as the
// aggregator/controller bitmaps expect (§6).
func LoadBlacklistConfig(configPath string) (*BlacklistConfig, error) {
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse blacklist configuration: %s", err)
	}

	bc := &BlacklistConfig{
		IP:     make(map[uint64]BlacklistEntry),
		URLDNS: make(map[uint64]BlacklistEntry),
	}

	for _, arr := range doc.Arrays {
		var dest map[uint64]BlacklistEntry
		switch BlacklistKind(arr.Type) {
		case BlacklistKindIP:
			dest = bc.IP
		case BlacklistKindURLDNS:
			dest = bc.URLDNS
		default:
			continue
		}

		for _, dict := range arr.Dicts {
			entry, bit, ok := parseBlacklistEntry(dict)
			if !ok {
				continue
			}
			dest[bit] = entry
		}
	}

	return bc, nil
}

func parseBlacklistEntry(dict xmlDict) (BlacklistEntry, uint64, bool) {
	var (
		id       int
		hasID    bool
		name     string
		category string
		source   string
	)

	for _, f := range dict.Fields {
		switch f.Name {
		case "id":
			var n int
			if _, err := fmt.Sscanf(f.Text, "%d", &n); err == nil {
				id = n
				hasID = true
			}
		case "name":
			name = f.Text
		case "category":
			category = f.Text
		case "source":
			source = f.Text
		}
	}

	if !hasID || id <= 0 || name == "" || category == "" || source == "" {
		return BlacklistEntry{}, 0, false
	}

	bit := uint64(1) << uint(id-1)
	return BlacklistEntry{Bit: bit, Name: name, Category: category, Source: source}, bit, true
}
