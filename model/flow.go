// Package model holds the record types exchanged between the receivers,
// aggregators and the adaptive controller, along with the small amount of
// validation/normalization logic each record needs before it can be folded
// or classified.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	log "github.com/cihub/seelog"
)

// Channel identifies which input stream a record was received on. Channel
// identity determines the record's concrete schema (§3 of the spec).
type Channel int

const (
	// ChannelAggregatedIP carries pre-aggregated IP-blacklist hits, JSON encoded.
	ChannelAggregatedIP Channel = iota
	// ChannelAggregatedURL carries pre-aggregated URL-blacklist hits, JSON encoded.
	ChannelAggregatedURL
	// ChannelDNS carries DNS-enriched flow records, JSON encoded.
	ChannelDNS
	// ChannelAdaptive carries satellite re-detections from the adaptive detector, JSON encoded.
	ChannelAdaptive
)

func (c Channel) String() string {
	switch c {
	case ChannelAggregatedIP:
		return "aggregated_ip"
	case ChannelAggregatedURL:
		return "aggregated_url"
	case ChannelDNS:
		return "dns"
	case ChannelAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// MarshalJSON renders a Channel by its name rather than its ordinal, so
// evidence/reporter JSON stays readable across schema renumbering.
func (c Channel) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

const (
	// MaxHostLen is the maximum length accepted for a host/domain field.
	MaxHostLen = 255
	// MaxURLLen is the maximum length accepted for a URL path field.
	MaxURLLen = 2048
	// MaxDNSNameLen is the maximum length accepted for a DNS name field.
	MaxDNSNameLen = 255
	// MinSrcPortDefault is the default ephemeral-port cutoff (§6 min_src_port).
	MinSrcPortDefault = 49152
)

// MaxBlacklists is the number of distinguishable blacklists a single
// bitmap field can represent; bit n corresponds to blacklist (n+1) in the
// configuration file (§6 blacklist_config_path).
const MaxBlacklists = 64

// Flow is a raw 5-tuple-plus-extras record as received by one of the
// per-detector aggregators (C2). Not every field is populated for every
// aggregator variant: blacklist aggregators care about the blacklist
// bitmaps, portscan/host-scan aggregators only about the 5-tuple and
// timing.
type Flow struct {
	SrcIP net.IP `json:"src_ip"`
	DstIP net.IP `json:"dst_ip"`

	SrcPort  uint16 `json:"src_port"`
	DstPort  uint16 `json:"dst_port"`
	Protocol uint8  `json:"protocol"`

	TimeFirst time.Time `json:"time_first"`
	TimeLast  time.Time `json:"time_last"`

	Bytes     uint64 `json:"bytes"`
	Packets   uint64 `json:"packets"`
	FlowCount uint64 `json:"flow_count"`

	// HTTP extras.
	HTTPHost      string `json:"http_host,omitempty"`
	HTTPURL       string `json:"http_url,omitempty"`
	HTTPReferer   string `json:"http_referer,omitempty"`
	HTTPUserAgent string `json:"http_user_agent,omitempty"`

	// DNS extras.
	DNSName    string `json:"dns_name,omitempty"`
	DNSQType   uint16 `json:"dns_qtype,omitempty"`
	DNSAnswers uint16 `json:"dns_answers,omitempty"`
	DNSRData   []byte `json:"dns_rdata,omitempty"`
	DNSRCode   uint8  `json:"dns_rcode,omitempty"`

	// SMTP extras: bitmaps of observed status codes / commands plus counters.
	SMTPStatusCodes  uint64 `json:"smtp_status_codes,omitempty"`
	SMTPCommandFlags uint32 `json:"smtp_command_flags,omitempty"`
	SMTPCount        uint32 `json:"smtp_count,omitempty"`

	// SrcBlacklist and DstBlacklist are bitsets: bit n set means the
	// corresponding endpoint matched blacklist (n+1) from the configured set.
	SrcBlacklist uint64 `json:"src_blacklist,omitempty"`
	DstBlacklist uint64 `json:"dst_blacklist,omitempty"`
}

// Normalize validates a Flow and fills in the invariants the rest of the
// pipeline relies on. It mirrors the "truncate + warn, hard-fail on the
// essentials" shape used throughout this codebase: structurally required
// fields (endpoints, timestamps) cause a rejection, decorative ones
// (HTTP/DNS string extras) are clipped and logged instead.
func (f *Flow) Normalize() error {
	if f.SrcIP == nil || f.DstIP == nil {
		return errors.New("flow.normalize: missing src/dst IP")
	}
	if f.TimeFirst.IsZero() || f.TimeLast.IsZero() {
		return errors.New("flow.normalize: missing time_first/time_last")
	}
	if f.TimeLast.Before(f.TimeFirst) {
		return fmt.Errorf("flow.normalize: time_last (%s) before time_first (%s)", f.TimeLast, f.TimeFirst)
	}

	if !utf8.ValidString(f.HTTPHost) {
		return errors.New("flow.normalize: invalid utf-8 in http host")
	}
	if len(f.HTTPHost) > MaxHostLen {
		log.Debugf("flow.normalize: truncating http host: %s", f.HTTPHost)
		f.HTTPHost = f.HTTPHost[:MaxHostLen]
	}
	if len(f.HTTPURL) > MaxURLLen {
		log.Debugf("flow.normalize: truncating http url: %s", f.HTTPURL)
		f.HTTPURL = f.HTTPURL[:MaxURLLen]
	}
	if !utf8.ValidString(f.DNSName) {
		return errors.New("flow.normalize: invalid utf-8 in dns name")
	}
	if len(f.DNSName) > MaxDNSNameLen {
		log.Debugf("flow.normalize: truncating dns name: %s", f.DNSName)
		f.DNSName = f.DNSName[:MaxDNSNameLen]
	}

	return nil
}

// BlacklistBits decomposes a bitmap into its individual set bits, each
// returned as a single-bit uint64. A record naming several blacklists is
// split per bit so each copy can update a different aggregator/scenario key
// (§3 "Aggregated event" invariants).
func BlacklistBits(bitmap uint64) []uint64 {
	if bitmap == 0 {
		return nil
	}
	bits := make([]uint64, 0, 1)
	for i := 0; i < MaxBlacklists; i++ {
		bit := uint64(1) << uint(i)
		if bitmap&bit != 0 {
			bits = append(bits, bit)
		}
	}
	return bits
}

// NormalizeHost strips a leading "www." from host, per the URL-aggregator
// normalization rule (§4.2). Case is left untouched; only DNS-name-watch
// additionally lower-cases (see NormalizeDomain).
func NormalizeHost(host string) string {
	const prefix = "www."
	if len(host) > len(prefix) && host[:len(prefix)] == prefix {
		return host[len(prefix):]
	}
	return host
}

// NormalizeDomain lower-cases a DNS name, strips one trailing root dot and
// a leading "www." label, per the DNS-name-watch scenario key rule (§3):
// "normalized domain (lower-cased, leading www. stripped)".
func NormalizeDomain(name string) string {
	lower := []byte(name)
	for i, b := range lower {
		if b >= 'A' && b <= 'Z' {
			lower[i] = b + ('a' - 'A')
		}
	}
	s := string(lower)
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return NormalizeHost(s)
}
