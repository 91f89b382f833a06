package receiver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/CESNET/Nemea-Detectors/model"
)

// JSONLineSource decodes one newline-delimited JSON record per Receive
// call. All six input channels are line-delimited JSON on the wire (see
// DESIGN.md for why this replaced a binary/protobuf framing the teacher
// never actually wired). newRecord must return a fresh pointer of the
// channel's concrete record type (e.g. func() interface{} { return new(model.DNSRecord) }).
type JSONLineSource struct {
	scanner   *bufio.Scanner
	newRecord func() interface{}
}

// NewJSONLineSource builds a Source reading newline-delimited JSON
// records from r, decoding each line into a fresh value from newRecord.
func NewJSONLineSource(r io.Reader, newRecord func() interface{}) *JSONLineSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &JSONLineSource{scanner: scanner, newRecord: newRecord}
}

// Receive implements Source. A blank line is skipped rather than treated
// as malformed, matching common line-delimited-JSON producers that emit
// a trailing newline. End of input reports ResultEndOfStream.
func (s *JSONLineSource) Receive(ctx context.Context) (Result, error) {
	for {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Result{}, err
			}
			return Result{Kind: ResultEndOfStream}, nil
		}
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := s.newRecord()
		if err := json.Unmarshal(line, rec); err != nil {
			return Result{}, fmt.Errorf("jsonsource: decode failed: %w", err)
		}
		return Result{Kind: ResultMessage, Message: rec}, nil
	}
}

// NewAggregatedIPSource decodes the pre-aggregated IP-blacklist channel.
func NewAggregatedIPSource(r io.Reader) *JSONLineSource {
	return NewJSONLineSource(r, func() interface{} { return new(model.AggregatedEvent) })
}

// NewAggregatedURLSource decodes the pre-aggregated URL-blacklist channel.
func NewAggregatedURLSource(r io.Reader) *JSONLineSource {
	return NewJSONLineSource(r, func() interface{} { return new(model.AggregatedEvent) })
}

// NewDNSSource decodes the DNS-enriched flow channel.
func NewDNSSource(r io.Reader) *JSONLineSource {
	return NewJSONLineSource(r, func() interface{} { return new(model.DNSRecord) })
}

// NewAdaptiveSource decodes the satellite re-detection channel.
func NewAdaptiveSource(r io.Reader) *JSONLineSource {
	return NewJSONLineSource(r, func() interface{} { return new(model.AdaptiveRecord) })
}

// NewFlowSource decodes one of the four raw-flow input channels that feed
// an aggregator (blacklist-ip-flow, blacklist-url-flow, portscan-flow,
// host-scan-flow).
func NewFlowSource(r io.Reader) *JSONLineSource {
	return NewJSONLineSource(r, func() interface{} { return new(model.Flow) })
}
