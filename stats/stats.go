// Package stats provides the process-wide metrics client used by every
// component to report throughput and error counters, replacing the
// teacher's unavailable in-tree statsd package with the real dogstatsd
// client (§6 ambient observability).
package stats

import (
	"sync"

	"github.com/DataDog/datadog-go/v5/statsd"
	log "github.com/cihub/seelog"
)

// Client is the process-wide dogstatsd client. Until Configure is called
// it is a default client aimed at 127.0.0.1:8125 with telemetry off, so
// components may call it before process wiring finishes without guarding
// against a nil pointer.
var Client *statsd.Client

var once sync.Once

// Configure points Client at addr (e.g. "127.0.0.1:8125"). Safe to call at
// most once; subsequent calls are ignored. An empty addr means
// "127.0.0.1:8125". If the client cannot be created, Client keeps the
// default client set up at package init.
func Configure(addr string, namespace string) {
	once.Do(func() {
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		c, err := statsd.New(addr, statsd.WithNamespace(namespace))
		if err != nil {
			log.Errorf("stats: failed to initialize statsd client, metrics disabled: %s", err)
			return
		}
		Client = c
	})
}

func init() {
	// Default to a disconnected client so Count/Gauge calls never need a
	// nil check before Configure runs.
	c, _ := statsd.New("127.0.0.1:8125", statsd.WithoutTelemetry())
	Client = c
}
