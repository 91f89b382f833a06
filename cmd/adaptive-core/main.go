// Command adaptive-core runs the multi-stream aggregation and adaptive
// correlation engine: four windowed aggregators, the scenario classifier
// and state table, the adaptive-entity/watchlist pipeline, the evidence
// exporter, and the timer driving all three. Process wiring follows the
// teacher's Agent/NewAgent/Run shape (cmd/trace-agent/agent.go): build
// every component up front, start them, then block in one top-level
// select until a stop signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/cihub/seelog"

	"github.com/CESNET/Nemea-Detectors/aggregator"
	"github.com/CESNET/Nemea-Detectors/config"
	"github.com/CESNET/Nemea-Detectors/controller"
	"github.com/CESNET/Nemea-Detectors/model"
	"github.com/CESNET/Nemea-Detectors/receiver"
	"github.com/CESNET/Nemea-Detectors/resolver"
	"github.com/CESNET/Nemea-Detectors/scenario"
	"github.com/CESNET/Nemea-Detectors/scheduler"
	"github.com/CESNET/Nemea-Detectors/stats"
	"github.com/CESNET/Nemea-Detectors/watchlist"
	"github.com/CESNET/Nemea-Detectors/writer"
)

// Exit codes distinguish startup failure classes, mirroring the teacher's
// osutil.Exitf convention of a dedicated non-zero code per fatal path.
const (
	exitOK = iota
	exitConfigError
	exitBlacklistConfigError
	exitLogConfigError
)

func main() {
	configPath := flag.String("config", "", "path to the main YAML configuration file")
	statsdAddr := flag.String("statsd-addr", "127.0.0.1:8125", "statsd endpoint for runtime metrics")
	blIPFlows := flag.String("blacklist-ip-flows", "", "path to newline-delimited JSON flow records for the blacklist-IP aggregator (unset disables this input)")
	blURLFlows := flag.String("blacklist-url-flows", "", "path to newline-delimited JSON flow records for the blacklist-URL aggregator (unset disables this input)")
	portscanFlows := flag.String("portscan-flows", "", "path to newline-delimited JSON flow records for the portscan aggregator (unset disables this input)")
	hostscanFlows := flag.String("hostscan-flows", "", "path to newline-delimited JSON flow records for the host-scan aggregator (unset disables this input)")
	dnsRecords := flag.String("dns-records", "", "path to newline-delimited JSON DNS-detection records (unset disables this input)")
	adaptiveRecords := flag.String("adaptive-records", "", "path to newline-delimited JSON adaptive-re-detection records (unset disables this input)")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadYAML(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "adaptive-core: failed to load config: %s\n", err)
			os.Exit(exitConfigError)
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "adaptive-core: invalid config: %s\n", err)
		os.Exit(exitConfigError)
	}

	configureLogging(cfg)
	stats.Configure(*statsdAddr, "adaptive_core")

	blacklist, err := config.LoadBlacklistConfig(cfg.BlacklistConfigPath)
	if err != nil {
		log.Criticalf("failed to load blacklist configuration: %s", err)
		os.Exit(exitBlacklistConfigError)
	}

	inputs := inputPaths{
		blacklistIPFlows:  *blIPFlows,
		blacklistURLFlows: *blURLFlows,
		portscanFlows:     *portscanFlows,
		hostscanFlows:     *hostscanFlows,
		dnsRecords:        *dnsRecords,
		adaptiveRecords:   *adaptiveRecords,
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := newApp(ctx, cfg, blacklist, inputs)
	a.Run()
	cancel()
}

// inputPaths names the on-disk newline-delimited-JSON source for each of
// the six input channels (§6: the four raw-flow channels feeding the C2
// aggregators, the DNS-detection and adaptive-re-detection
// channels feeding the classifier directly). An empty path leaves that
// channel's component running with no input, rather than failing startup
// — useful for deployments that only run a subset of detectors.
type inputPaths struct {
	blacklistIPFlows  string
	blacklistURLFlows string
	portscanFlows     string
	hostscanFlows     string
	dnsRecords        string
	adaptiveRecords   string
}

// app holds every sub-component and the channels wiring them together,
// following the teacher's Agent struct shape.
type app struct {
	conf      *config.Config
	blacklist *config.BlacklistConfig

	blIPEngine  *aggregator.Engine[model.AggregatedEvent]
	blURLEngine *aggregator.Engine[model.AggregatedEvent]
	portscanEng *aggregator.Engine[model.ScanEvent]
	hostscanEng *aggregator.Engine[model.ScanEvent]

	blIPFlows     chan *model.Flow
	blURLFlows    chan *model.Flow
	portscanFlows chan *model.Flow
	hostscanFlows chan *model.Flow

	ctrl     *controller.Controller
	exporter *controller.Exporter
	sched    *scheduler.Scheduler

	reporterOut   chan scenario.Record
	evidenceOut   chan controller.EvidenceRecord
	aggregatedOut chan model.AggregatedEvent
	scanOut       chan model.ScanEvent
	classifyQueue chan receiver.QueueItem

	// aggregatedOut is teed into these two: the blacklist aggregators'
	// flushed events double as classifier input #1 and as a member of the
	// aggregator-out stream (§6, §5), and a channel send only ever reaches
	// one receiver, so each consumer needs its own fed channel.
	aggregatedToClassify chan model.AggregatedEvent
	aggregatedToWriter   chan model.AggregatedEvent

	reporterWriter   *writer.StreamWriter
	evidenceWriter   *writer.StreamWriter
	aggregatedWriter *writer.StreamWriter

	flowReaders []*receiver.FlowReader
	msgReaders  []*receiver.Reader

	ctx context.Context
}

// newApp constructs every component, ready to be started. Each input
// channel reads newline-delimited JSON from its own named file; a blank
// path builds no reader for that channel and leaves it idle (an aggregator
// Engine still starts, it just never receives anything), rather than
// failing startup.
func newApp(ctx context.Context, cfg *config.Config, blacklist *config.BlacklistConfig, inputs inputPaths) *app {
	a := &app{
		conf:                 cfg,
		blacklist:            blacklist,
		reporterOut:          make(chan scenario.Record, 100),
		evidenceOut:          make(chan controller.EvidenceRecord, 100),
		aggregatedOut:        make(chan model.AggregatedEvent, 100),
		scanOut:              make(chan model.ScanEvent, 100),
		classifyQueue:        make(chan receiver.QueueItem, cfg.QueueSize),
		aggregatedToClassify: make(chan model.AggregatedEvent, 100),
		aggregatedToWriter:   make(chan model.AggregatedEvent, 100),
		ctx:                  ctx,
	}

	a.blIPEngine, _ = aggregator.NewBlacklistIPEngine(cfg, a.aggregatedOut)
	a.blURLEngine, _ = aggregator.NewBlacklistURLEngine(cfg, a.aggregatedOut)
	a.portscanEng, _ = aggregator.NewPortscanEngine(cfg, a.scanOut)
	a.hostscanEng, _ = aggregator.NewHostscanEngine(cfg, a.scanOut)

	a.blIPFlows = make(chan *model.Flow, cfg.QueueSize)
	a.blURLFlows = make(chan *model.Flow, cfg.QueueSize)
	a.portscanFlows = make(chan *model.Flow, cfg.QueueSize)
	a.hostscanFlows = make(chan *model.Flow, cfg.QueueSize)

	deps := scenario.Deps{
		BotnetBlacklistBits: blacklist.BotnetActivationSet(),
		AdaptiveBlacklistID: cfg.AdaptiveBlacklistID,
		Resolver:            resolver.NewNetResolver(),
	}
	a.ctrl = controller.New(cfg, scenario.Registry(), deps, a.reporterOut)

	publisher := watchlist.NewPublisher(cfg.AdaptiveBlacklistPath)
	a.exporter = controller.NewExporter(a.ctrl, cfg, publisher, a.evidenceOut)

	a.sched = scheduler.New(cfg.ProcessInterval, a.exporter.Tick)

	a.reporterWriter = writer.NewStreamWriter("writer.reporter", bridgeReporter(a.reporterOut), os.Stdout, cfg.ProcessInterval)
	a.evidenceWriter = writer.NewStreamWriter("writer.evidence", bridgeEvidence(a.evidenceOut), os.Stdout, cfg.ProcessInterval)
	a.aggregatedWriter = writer.NewStreamWriter("writer.aggregated_out", bridgeAggregated(a.aggregatedToWriter, a.scanOut), os.Stdout, cfg.ProcessInterval)

	// aggregated blacklist events double as classifier input #1 and as a
	// member of the aggregator-out stream (§6, §5): tee every flushed
	// event onto both consumer channels, since a plain channel send only
	// ever reaches one receiver.
	go a.teeAggregated()
	go a.forwardAggregatedToClassifier()

	a.flowReaders = a.buildFlowReaders(inputs)
	a.msgReaders = buildMsgReaders(inputs, a.classifyQueue)

	return a
}

// buildFlowReaders opens each configured raw-flow input file and pairs it
// with the FlowReader feeding the matching aggregator Engine's receive
// channel.
func (a *app) buildFlowReaders(inputs inputPaths) []*receiver.FlowReader {
	var readers []*receiver.FlowReader
	specs := []struct {
		path    string
		channel model.Channel
		queue   chan *model.Flow
	}{
		{inputs.blacklistIPFlows, model.ChannelAggregatedIP, a.blIPFlows},
		{inputs.blacklistURLFlows, model.ChannelAggregatedURL, a.blURLFlows},
		{inputs.portscanFlows, model.ChannelAggregatedIP, a.portscanFlows},
		{inputs.hostscanFlows, model.ChannelAggregatedIP, a.hostscanFlows},
	}
	for _, spec := range specs {
		if spec.path == "" {
			continue
		}
		f, err := os.Open(spec.path)
		if err != nil {
			log.Warnf("adaptive-core: could not open flow input %q: %s", spec.path, err)
			continue
		}
		readers = append(readers, receiver.NewFlowReader(spec.channel, receiver.NewFlowSource(f), spec.queue))
	}
	return readers
}

func buildMsgReaders(inputs inputPaths, queue chan receiver.QueueItem) []*receiver.Reader {
	var readers []*receiver.Reader
	if inputs.dnsRecords != "" {
		if f, err := os.Open(inputs.dnsRecords); err == nil {
			readers = append(readers, receiver.NewReader(model.ChannelDNS, receiver.NewDNSSource(f), queue))
		} else {
			log.Warnf("adaptive-core: could not open dns input %q: %s", inputs.dnsRecords, err)
		}
	}
	if inputs.adaptiveRecords != "" {
		if f, err := os.Open(inputs.adaptiveRecords); err == nil {
			readers = append(readers, receiver.NewReader(model.ChannelAdaptive, receiver.NewAdaptiveSource(f), queue))
		} else {
			log.Warnf("adaptive-core: could not open adaptive input %q: %s", inputs.adaptiveRecords, err)
		}
	}
	return readers
}

// teeAggregated fans every event the blacklist engines flush onto
// aggregatedOut out to both aggregatedToClassify and aggregatedToWriter,
// since each consumer needs its own channel (a single send is only ever
// delivered to one receiver).
func (a *app) teeAggregated() {
	for ev := range a.aggregatedOut {
		select {
		case a.aggregatedToClassify <- ev:
		case <-a.ctx.Done():
			return
		}
		select {
		case a.aggregatedToWriter <- ev:
		case <-a.ctx.Done():
			return
		}
	}
}

// forwardAggregatedToClassifier re-reads every teed blacklist event and
// dispatches it into the classifier queue, since blacklist-IP/URL
// aggregator output doubles as classifier input #1 (§6) and as the
// aggregator-out stream (§5 "three long-lived output streams").
func (a *app) forwardAggregatedToClassifier() {
	for ev := range a.aggregatedToClassify {
		evCopy := ev
		item := receiver.QueueItem{Channel: model.ChannelAggregatedIP, Message: &evCopy}
		select {
		case a.classifyQueue <- item:
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts every component, then drives the classifier dequeue loop
// until a stop signal arrives (mirrors Agent.Run's central select).
func (a *app) Run() {
	a.blIPEngine.Start(a.blIPFlows)
	a.blURLEngine.Start(a.blURLFlows)
	a.portscanEng.Start(a.portscanFlows)
	a.hostscanEng.Start(a.hostscanFlows)
	a.sched.Start()
	a.reporterWriter.Start()
	a.evidenceWriter.Start()
	a.aggregatedWriter.Start()

	for _, r := range a.flowReaders {
		go r.Run(a.ctx)
	}
	for _, r := range a.msgReaders {
		go r.Run(a.ctx)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case item := <-a.classifyQueue:
			a.dispatch(item)
		case <-sigCh:
			log.Info("adaptive-core: stop signal received, draining")
			a.shutdown(sigCh)
			return
		case <-a.ctx.Done():
			return
		}
	}
}

// dispatch routes one dequeued item to the controller (C3's Observe for
// scenario-bound channels, IngestSatellite for the adaptive channel).
func (a *app) dispatch(item receiver.QueueItem) {
	rec, satellite := receiver.Dispatch(item)
	if satellite != nil {
		a.ctrl.IngestSatellite(satellite)
		return
	}
	if rec.Aggregated != nil || rec.DNS != nil {
		a.ctrl.Observe(rec)
	}
}

// shutdown performs one final exporter pass (§5 "drained by one final
// exporter pass (optional)") then stops every component. A second signal
// exits immediately without waiting for the drain.
func (a *app) shutdown(sigCh <-chan os.Signal) {
	done := make(chan struct{})
	go func() {
		a.sched.Stop()
		a.exporter.Tick(time.Now())
		a.blIPEngine.Stop()
		a.blURLEngine.Stop()
		a.portscanEng.Stop()
		a.hostscanEng.Stop()
		a.reporterWriter.Stop()
		a.evidenceWriter.Stop()
		a.aggregatedWriter.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-sigCh:
		log.Warn("adaptive-core: second signal received, exiting immediately")
	}
}

func bridgeReporter(in <-chan scenario.Record) <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for rec := range in {
			out <- rec
		}
	}()
	return out
}

func bridgeEvidence(in <-chan controller.EvidenceRecord) <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for rec := range in {
			out <- rec
		}
	}()
	return out
}

func bridgeAggregated(aggIn <-chan model.AggregatedEvent, scanIn <-chan model.ScanEvent) <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		for {
			select {
			case ev, ok := <-aggIn:
				if !ok {
					aggIn = nil
					continue
				}
				out <- ev
			case ev, ok := <-scanIn:
				if !ok {
					scanIn = nil
					continue
				}
				out <- ev
			}
			if aggIn == nil && scanIn == nil {
				return
			}
		}
	}()
	return out
}

func configureLogging(cfg *config.Config) {
	logConfig := fmt.Sprintf(`
<seelog minlevel="%s">
	<outputs formatid="main">
		<console/>
	</outputs>
	<formats>
		<format id="main" format="%%Date %%Level %%Msg%%n"/>
	</formats>
</seelog>`, cfg.LogLevel)

	logger, err := log.LoggerFromConfigAsString(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adaptive-core: failed to configure logging, falling back to disabled logger: %s\n", err)
		log.ReplaceLogger(log.Disabled)
		return
	}
	log.ReplaceLogger(logger)
}
