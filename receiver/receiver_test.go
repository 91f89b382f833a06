package receiver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/Nemea-Detectors/model"
)

// scriptedSource replays a fixed sequence of results/errors, then reports
// end-of-stream forever.
type scriptedSource struct {
	results []Result
	errs    []error
	i       int
}

func (s *scriptedSource) Receive(ctx context.Context) (Result, error) {
	if s.i >= len(s.results) {
		return Result{Kind: ResultEndOfStream}, nil
	}
	idx := s.i
	s.i++
	if s.errs[idx] != nil {
		return Result{}, s.errs[idx]
	}
	return s.results[idx], nil
}

func TestReaderDiscardsMalformedRecordsAndContinues(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	src := &scriptedSource{
		results: []Result{{}, {Kind: ResultMessage, Message: &model.AggregatedEvent{Source: "10.0.0.1"}}},
		errs:    []error{errors.New("bad utf-8"), nil},
	}
	queue := make(chan QueueItem, 10)
	r := NewReader(model.ChannelAggregatedIP, src, queue)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Run(ctx)

	require.Len(queue, 1)
	item := <-queue
	ev, ok := item.Message.(*model.AggregatedEvent)
	require.True(ok)
	assert.Equal("10.0.0.1", ev.Source)
}

func TestReaderStopsOnlyItselfOnEndOfStream(t *testing.T) {
	assert := assert.New(t)

	src := &scriptedSource{
		results: []Result{{Kind: ResultEndOfStream}},
		errs:    []error{nil},
	}
	queue := make(chan QueueItem, 10)
	r := NewReader(model.ChannelDNS, src, queue)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		assert.Fail("reader did not stop on end-of-stream")
	}
}

func TestReaderRetriesOnFullQueueInsteadOfDropping(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	src := &scriptedSource{
		results: []Result{{Kind: ResultMessage, Message: &model.AggregatedEvent{Source: "a"}}},
		errs:    []error{nil},
	}
	queue := make(chan QueueItem) // unbuffered: forces the backoff/retry path
	r := NewReader(model.ChannelAggregatedIP, src, queue)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(150 * time.Millisecond) // let it spin through at least one retry
	item := <-queue
	ev, ok := item.Message.(*model.AggregatedEvent)
	require.True(ok)
	assert.Equal("a", ev.Source)

	<-done
}

func TestDispatchRoutesByChannel(t *testing.T) {
	assert := assert.New(t)

	rec, sat := Dispatch(QueueItem{Channel: model.ChannelAggregatedIP, Message: &model.AggregatedEvent{Source: "x"}})
	assert.NotNil(rec.Aggregated)
	assert.Nil(sat)

	rec, sat = Dispatch(QueueItem{Channel: model.ChannelDNS, Message: &model.DNSRecord{DNSName: "x"}})
	assert.NotNil(rec.DNS)
	assert.Nil(sat)

	rec, sat = Dispatch(QueueItem{Channel: model.ChannelAdaptive, Message: &model.AdaptiveRecord{AdaptiveIDs: "u1"}})
	assert.Nil(rec.Aggregated)
	assert.Nil(rec.DNS)
	require.NotNil(t, sat)
	assert.Equal("u1", sat.AdaptiveIDs)
}
