package receiver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/Nemea-Detectors/model"
)

func TestJSONLineSourceDecodesAggregatedEvents(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	body := `{"type":"ip","source":"1.2.3.4","blacklist_id":1}` + "\n" +
		`{"type":"url","source":"evil.example","blacklist_id":2}` + "\n"
	src := NewAggregatedIPSource(strings.NewReader(body))

	res, err := src.Receive(context.Background())
	require.NoError(err)
	require.Equal(ResultMessage, res.Kind)
	ev, ok := res.Message.(*model.AggregatedEvent)
	require.True(ok)
	assert.Equal("1.2.3.4", ev.Source)

	res, err = src.Receive(context.Background())
	require.NoError(err)
	ev = res.Message.(*model.AggregatedEvent)
	assert.Equal("evil.example", ev.Source)

	res, err = src.Receive(context.Background())
	require.NoError(err)
	assert.Equal(ResultEndOfStream, res.Kind)
}

func TestJSONLineSourceSkipsBlankLines(t *testing.T) {
	require := require.New(t)

	body := "\n\n" + `{"dns_name":"example.org"}` + "\n"
	src := NewDNSSource(strings.NewReader(body))

	res, err := src.Receive(context.Background())
	require.NoError(err)
	require.Equal(ResultMessage, res.Kind)
	rec := res.Message.(*model.DNSRecord)
	require.Equal("example.org", rec.DNSName)
}

func TestJSONLineSourceReturnsErrorOnMalformedLine(t *testing.T) {
	require := require.New(t)

	src := NewAdaptiveSource(strings.NewReader("{not json}\n"))
	_, err := src.Receive(context.Background())
	require.Error(err)
}
