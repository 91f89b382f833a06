package writer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamWriterFlushesOnTicker(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	in := make(chan interface{}, 10)
	var out bytes.Buffer
	w := NewStreamWriter("test.ticker", in, &out, 10*time.Millisecond)
	w.Start()

	in <- map[string]string{"hello": "world"}
	time.Sleep(40 * time.Millisecond)
	w.Stop()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(lines, 1)
	var got map[string]string
	require.NoError(json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal("world", got["hello"])
}

func TestStreamWriterFlushesRemainingRecordsOnStop(t *testing.T) {
	require := require.New(t)

	in := make(chan interface{}, 10)
	var out bytes.Buffer
	w := NewStreamWriter("test.stop", in, &out, time.Hour)
	w.Start()

	in <- map[string]int{"n": 1}
	in <- map[string]int{"n": 2}
	time.Sleep(10 * time.Millisecond)
	w.Stop()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(lines, 2)
}
