package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerFiresCallbackRepeatedly(t *testing.T) {
	assert := assert.New(t)

	var calls int64
	s := New(10*time.Millisecond, func(time.Time) {
		atomic.AddInt64(&calls, 1)
	})
	s.Start()
	time.Sleep(55 * time.Millisecond)
	s.Stop()

	got := atomic.LoadInt64(&calls)
	assert.GreaterOrEqual(got, int64(3))
}

func TestSchedulerStopPreventsFurtherCallbacks(t *testing.T) {
	assert := assert.New(t)

	var calls int64
	s := New(5*time.Millisecond, func(time.Time) {
		atomic.AddInt64(&calls, 1)
	})
	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	afterStop := atomic.LoadInt64(&calls)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(afterStop, atomic.LoadInt64(&calls))
}

func TestSchedulerSlowCallbackDoesNotPileUpTicks(t *testing.T) {
	assert := assert.New(t)

	var running int32
	var overlap int32
	s := New(5*time.Millisecond, func(time.Time) {
		if !atomic.CompareAndSwapInt32(&running, 0, 1) {
			atomic.AddInt32(&overlap, 1)
			return
		}
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&running, 0)
	})
	s.Start()
	time.Sleep(80 * time.Millisecond)
	s.Stop()

	assert.Equal(int32(0), atomic.LoadInt32(&overlap), "callback must never run concurrently with itself")
}
