package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newRecordingDelay(config TimingConfig) (*TimingDelay, *[]time.Duration) {
	var slept []time.Duration
	td := NewTimingDelay(config)
	td.sleep = func(d time.Duration) { slept = append(slept, d) }
	return td, &slept
}

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	td, slept := newRecordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond, Jitter: 50 * time.Millisecond})

	td.WaitFrom(time.Now(), false)

	if assert.Len(t, *slept, 1) {
		assert.Greater(t, (*slept)[0], 90*time.Millisecond)
		assert.LessOrEqual(t, (*slept)[0], 150*time.Millisecond)
	}
}

func TestTimingDelay_WaitFrom_OnSuccess_NoDelay(t *testing.T) {
	td, slept := newRecordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond})

	td.WaitFrom(time.Now(), true)

	assert.Empty(t, *slept)
}

func TestTimingDelay_WaitFrom_OnSuccess_WithDelay(t *testing.T) {
	td, slept := newRecordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond, DelayOnSuccess: true})

	td.WaitFrom(time.Now(), true)

	assert.Len(t, *slept, 1)
}

func TestTimingDelay_WaitFrom_AdjustsForElapsedTime(t *testing.T) {
	td, slept := newRecordingDelay(TimingConfig{BaseDelay: 100 * time.Millisecond})

	td.WaitFrom(time.Now().Add(-60*time.Millisecond), false)

	if assert.Len(t, *slept, 1) {
		assert.LessOrEqual(t, (*slept)[0], 40*time.Millisecond)
	}
}

func TestTimingDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	td, slept := newRecordingDelay(TimingConfig{BaseDelay: 50 * time.Millisecond})

	td.WaitFrom(time.Now().Add(-time.Second), false)

	assert.Empty(t, *slept)
}

func TestCryptoRandDuration_Bounds(t *testing.T) {
	assert.Zero(t, cryptoRandDuration(0))
	for i := 0; i < 100; i++ {
		d := cryptoRandDuration(10 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 10*time.Millisecond)
	}
}
