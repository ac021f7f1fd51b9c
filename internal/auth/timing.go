package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for failed-login padding
type TimingConfig struct {
	BaseDelay      time.Duration
	Jitter         time.Duration
	DelayOnSuccess bool
}

// TimingDelay pads failed logins to a floor of BaseDelay plus random jitter so
// an unknown username, a wrong password and a disabled account take about
// the same time.
type TimingDelay struct {
	config TimingConfig
	sleep  func(time.Duration)
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  time.Sleep,
	}
}

// cryptoRandDuration returns a random duration in [0, max).
func cryptoRandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(max))
}

// target is the total duration an attempt should take.
func (td *TimingDelay) target() time.Duration {
	return td.config.BaseDelay + cryptoRandDuration(td.config.Jitter)
}

// WaitFrom sleeps until at least the target duration has passed since start.
// Time already spent in hashing counts toward the target.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if success && !td.config.DelayOnSuccess {
		return
	}

	if remaining := td.target() - time.Since(start); remaining > 0 {
		td.sleep(remaining)
	}
}
