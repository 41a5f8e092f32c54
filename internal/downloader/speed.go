package downloader

import (
	"sync"
	"time"
)

// DefaultSamplePeriod is the minimum time between speed samples.
// Instantaneous rates over shorter windows are too noisy to display.
const DefaultSamplePeriod = 500 * time.Millisecond

// Meter computes transfer speed as delta-bytes over delta-time with a
// minimum sampling period. Queries inside the period return the cached
// value, a cold start reports 0, and a non-increasing byte count holds the
// previous speed so the reading never goes negative.
type Meter struct {
	mu        sync.Mutex
	period    time.Duration
	lastBytes int64
	lastTime  time.Time
	speed     float64
}

func NewMeter(period time.Duration) *Meter {
	if period <= 0 {
		period = DefaultSamplePeriod
	}
	return &Meter{period: period}
}

// Sample feeds the current completed byte count and returns bytes/second.
func (m *Meter) Sample(current int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if !m.lastTime.IsZero() && now.Sub(m.lastTime) < m.period {
		return m.speed
	}

	if m.lastBytes == 0 {
		m.lastBytes = current
		m.lastTime = now
		m.speed = 0
		return 0
	}

	if current <= m.lastBytes {
		return m.speed
	}

	m.speed = float64(current-m.lastBytes) / now.Sub(m.lastTime).Seconds()
	m.lastBytes = current
	m.lastTime = now
	return m.speed
}

// Reset clears the meter for a fresh pass.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBytes = 0
	m.lastTime = time.Time{}
	m.speed = 0
}
