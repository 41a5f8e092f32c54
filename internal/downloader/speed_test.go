package downloader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeterColdStart(t *testing.T) {
	m := NewMeter(time.Nanosecond)

	assert.Zero(t, m.Sample(0))
	assert.Zero(t, m.Sample(1000), "first sample after a zero byte count reports 0")
}

func TestMeterCachesWithinPeriod(t *testing.T) {
	m := NewMeter(time.Hour)

	first := m.Sample(100)
	second := m.Sample(5000)

	assert.Equal(t, first, second, "queries inside the sampling period return the cached value")
}

func TestMeterComputesRate(t *testing.T) {
	m := NewMeter(time.Nanosecond)

	m.Sample(100) // cold start, primes the baseline
	time.Sleep(5 * time.Millisecond)

	speed := m.Sample(10100)
	assert.Greater(t, speed, 0.0)
}

func TestMeterHoldsOnNonIncreasingBytes(t *testing.T) {
	m := NewMeter(time.Nanosecond)

	m.Sample(100)
	time.Sleep(5 * time.Millisecond)
	speed := m.Sample(10100)
	assert.Greater(t, speed, 0.0)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, speed, m.Sample(9000), "a shrinking byte count never yields a negative speed")
	assert.Equal(t, speed, m.Sample(10100))
}

func TestMeterReset(t *testing.T) {
	m := NewMeter(time.Nanosecond)

	m.Sample(100)
	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, m.Sample(10100), 0.0)

	m.Reset()
	assert.Zero(t, m.Sample(20000), "a reset meter cold-starts again")
}
