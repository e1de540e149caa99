package build

import (
	"sync"
	"time"
)

// Metrics tracks build counts and durations.
type Metrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastBuild        time.Time
	mutex            sync.RWMutex
}

// NewMetrics creates an empty metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordBuild records a build result in the metrics
func (m *Metrics) RecordBuild(result Result) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalBuilds++
	m.TotalDuration += result.Duration
	m.LastBuild = time.Now()

	if result.Error != nil {
		m.FailedBuilds++
	} else {
		m.SuccessfulBuilds++
	}

	m.AverageDuration = m.TotalDuration / time.Duration(m.TotalBuilds)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		TotalBuilds:      m.TotalBuilds,
		SuccessfulBuilds: m.SuccessfulBuilds,
		FailedBuilds:     m.FailedBuilds,
		AverageDuration:  m.AverageDuration,
		TotalDuration:    m.TotalDuration,
		LastBuild:        m.LastBuild,
	}
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.TotalBuilds = 0
	m.SuccessfulBuilds = 0
	m.FailedBuilds = 0
	m.AverageDuration = 0
	m.TotalDuration = 0
	m.LastBuild = time.Time{}
}

// SuccessRate returns the share of successful builds as a percentage.
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.TotalBuilds == 0 {
		return 0.0
	}

	return float64(m.SuccessfulBuilds) / float64(m.TotalBuilds) * 100.0
}
