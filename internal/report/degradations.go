package report

import (
	"sync"
	"time"

	"github.com/psantana5/landing/pkg/loader"
)

// Degradation is a mount that did not render fetched content
type Degradation struct {
	Module  string         `json:"module" yaml:"module"`
	Outcome loader.Outcome `json:"outcome" yaml:"outcome"`
	Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
	At      time.Time      `json:"at" yaml:"at"`
}

// DegradationLog keeps the last N degraded mounts for the dev endpoints.
type DegradationLog struct {
	samples []Degradation
	maxSize int
	mu      sync.RWMutex
	now     func() time.Time
}

// NewDegradationLog creates a log holding at most maxSize samples
func NewDegradationLog(maxSize int) *DegradationLog {
	if maxSize <= 0 {
		maxSize = 50
	}
	return &DegradationLog{
		samples: make([]Degradation, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Record stores res if it is degraded. Successful mounts are ignored.
func (d *DegradationLog) Record(res loader.Result) {
	if res.OK() {
		return
	}

	sample := Degradation{
		Module:  res.ID,
		Outcome: res.Outcome,
		Error:   res.Error,
		At:      d.now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.samples) >= d.maxSize {
		d.samples = d.samples[1:]
	}
	d.samples = append(d.samples, sample)
}

// RecordReport stores every degraded result of r
func (d *DegradationLog) RecordReport(r *loader.Report) {
	if r == nil {
		return
	}
	for _, res := range r.Results {
		d.Record(res)
	}
}

// Recent returns up to n samples, newest first. n <= 0 returns all.
func (d *DegradationLog) Recent(n int) []Degradation {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if n <= 0 || n > len(d.samples) {
		n = len(d.samples)
	}
	out := make([]Degradation, n)
	for i := 0; i < n; i++ {
		out[i] = d.samples[len(d.samples)-1-i]
	}
	return out
}

// Count returns the number of samples held
func (d *DegradationLog) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.samples)
}
