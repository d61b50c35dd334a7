// Package stats maintains rolling per-metric statistics for anomaly detection.
package stats

import (
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Percentiles reported for every metric window.
var Percentiles = []int{25, 50, 75, 90, 95, 99}

// Sample is one timestamped observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Statistics is a snapshot of a metric window. It is always a copy.
type Statistics struct {
	Count       int             `json:"count"`
	Mean        float64         `json:"mean"`
	Variance    float64         `json:"variance"`
	StdDev      float64         `json:"std_dev"`
	Min         float64         `json:"min"`
	Max         float64         `json:"max"`
	Percentiles map[int]float64 `json:"percentiles"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Percentile returns the p-th percentile, or 0 when absent.
func (s Statistics) Percentile(p int) float64 {
	return s.Percentiles[p]
}

type series struct {
	samples     []Sample
	stats       Statistics
	lastUpdated time.Time
}

// Tracker keeps a bounded FIFO window per metric name.
type Tracker struct {
	mu         sync.RWMutex
	windowSize int
	series     map[string]*series
}

// NewTracker creates a tracker holding at most windowSize samples per metric.
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Tracker{
		windowSize: windowSize,
		series:     make(map[string]*series),
	}
}

// Record appends a sample and returns the updated statistics.
func (t *Tracker) Record(name string, ts time.Time, value float64) Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.appendLocked(name, ts, value)
	return s.stats.clone()
}

// Observe appends a sample and returns the statistics of the window as it
// stood before the sample was added. The detector judges a value against
// this baseline so the value under test never dilutes its own reference.
func (t *Tracker) Observe(name string, ts time.Time, value float64) Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	var baseline Statistics
	if s, ok := t.series[name]; ok {
		baseline = s.stats.clone()
	}
	t.appendLocked(name, ts, value)
	return baseline
}

func (t *Tracker) appendLocked(name string, ts time.Time, value float64) *series {
	s, ok := t.series[name]
	if !ok {
		s = &series{}
		t.series[name] = s
	}

	s.samples = append(s.samples, Sample{Timestamp: ts, Value: value})
	if over := len(s.samples) - t.windowSize; over > 0 {
		s.samples = slices.Delete(s.samples, 0, over)
	}
	s.lastUpdated = ts
	s.stats = compute(s.samples, ts)
	return s
}

// Get returns the current statistics for a metric.
func (t *Tracker) Get(name string) (Statistics, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.series[name]
	if !ok {
		return Statistics{}, false
	}
	return s.stats.clone(), true
}

// Samples returns a copy of the window for a metric.
func (t *Tracker) Samples(name string) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.series[name]
	if !ok {
		return nil
	}
	return slices.Clone(s.samples)
}

// Len returns the number of tracked metrics.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.series)
}

// Prune drops samples older than cutoff and forgets metrics whose window
// becomes empty. It returns the number of samples removed.
func (t *Tracker) Prune(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for name, s := range t.series {
		keep := 0
		for keep < len(s.samples) && s.samples[keep].Timestamp.Before(cutoff) {
			keep++
		}
		if keep == 0 {
			continue
		}
		removed += keep
		s.samples = slices.Delete(s.samples, 0, keep)
		if len(s.samples) == 0 {
			delete(t.series, name)
			continue
		}
		s.stats = compute(s.samples, s.lastUpdated)
	}
	return removed
}

// compute derives statistics from a freshly sorted copy of the window.
func compute(samples []Sample, updated time.Time) Statistics {
	out := Statistics{
		Count:       len(samples),
		Percentiles: make(map[int]float64, len(Percentiles)),
		LastUpdated: updated,
	}
	if len(samples) == 0 {
		for _, p := range Percentiles {
			out.Percentiles[p] = 0
		}
		return out
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}

	out.Mean, out.Variance = stat.PopMeanVariance(values, nil)
	out.StdDev = math.Sqrt(out.Variance)
	out.Min = floats.Min(values)
	out.Max = floats.Max(values)

	slices.Sort(values)
	n := len(values)
	for _, p := range Percentiles {
		idx := int(math.Floor(float64(p) / 100 * float64(n-1)))
		out.Percentiles[p] = values[idx]
	}
	return out
}

func (s Statistics) clone() Statistics {
	c := s
	if s.Percentiles != nil {
		c.Percentiles = make(map[int]float64, len(s.Percentiles))
		for k, v := range s.Percentiles {
			c.Percentiles[k] = v
		}
	}
	return c
}
