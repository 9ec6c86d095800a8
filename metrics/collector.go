// Package metrics counts what the logging runtime does with records: emitted,
// dropped below threshold, appender failures, rotations and reloads.
package metrics

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter names.
const (
	Emitted          = "records_emitted_total"
	Dropped          = "records_dropped_total"
	AppenderErrors   = "appender_errors_total"
	RotationFailures = "rotation_failures_total"
	HookErrors       = "hook_errors_total"
	Reloads          = "reloads_total"
	ReloadFailures   = "reload_failures_total"
)

// Collector holds labeled counters and gauges.
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex

	// Unlabeled hot-path counters.
	emitted atomic.Int64
	dropped atomic.Int64
}

// Metric is one labeled series.
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
	}
}

// IncCounter adds one to a labeled counter.
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter adds value to a labeled counter.
func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := buildKey(name, labels)
	if metric, exists := c.metrics[key]; exists {
		metric.Value += value
		metric.Timestamp = time.Now().Unix()
		return
	}
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      "counter",
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now().Unix(),
	}
}

// SetGauge sets a labeled gauge.
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics[buildKey(name, labels)] = &Metric{
		Name:      name,
		Type:      "gauge",
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now().Unix(),
	}
}

// RecordEmitted counts a record handed to at least one appender.
func (c *Collector) RecordEmitted() {
	c.emitted.Add(1)
}

// RecordDropped counts a record rejected by its logger's level.
func (c *Collector) RecordDropped() {
	c.dropped.Add(1)
}

// RecordAppenderError counts a failed append or close.
func (c *Collector) RecordAppenderError(appender string) {
	c.IncCounter(AppenderErrors, map[string]string{"appender": appender})
}

// RecordRotationFailure counts a rotation that failed open.
func (c *Collector) RecordRotationFailure(appender string) {
	c.IncCounter(RotationFailures, map[string]string{"appender": appender})
}

// RecordHookError counts a hook that failed or panicked.
func (c *Collector) RecordHookError() {
	c.IncCounter(HookErrors, nil)
}

// RecordReload counts a reload attempt by outcome.
func (c *Collector) RecordReload(err error) {
	if err != nil {
		c.IncCounter(ReloadFailures, nil)
		return
	}
	c.IncCounter(Reloads, nil)
}

// SetActiveAppenders reports the appender count of the current configuration.
func (c *Collector) SetActiveAppenders(n int) {
	c.SetGauge("active_appenders", float64(n), nil)
}

// Value returns the current value of a counter or gauge, zero when unknown.
func (c *Collector) Value(name string, labels map[string]string) float64 {
	switch name {
	case Emitted:
		return float64(c.emitted.Load())
	case Dropped:
		return float64(c.dropped.Load())
	}
	if m := c.GetMetric(name, labels); m != nil {
		return m.Value
	}
	return 0
}

// Total sums a metric across all label sets.
func (c *Collector) Total(name string) float64 {
	switch name {
	case Emitted, Dropped:
		return c.Value(name, nil)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	var total float64
	for _, m := range c.metrics {
		if m.Name == name {
			total += m.Value
		}
	}
	return total
}

// buildKey orders labels so equal label sets map to one series.
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString(":")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// GetMetrics returns a copy of every labeled series plus the hot-path counters.
func (c *Collector) GetMetrics() map[string]*Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now().Unix()
	result := make(map[string]*Metric, len(c.metrics)+2)
	for k, v := range c.metrics {
		m := *v
		result[k] = &m
	}
	result[Emitted] = &Metric{Name: Emitted, Type: "counter", Value: float64(c.emitted.Load()), Timestamp: now}
	result[Dropped] = &Metric{Name: Dropped, Type: "counter", Value: float64(c.dropped.Load()), Timestamp: now}
	return result
}

// GetMetric returns one series or nil.
func (c *Collector) GetMetric(name string, labels map[string]string) *Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if m, ok := c.metrics[buildKey(name, labels)]; ok {
		cp := *m
		return &cp
	}
	return nil
}

// Reset clears all series.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
	c.emitted.Store(0)
	c.dropped.Store(0)
}
