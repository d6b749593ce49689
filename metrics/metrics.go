// Package metrics is a small in-process registry for the store's operation
// counters and storage gauges.
package metrics

import (
	"sync"
	"time"
)

// Type distinguishes how recorded values combine.
type Type int

const (
	// Counter values accumulate.
	Counter Type = iota

	// Gauge values replace the previous one.
	Gauge
)

// Metric describes a registered series.
type Metric struct {
	Name        string
	Type        Type
	Description string
}

// Value is the current state of a series.
type Value struct {
	Value     float64
	UpdatedAt time.Time
}

// Registry stores and manages metrics. It is safe for concurrent use, so a
// single-threaded store can share it with an exporter goroutine.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	values  map[string]Value
}

func NewRegistry() *Registry {
	return &Registry{
		metrics: make(map[string]Metric),
		values:  make(map[string]Value),
	}
}

// Register adds a series. Registering the same name again replaces its
// description but keeps the recorded value.
func (r *Registry) Register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[m.Name] = m
}

// Add accumulates delta into a registered counter. Unregistered names and
// non-counters are ignored.
func (r *Registry) Add(name string, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metrics[name]; ok && m.Type == Counter {
		v := r.values[name]
		r.values[name] = Value{Value: v.Value + delta, UpdatedAt: time.Now()}
	}
}

// Set records the current value of a registered gauge. Unregistered names
// and non-gauges are ignored.
func (r *Registry) Set(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metrics[name]; ok && m.Type == Gauge {
		r.values[name] = Value{Value: value, UpdatedAt: time.Now()}
	}
}

// Get returns the current state of one series.
func (r *Registry) Get(name string) (Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}

// Snapshot copies the current state of every series with a recorded value.
func (r *Registry) Snapshot() map[string]Value {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Value, len(r.values))
	for name, v := range r.values {
		result[name] = v
	}
	return result
}
