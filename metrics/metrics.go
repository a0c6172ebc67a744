// Copyright (C) 2021-2026, Ankurah Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics provides the ambient instrumentation surface for the
// causal core. Adapted from the teacher's metrics package (by-name
// Counter/Gauge/Averager registry backed by prometheus), with the
// registration-error-swallowing wrapper removed: the core talks to
// prometheus directly instead of through an extra teacher-internal
// indirection (see DESIGN.md).
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter tracks a monotonically increasing count.
type Counter interface {
	Inc()
	Add(delta int64)
	Read() int64
}

type counter struct {
	mu    sync.RWMutex
	value int64
	prom  prometheus.Counter
}

func (c *counter) Inc() { c.Add(1) }

func (c *counter) Add(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
	if c.prom != nil && delta > 0 {
		c.prom.Add(float64(delta))
	}
}

func (c *counter) Read() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Histogram tracks a distribution of observed values.
type Histogram interface {
	Observe(value float64)
}

type histogram struct {
	prom prometheus.Histogram
}

func (h *histogram) Observe(value float64) {
	if h.prom != nil {
		h.prom.Observe(value)
	}
}

// Registry is a named collection of counters and histograms, constructed
// once per embedding process and handed to entity.NewPipeline, which
// shares it with the compare and backend code it drives.
type Registry struct {
	mu         sync.RWMutex
	prom       prometheus.Registerer
	counters   map[string]Counter
	histograms map[string]Histogram
}

// NewRegistry returns a Registry that registers its instruments against
// reg. Pass a fresh prometheus.NewRegistry() per embedded instance to
// avoid "duplicate metrics collector registration" across instances; pass
// nil for NewNoOp semantics.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{
		prom:       reg,
		counters:   make(map[string]Counter),
		histograms: make(map[string]Histogram),
	}
}

// NewNoOp returns a Registry that never touches prometheus, safe to
// construct repeatedly in tests.
func NewNoOp() *Registry {
	return NewRegistry(nil)
}

// Counter returns the named counter, creating and registering it with
// help text help on first use.
func (r *Registry) Counter(name, help string) Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &counter{}
	if r.prom != nil {
		c.prom = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ankurah",
			Name:      name,
			Help:      help,
		})
		r.prom.MustRegister(c.prom)
	}
	r.counters[name] = c
	return c
}

// Histogram returns the named histogram, creating and registering it with
// the given bucket boundaries on first use.
func (r *Registry) Histogram(name, help string, buckets []float64) Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := &histogram{}
	if r.prom != nil {
		h.prom = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ankurah",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		})
		r.prom.MustRegister(h.prom)
	}
	r.histograms[name] = h
	return h
}

// GetCounter looks up a previously-created counter by name.
func (r *Registry) GetCounter(name string) (Counter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.counters[name]
	if !ok {
		return nil, fmt.Errorf("metrics: counter %q not found", name)
	}
	return c, nil
}

// Standard instrument names shared across compare/layer/backend/entity.
const (
	CompareFetches       = "compare_event_fetches_total"
	BudgetExceededTotal  = "compare_budget_exceeded_total"
	BudgetEscalatedTotal = "compare_budget_escalated_total"
	TOCTOURetriesTotal   = "entity_toctou_retries_total"
	ConcurrencyExhausted = "entity_concurrency_exhausted_total"
	MergesAppliedTotal   = "entity_merges_applied_total"
	LayersPerMerge       = "entity_layers_per_merge"
	LWWTieBreaksTotal    = "backend_lww_tiebreaks_total"
)
