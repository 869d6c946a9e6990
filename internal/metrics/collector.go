// Package metrics keeps in-process counters for the response pipeline and
// renders them in Prometheus text exposition format.
package metrics

import (
	"bufio"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector holds every pipeline metric and serves them at /metrics.
var Collector = NewRegistry()

type kind string

const (
	kindCounter   kind = "counter"
	kindGauge     kind = "gauge"
	kindHistogram kind = "histogram"
)

// series is one labelled sample set inside a family.
type series interface {
	write(w *bufio.Writer, name, labels string)
}

// family groups the series sharing a metric name. The exposition format
// requires them to be rendered together under one HELP/TYPE header.
type family struct {
	name   string
	help   string
	kind   kind
	series map[string]series // labels -> series
}

// Registry owns metric families keyed by name.
type Registry struct {
	mu        sync.RWMutex
	families  map[string]*family
	startTime time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*family), startTime: time.Now()}
}

// Uptime reports how long the registry has existed.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// lookup returns the series for name+labels, creating it with create on
// first use. Reusing a name with a different kind panics: it is a
// programming error caught at package init.
func (r *Registry) lookup(name, help string, k kind, labels string, create func() series) series {
	r.mu.RLock()
	if f, ok := r.families[name]; ok {
		if s, ok := f.series[labels]; ok && f.kind == k {
			r.mu.RUnlock()
			return s
		}
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[name]
	if !ok {
		f = &family{name: name, help: help, kind: k, series: make(map[string]series)}
		r.families[name] = f
	}
	if f.kind != k {
		panic(fmt.Sprintf("metrics: %s registered as %s, requested as %s", name, f.kind, k))
	}
	s, ok := f.series[labels]
	if !ok {
		s = create()
		f.series[labels] = s
	}
	return s
}

// Counter returns the counter for name and labels (e.g. `kind="image"`).
func (r *Registry) Counter(name, help, labels string) *Counter {
	return r.lookup(name, help, kindCounter, labels, func() series { return &Counter{} }).(*Counter)
}

// Gauge returns the gauge for name and labels.
func (r *Registry) Gauge(name, help, labels string) *Gauge {
	return r.lookup(name, help, kindGauge, labels, func() series { return &Gauge{} }).(*Gauge)
}

// Histogram returns the histogram for name and labels. Bounds are only used
// when the series is first created.
func (r *Registry) Histogram(name, help, labels string, bounds []float64) *Histogram {
	return r.lookup(name, help, kindHistogram, labels, func() series { return newHistogram(bounds) }).(*Histogram)
}

// Counter only goes up.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc() { c.v.Add(1) }
func (c *Counter) Add(n int64) { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

func (c *Counter) write(w *bufio.Writer, name, labels string) {
	fmt.Fprintf(w, "%s %d\n", sample(name, labels, ""), c.Value())
}

// Gauge moves both ways.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Set(n int64) { g.v.Store(n) }
func (g *Gauge) Inc() { g.v.Add(1) }
func (g *Gauge) Dec() { g.v.Add(-1) }
func (g *Gauge) Value() int64 { return g.v.Load() }

func (g *Gauge) write(w *bufio.Writer, name, labels string) {
	fmt.Fprintf(w, "%s %d\n", sample(name, labels, ""), g.Value())
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []int64 // counts[i]: observations <= bounds[i]
	count  int64
	sum    float64
}

func newHistogram(bounds []float64) *Histogram {
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]int64, len(b))}
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// Snapshot returns the cumulative bucket counts, the total count and the sum.
func (h *Histogram) Snapshot() (buckets []int64, count int64, sum float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.counts...), h.count, h.sum
}

func (h *Histogram) write(w *bufio.Writer, name, labels string) {
	buckets, count, sum := h.Snapshot()
	for i, le := range h.bounds {
		le := `le="` + strconv.FormatFloat(le, 'g', -1, 64) + `"`
		fmt.Fprintf(w, "%s %d\n", sample(name+"_bucket", labels, le), buckets[i])
	}
	fmt.Fprintf(w, "%s %d\n", sample(name+"_bucket", labels, `le="+Inf"`), count)
	fmt.Fprintf(w, "%s %s\n", sample(name+"_sum", labels, ""), strconv.FormatFloat(sum, 'g', -1, 64))
	fmt.Fprintf(w, "%s %d\n", sample(name+"_count", labels, ""), count)
}

// sample renders name{labels,extra}, omitting braces when both are empty.
func sample(name, labels, extra string) string {
	switch {
	case labels == "" && extra == "":
		return name
	case labels == "":
		return name + "{" + extra + "}"
	case extra == "":
		return name + "{" + labels + "}"
	}
	return name + "{" + labels + "," + extra + "}"
}

// writeText renders every family sorted by name, series sorted by labels.
func (r *Registry) writeText(w *bufio.Writer) {
	fmt.Fprintf(w, "# HELP shapebot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(w, "# TYPE shapebot_uptime_seconds gauge\n")
	fmt.Fprintf(w, "shapebot_uptime_seconds %d\n", int64(r.Uptime().Seconds()))

	r.mu.RLock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := r.families[name]
		labels := make([]string, 0, len(f.series))
		for l := range f.series {
			labels = append(labels, l)
		}
		sort.Strings(labels)

		fmt.Fprintf(w, "# HELP %s %s\n", f.name, escapeHelp(f.help))
		fmt.Fprintf(w, "# TYPE %s %s\n", f.name, f.kind)
		for _, l := range labels {
			f.series[l].write(w, f.name, l)
		}
	}
	r.mu.RUnlock()
}

func escapeHelp(s string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(s)
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		bw := bufio.NewWriter(w)
		r.writeText(bw)
		bw.Flush()
	}
}

var (
	MessagesSeen    = Collector.Counter("shapebot_messages_total", "Chat messages evaluated by the trigger", "")
	ForcedTriggers  = Collector.Counter("shapebot_triggers_total", "Messages that fired the pipeline", `mode="forced"`)
	PassiveTriggers = Collector.Counter("shapebot_triggers_total", "Messages that fired the pipeline", `mode="passive"`)
	GateVetoes      = Collector.Counter("shapebot_gate_vetoes_total", "Passive triggers vetoed by the relevance gate", "")
	GateErrors      = Collector.Counter("shapebot_gate_errors_total", "Relevance gate classifier failures", "")
	RelayRequests   = Collector.Counter("shapebot_relay_requests_total", "Generation backend requests", "")
	RelayFailures   = Collector.Counter("shapebot_relay_failures_total", "Failed generation backend requests", "")
	RepliesSent     = Collector.Counter("shapebot_replies_total", "Replies delivered to chat", "")
	InFlight        = Collector.Gauge("shapebot_invocations_in_flight", "Pipeline invocations currently running", "")

	RelayLatency = Collector.Histogram("shapebot_relay_latency_seconds", "Generation backend latency in seconds", "",
		[]float64{0.5, 1, 2, 5, 10, 20, 30})
	ToolLatency = Collector.Histogram("shapebot_tool_latency_seconds", "Directive tool latency in seconds", "",
		[]float64{0.5, 1, 5, 10, 30, 60, 120})
)

// Directives returns the counter for one directive kind.
func Directives(kind string) *Counter {
	return Collector.Counter("shapebot_directives_total", "Reply directives dispatched", `kind="`+kind+`"`)
}
