// Package metrics exports core.MetricsRecorder observations to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-orgcreator/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "orgcreator"

// PrometheusRecorder lazily registers one vector per metric name. The label
// set of a metric is fixed by its first observation; later observations with
// other tag keys are folded onto that set.
type PrometheusRecorder struct {
	Namespace string
	Buckets   []float64

	registry   *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*vecEntry[*prometheus.CounterVec]
	histograms map[string]*vecEntry[*prometheus.HistogramVec]
}

type vecEntry[V any] struct {
	vec    V
	labels []string
}

func NewPrometheusRecorder(registry *prometheus.Registry) *PrometheusRecorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &PrometheusRecorder{
		Namespace:  DefaultNamespace,
		Buckets:    []float64{5, 25, 100, 250, 1000, 5000, 15000, 30000},
		registry:   registry,
		counters:   map[string]*vecEntry[*prometheus.CounterVec]{},
		histograms: map[string]*vecEntry[*prometheus.HistogramVec]{},
	}
}

func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	metricName := r.metricName(name)
	if metricName == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.counters[metricName]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricName,
			Help: "orgcreator counter " + strings.TrimSpace(name),
		}, labels)
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		entry = &vecEntry[*prometheus.CounterVec]{vec: vec, labels: labels}
		r.counters[metricName] = entry
	}
	r.mu.Unlock()
	entry.vec.WithLabelValues(labelValues(entry.labels, tags)...).Add(float64(value))
}

func (r *PrometheusRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metricName := r.metricName(name)
	if metricName == "" {
		return
	}
	r.mu.Lock()
	entry, ok := r.histograms[metricName]
	if !ok {
		labels := labelNames(tags)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricName,
			Help:    "orgcreator histogram " + strings.TrimSpace(name),
			Buckets: r.Buckets,
		}, labels)
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		entry = &vecEntry[*prometheus.HistogramVec]{vec: vec, labels: labels}
		r.histograms[metricName] = entry
	}
	r.mu.Unlock()
	entry.vec.WithLabelValues(labelValues(entry.labels, tags)...).Observe(value)
}

// metricName turns "orgcreator.handle.total" into "orgcreator_handle_total".
// The namespace is prefixed only when the name does not already carry it.
func (r *PrometheusRecorder) metricName(name string) string {
	sanitized := SanitizeName(name)
	if sanitized == "" {
		return ""
	}
	namespace := SanitizeName(r.Namespace)
	if namespace == "" || sanitized == namespace || strings.HasPrefix(sanitized, namespace+"_") {
		return sanitized
	}
	return namespace + "_" + sanitized
}

// SanitizeName maps a dotted metric or tag name onto the Prometheus charset.
func SanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	lastUnderscore := false
	for _, ch := range name {
		valid := (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_'
		if !valid {
			ch = '_'
		}
		if ch == '_' {
			if lastUnderscore || b.Len() == 0 {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(ch)
	}
	out := strings.TrimRight(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

func labelNames(tags map[string]string) []string {
	labels := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for key := range tags {
		label := SanitizeName(key)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func labelValues(labels []string, tags map[string]string) []string {
	normalized := make(map[string]string, len(tags))
	for key, value := range tags {
		normalized[SanitizeName(key)] = value
	}
	values := make([]string, len(labels))
	for i, label := range labels {
		values[i] = normalized[label]
	}
	return values
}

var _ core.MetricsRecorder = (*PrometheusRecorder)(nil)
