// Package metrics holds the Prometheus collectors for request sends.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reststudio"

// Sends observes every send the executor finishes. A nil *Sends is a valid
// no-op recorder.
type Sends struct {
	total    *prometheus.CounterVec
	duration prometheus.Histogram
	payload  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewSends() *Sends {
	return &Sends{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Requests sent, by terminal history status",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time from dispatch to response body read",
			Buckets:   prometheus.DefBuckets,
		}),
		payload: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_bytes",
			Help:      "Request and response body sizes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"direction"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sends_in_flight",
			Help:      "Sends currently waiting on the network",
		}),
	}
}

// Register adds the collectors to reg. Collectors already registered under
// the same names are adopted so repeated registration is harmless.
func (s *Sends) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	if s.total, err = register(reg, s.total); err != nil {
		return err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return err
	}
	if s.payload, err = register(reg, s.payload); err != nil {
		return err
	}
	if s.inFlight, err = register(reg, s.inFlight); err != nil {
		return err
	}
	return nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// Begin marks a send as in flight. The returned func undoes it.
func (s *Sends) Begin() func() {
	if s == nil {
		return func() {}
	}
	s.inFlight.Inc()
	return s.inFlight.Dec
}

func (s *Sends) Observe(status string, d time.Duration, requestBytes, responseBytes int) {
	if s == nil {
		return
	}
	s.total.WithLabelValues(status).Inc()
	s.duration.Observe(d.Seconds())
	s.payload.WithLabelValues("request").Observe(float64(requestBytes))
	s.payload.WithLabelValues("response").Observe(float64(responseBytes))
}
