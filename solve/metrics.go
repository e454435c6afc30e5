// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sprout-pm/sprout/spec"
)

// Metrics records concretizer runs. A nil *Metrics records nothing.
type Metrics struct {
	Solves     *prometheus.CounterVec
	Backtracks prometheus.Counter
	Duration   prometheus.Histogram
}

// NewMetrics returns unregistered solver metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprout_solve_total",
				Help: "Number of concretizations by result.",
			},
			[]string{"result"},
		),
		Backtracks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sprout_solve_backtracks_total",
				Help: "Total number of backtracking attempts made by the concretizer.",
			},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sprout_solve_duration_seconds",
				Help:    "Time taken to concretize a set of roots.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.Solves, m.Backtracks, m.Duration)
}

func (m *Metrics) observe(start time.Time, attempts int, err error) {
	if m == nil {
		return
	}
	m.Solves.WithLabelValues(resultLabel(err)).Inc()
	m.Backtracks.Add(float64(attempts))
	m.Duration.Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch errors.Cause(err).(type) {
	case nil:
		return "success"
	case *spec.UnsatisfiableSpecError:
		return "unsatisfiable"
	case *SolveTimeoutError:
		return "timeout"
	}
	return "error"
}
