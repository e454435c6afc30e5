// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package install

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultInstalled = "installed"
	resultPresent   = "present"
	resultFailed    = "failed"
)

// Metrics records installer activity. A nil *Metrics records nothing.
type Metrics struct {
	Installs *prometheus.CounterVec
	Duration prometheus.Histogram
}

// NewMetrics returns unregistered installer metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprout_install_total",
				Help: "Number of specs handled by the installer, by result.",
			},
			[]string{"result"},
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sprout_install_duration_seconds",
				Help:    "Time taken to fetch, build and install one spec.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}
}

// MustRegister registers every collector with r.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.Installs, m.Duration)
}

func (m *Metrics) observe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Installs.WithLabelValues(result).Inc()
	if result == resultInstalled {
		m.Duration.Observe(d.Seconds())
	}
}
