// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package face

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts face traffic. A nil *Metrics is valid and counts
// nothing.
type Metrics struct {
	InterestsExpressed prometheus.Counter
	InterestsReceived  prometheus.Counter
	DataReceived       prometheus.Counter
	DataSent           prometheus.Counter
	Timeouts           prometheus.Counter
	Nacks              prometheus.Counter
}

// NewMetrics creates the face counters and registers them with
// registerer. A nil registerer leaves them unregistered, which tests
// use to read values without a global registry.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cnl",
			Subsystem: "face",
			Name:      name,
			Help:      help,
		})
	}
	metrics := &Metrics{
		InterestsExpressed: counter("interests_expressed_total", "Interests sent by local consumers."),
		InterestsReceived:  counter("interests_received_total", "Interests dispatched to a registered prefix."),
		DataReceived:       counter("data_received_total", "Data packets that satisfied a pending Interest."),
		DataSent:           counter("data_sent_total", "Data packets put by local producers."),
		Timeouts:           counter("timeouts_total", "Interests whose lifetime elapsed without Data."),
		Nacks:              counter("nacks_total", "Interests rejected by the network."),
	}
	if registerer != nil {
		registerer.MustRegister(
			metrics.InterestsExpressed,
			metrics.InterestsReceived,
			metrics.DataReceived,
			metrics.DataSent,
			metrics.Timeouts,
			metrics.Nacks,
		)
	}
	return metrics
}

func (m *Metrics) interestExpressed() {
	if m != nil {
		m.InterestsExpressed.Inc()
	}
}

func (m *Metrics) interestReceived() {
	if m != nil {
		m.InterestsReceived.Inc()
	}
}

func (m *Metrics) dataReceived() {
	if m != nil {
		m.DataReceived.Inc()
	}
}

func (m *Metrics) dataSent() {
	if m != nil {
		m.DataSent.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.Timeouts.Inc()
	}
}

func (m *Metrics) nack() {
	if m != nil {
		m.Nacks.Inc()
	}
}
