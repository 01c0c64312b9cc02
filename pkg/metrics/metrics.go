/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stratuslab/pdisk/pkg/pdiskbackend"
)

const (
	namespace string = "pdisk"
)

// Metrics counts backend operations and the commands they run.
type Metrics struct {
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	inFlight          *prometheus.GaugeVec
	commands          *prometheus.CounterVec
}

var _ pdiskbackend.Observer = &Metrics{}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Persistent disk operations by backend, action and outcome",
		}, []string{"backend", "action", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of persistent disk operations",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"backend", "action"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Persistent disk operations currently running",
		}, []string{"backend"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Backend commands by backend, command name and outcome",
		}, []string{"backend", "command", "outcome"}),
	}
	reg.MustRegister(m.operations, m.operationDuration, m.inFlight, m.commands)
	return m
}

// ObserveCommand implements pdiskbackend.Observer.
func (m *Metrics) ObserveCommand(backend pdiskbackend.BackendType, command string, outcome pdiskbackend.Outcome, d time.Duration) {
	m.commands.WithLabelValues(string(backend), command, outcome.String()).Inc()
}

// StartOperation marks an operation as running and returns the function
// recording its end.
func (m *Metrics) StartOperation(backend pdiskbackend.BackendType, action pdiskbackend.Action) func(outcome string) {
	begin := time.Now()
	m.inFlight.WithLabelValues(string(backend)).Inc()
	return func(outcome string) {
		m.inFlight.WithLabelValues(string(backend)).Dec()
		m.operations.WithLabelValues(string(backend), string(action), outcome).Inc()
		m.operationDuration.WithLabelValues(string(backend), string(action)).Observe(time.Since(begin).Seconds())
	}
}
