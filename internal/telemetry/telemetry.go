/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradechat"

// Metrics holds the assistant's counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	messages            *prometheus.CounterVec
	quotaDenials        *prometheus.CounterVec
	classifierFallbacks prometheus.Counter
	handshakes          *prometheus.CounterVec
	brokerFailures      *prometheus.CounterVec
	deliveryFailures    prometheus.Counter
	duplicates          prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Inbound messages processed, by classified intent.",
		}, []string{"intent"}),
		quotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Messages refused because the daily limit was reached.",
		}, []string{"tier"}),
		classifierFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_fallbacks_total",
			Help:      "Classifications that degraded to the default intent.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Handshake completion attempts, by outcome.",
		}, []string{"outcome"}),
		brokerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_fetch_failures_total",
			Help:      "Failed brokerage sub-fetches, by resource.",
		}, []string{"resource"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Outbound replies the messaging provider did not accept.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_deliveries_total",
			Help:      "Inbound webhook deliveries skipped as redeliveries.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messages,
		m.quotaDenials,
		m.classifierFallbacks,
		m.handshakes,
		m.brokerFailures,
		m.deliveryFailures,
		m.duplicates,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The methods below are no-ops on a nil *Metrics.

func (m *Metrics) MessageProcessed(intent string) {
	if m != nil {
		m.messages.WithLabelValues(intent).Inc()
	}
}

func (m *Metrics) QuotaDenied(tier string) {
	if m != nil {
		m.quotaDenials.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) ClassifierFallback() {
	if m != nil {
		m.classifierFallbacks.Inc()
	}
}

func (m *Metrics) Handshake(outcome string) {
	if m != nil {
		m.handshakes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) BrokerFetchFailed(resource string) {
	if m != nil {
		m.brokerFailures.WithLabelValues(resource).Inc()
	}
}

func (m *Metrics) DeliveryFailed() {
	if m != nil {
		m.deliveryFailures.Inc()
	}
}

func (m *Metrics) DuplicateDelivery() {
	if m != nil {
		m.duplicates.Inc()
	}
}
