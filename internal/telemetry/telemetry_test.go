package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.MessageProcessed("greeting")
	m.MessageProcessed("greeting")
	m.QuotaDenied("free")
	m.ClassifierFallback()
	m.Handshake("success")
	m.BrokerFetchFailed("holdings")
	m.DeliveryFailed()
	m.DuplicateDelivery()

	if got := testutil.ToFloat64(m.messages.WithLabelValues("greeting")); got != 2 {
		t.Errorf("messages{greeting} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.quotaDenials.WithLabelValues("free")); got != 1 {
		t.Errorf("quota denials = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.classifierFallbacks); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Handshake("no_recent_login")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `tradechat_handshakes_total{outcome="no_recent_login"} 1`) {
		t.Errorf("Expected handshake counter in output, got:\n%s", body)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.MessageProcessed("other")
	m.QuotaDenied("free")
	m.ClassifierFallback()
	m.Handshake("success")
	m.BrokerFetchFailed("orders")
	m.DeliveryFailed()
	m.DuplicateDelivery()
}
