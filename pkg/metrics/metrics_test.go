package metrics_test

import (
	"io"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/metrics"
)

// counterValue sums every sample of the named family.
func counterValue(m *metrics.Metrics, name string) float64 {
	families, err := m.Registry().Gather()
	Expect(err).NotTo(HaveOccurred())

	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

var _ = Describe("Metrics", func() {
	It("records requests, fragments and cancellations", func() {
		m := metrics.New()
		m.ObserveRequest("deepseek", metrics.ModeStream, metrics.OutcomeOK)
		m.ObserveRequest("deepseek", metrics.ModeStream, metrics.OutcomeCancelled)
		m.AddFragments("deepseek", 3)
		m.ObserveCancellation("deepseek")
		m.ObserveEventDropped()
		m.ObserveUpstreamLatency("deepseek", 120*time.Millisecond)

		Expect(counterValue(m, "chatrelay_relay_requests_total")).To(Equal(2.0))
		Expect(counterValue(m, "chatrelay_relay_fragments_forwarded_total")).To(Equal(3.0))
		Expect(counterValue(m, "chatrelay_relay_cancellations_total")).To(Equal(1.0))
		Expect(counterValue(m, "chatrelay_events_dropped_total")).To(Equal(1.0))
	})

	It("serves the exposition format", func() {
		m := metrics.New()
		m.ObserveRequest("openai", metrics.ModeBuffered, metrics.OutcomeOK)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		body, err := io.ReadAll(rec.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`chatrelay_relay_requests_total{mode="buffered",outcome="ok",provider="openai"} 1`))
	})

	It("is a no-op when nil", func() {
		var m *metrics.Metrics
		Expect(func() {
			m.ObserveRequest("x", "y", "z")
			m.AddFragments("x", 1)
			m.ObserveCancellation("x")
			m.ObserveEventDropped()
			m.ObserveUpstreamLatency("x", time.Second)
		}).NotTo(Panic())
		Expect(m.Registry()).To(BeNil())
	})
})
