package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartRecalcTotal counts full pricing recalculation passes by trigger.
	CartRecalcTotal *prometheus.CounterVec
	// CartRecalcLatency records pricing pass latency in milliseconds.
	CartRecalcLatency prometheus.Histogram
	// CartItemClampTotal counts quantity clamps applied by the inventory guard.
	CartItemClampTotal prometheus.Counter
	// PaymentTransitionTotal counts payment request status transitions.
	PaymentTransitionTotal *prometheus.CounterVec
	// PaymentExpiredTotal counts payment requests swept to Expired.
	PaymentExpiredTotal prometheus.Counter
	// CatalogLookupTotal counts tradeline snapshot lookups by outcome.
	CatalogLookupTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartRecalcTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_recalc_total",
			Help:      "Count of cart pricing recalculation passes by trigger.",
		}, []string{"trigger"})
		CartRecalcLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_recalc_duration_ms",
			Help:      "Cart pricing recalculation latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		})
		CartItemClampTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_item_clamp_total",
			Help:      "Number of cart item quantities clamped to available spots.",
		})
		PaymentTransitionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_transition_total",
			Help:      "Count of payment request status transitions.",
		}, []string{"from", "to"})
		PaymentExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_expired_total",
			Help:      "Number of payment requests transitioned to Expired by the sweep.",
		})
		CatalogLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookup_total",
			Help:      "Count of tradeline snapshot lookups by outcome.",
		}, []string{"outcome"})

		mustRegisterCollector(reg, CartRecalcTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartRecalcTotal = v
			}
		})
		mustRegisterCollector(reg, CartRecalcLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CartRecalcLatency = v
			}
		})
		mustRegisterCollector(reg, CartItemClampTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartItemClampTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentTransitionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentTransitionTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentExpiredTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PaymentExpiredTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogLookupTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
