package metrics

import "github.com/prometheus/client_golang/prometheus"

// ShopMetrics counts checkout and coupon outcomes.
type ShopMetrics struct {
	orders          prometheus.Counter
	checkoutRejects *prometheus.CounterVec
	couponRejects   *prometheus.CounterVec
}

func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Orders persisted by checkout.",
	})
	checkoutRejects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_rejected_total",
		Help:      "Checkout attempts rejected before an order was created.",
	}, []string{"code"})
	couponRejects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_rejected_total",
		Help:      "Coupon validations rejected by reason.",
	}, []string{"reason"})
	reg.MustRegister(orders, checkoutRejects, couponRejects)
	return &ShopMetrics{orders: orders, checkoutRejects: checkoutRejects, couponRejects: couponRejects}
}

func (s *ShopMetrics) IncOrderCreated() {
	if s == nil || s.orders == nil {
		return
	}
	s.orders.Inc()
}

func (s *ShopMetrics) IncCheckoutRejected(code string) {
	if s == nil || s.checkoutRejects == nil {
		return
	}
	s.checkoutRejects.WithLabelValues(normalizeLabel(code)).Inc()
}

func (s *ShopMetrics) IncCouponRejected(reason string) {
	if s == nil || s.couponRejects == nil {
		return
	}
	s.couponRejects.WithLabelValues(normalizeLabel(reason)).Inc()
}
