package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.025, // 25ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.25,  // 250ms
	0.5,   // 500ms
	1.0,   // 1s
	2.5,   // 2.5s
	5.0,   // 5s
	10.0,  // 10s
	30.0,  // 30s
	60.0,  // 1m
	300.0, // 5m
}

var (
	// CouponsGenerated counts coupon rows actually written by generation runs
	CouponsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_generated_total",
			Help: "Number of coupon codes inserted by generation runs",
		},
	)

	// GenerationCollisions counts candidate codes dropped because they already existed
	GenerationCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_generation_collisions_total",
			Help: "Number of generated candidates discarded as duplicates",
		},
	)

	// GenerationDuration tracks how long a whole generation run takes
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_generation_duration_seconds",
			Help:    "Duration of coupon generation runs in seconds",
			Buckets: durationBuckets,
		},
		[]string{"status"}, // success, partial or failure
	)

	// Redemptions counts redemption attempts by outcome reason
	Redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_redemptions_total",
			Help: "Number of coupon redemption attempts by result",
		},
		[]string{"result"},
	)

	// RedemptionDuration tracks the latency of redemption attempts
	RedemptionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_redemption_duration_seconds",
			Help:    "Duration of coupon redemption attempts in seconds",
			Buckets: durationBuckets[:9],
		},
		[]string{"result"},
	)

	// CouponsExpired counts coupons moved to EXPIRED by the sweep or lazily on redeem
	CouponsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_expired_total",
			Help: "Number of coupons transitioned to EXPIRED",
		},
	)
)

// RecordGeneration records the outcome of one generation run.
func RecordGeneration(status string, inserted, collisions int, duration float64) {
	CouponsGenerated.Add(float64(inserted))
	GenerationCollisions.Add(float64(collisions))
	GenerationDuration.WithLabelValues(status).Observe(duration)
}

// RecordRedemption records the result and latency of a redemption attempt.
func RecordRedemption(result string, duration float64) {
	Redemptions.WithLabelValues(result).Inc()
	RedemptionDuration.WithLabelValues(result).Observe(duration)
}

// RecordExpired adds n coupons to the expired counter.
func RecordExpired(n int64) {
	if n > 0 {
		CouponsExpired.Add(float64(n))
	}
}
