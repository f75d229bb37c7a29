package metrics

import (
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the labels stamped onto every dispatch metric.
type Config struct {
	ServiceName string
	Environment string
}

// Claim outcomes recorded on the claim counter.
const (
	ClaimOutcomeWon      = "won"
	ClaimOutcomeConflict = "conflict"
	ClaimOutcomeError    = "error"
)

// Notification channels recorded on the delivery counter.
const (
	NotificationChannelRecord = "record"
	NotificationChannelPush   = "push"
	NotificationChannelEmail  = "email"
)

// DispatchMetrics captures booking dispatch health signals.
type DispatchMetrics struct {
	bookingsCreated     *prometheus.CounterVec
	slotRejections      prometheus.Counter
	claimAttempts       *prometheus.CounterVec
	releases            prometheus.Counter
	statusTransitions   *prometheus.CounterVec
	transitionDuration  *prometheus.HistogramVec
	notificationResults *prometheus.CounterVec
	realtimeSubscribers prometheus.Gauge
	locationSamples     prometheus.Counter
}

var (
	dispatchMetricsOnce sync.Once
	dispatchMetrics     *DispatchMetrics
)

// Dispatch returns the singleton dispatch metrics registry.
func Dispatch() *DispatchMetrics {
	return DispatchWithConfig(Config{})
}

// DispatchWithConfig returns the singleton dispatch metrics registry using config labels.
func DispatchWithConfig(cfg Config) *DispatchMetrics {
	dispatchMetricsOnce.Do(func() {
		dispatchMetrics = newDispatchMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return dispatchMetrics
}

// ResetDispatchMetricsForTest resets the dispatch metrics singleton for tests.
func ResetDispatchMetricsForTest() {
	dispatchMetricsOnce = sync.Once{}
	dispatchMetrics = nil
}

func newDispatchMetrics(registerer prometheus.Registerer, cfg Config) *DispatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "fieldops"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	bookingsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldops_bookings_created_total",
		Help:        "Bookings created by service kind.",
		ConstLabels: constLabels,
	}, []string{"service_kind"})
	slotRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fieldops_booking_slot_rejections_total",
		Help:        "Booking creations rejected by the slot occupancy guard.",
		ConstLabels: constLabels,
	})
	claimAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldops_claim_attempts_total",
		Help:        "Claim attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fieldops_releases_total",
		Help:        "Accepted bookings released back to the pool.",
		ConstLabels: constLabels,
	})
	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldops_status_transitions_total",
		Help:        "Booking status transitions by target status.",
		ConstLabels: constLabels,
	}, []string{"to"})
	transitionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "fieldops_transition_duration_seconds",
		Help:        "Latency of conditional booking writes.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	notificationResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldops_notifications_total",
		Help:        "Notification side effects by channel and outcome.",
		ConstLabels: constLabels,
	}, []string{"channel", "outcome"})
	realtimeSubscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "fieldops_realtime_subscribers",
		Help:        "Currently connected realtime subscribers.",
		ConstLabels: constLabels,
	})
	locationSamples := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "fieldops_location_samples_total",
		Help:        "Technician location samples relayed through the hub.",
		ConstLabels: constLabels,
	})

	collectors := []prometheus.Collector{
		bookingsCreated,
		slotRejections,
		claimAttempts,
		releases,
		statusTransitions,
		transitionDuration,
		notificationResults,
		realtimeSubscribers,
		locationSamples,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}

	return &DispatchMetrics{
		bookingsCreated:     bookingsCreated,
		slotRejections:      slotRejections,
		claimAttempts:       claimAttempts,
		releases:            releases,
		statusTransitions:   statusTransitions,
		transitionDuration:  transitionDuration,
		notificationResults: notificationResults,
		realtimeSubscribers: realtimeSubscribers,
		locationSamples:     locationSamples,
	}
}

func (m *DispatchMetrics) BookingCreated(serviceKind string) {
	if m == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(strings.TrimSpace(serviceKind)).Inc()
}

func (m *DispatchMetrics) SlotRejected() {
	if m == nil {
		return
	}
	m.slotRejections.Inc()
}

func (m *DispatchMetrics) ClaimAttempt(outcome string) {
	if m == nil {
		return
	}
	m.claimAttempts.WithLabelValues(outcome).Inc()
}

func (m *DispatchMetrics) Released() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

func (m *DispatchMetrics) StatusTransition(to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(strings.TrimSpace(to)).Inc()
}

func (m *DispatchMetrics) ObserveTransition(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.transitionDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *DispatchMetrics) NotificationResult(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.notificationResults.WithLabelValues(channel, outcome).Inc()
}

func (m *DispatchMetrics) SubscriberConnected() {
	if m == nil {
		return
	}
	m.realtimeSubscribers.Inc()
}

func (m *DispatchMetrics) SubscriberDisconnected() {
	if m == nil {
		return
	}
	m.realtimeSubscribers.Dec()
}

func (m *DispatchMetrics) LocationRelayed() {
	if m == nil {
		return
	}
	m.locationSamples.Inc()
}
