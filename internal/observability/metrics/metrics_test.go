package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDispatchMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newDispatchMetrics(registry, Config{ServiceName: "fieldops-test", Environment: "test"})

	m.BookingCreated("Cleaning")
	m.BookingCreated("Cleaning")
	m.BookingCreated("Repair")
	m.ClaimAttempt(ClaimOutcomeWon)
	m.ClaimAttempt(ClaimOutcomeConflict)
	m.ClaimAttempt(ClaimOutcomeConflict)
	m.StatusTransition("Completed")
	m.SlotRejected()
	m.Released()

	if got := testutil.ToFloat64(m.bookingsCreated.WithLabelValues("Cleaning")); got != 2 {
		t.Fatalf("expected 2 cleaning bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.claimAttempts.WithLabelValues(ClaimOutcomeConflict)); got != 2 {
		t.Fatalf("expected 2 claim conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.statusTransitions.WithLabelValues("Completed")); got != 1 {
		t.Fatalf("expected 1 completed transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.slotRejections); got != 1 {
		t.Fatalf("expected 1 slot rejection, got %v", got)
	}
}

func TestDispatchMetricsSubscriberGauge(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newDispatchMetrics(registry, Config{})

	m.SubscriberConnected()
	m.SubscriberConnected()
	m.SubscriberDisconnected()

	if got := testutil.ToFloat64(m.realtimeSubscribers); got != 1 {
		t.Fatalf("expected 1 live subscriber, got %v", got)
	}
}

func TestNotificationResultOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newDispatchMetrics(registry, Config{})

	m.NotificationResult(NotificationChannelPush, nil)
	m.NotificationResult(NotificationChannelPush, errors.New("send failed"))

	if got := testutil.ToFloat64(m.notificationResults.WithLabelValues(NotificationChannelPush, "ok")); got != 1 {
		t.Fatalf("expected 1 ok push, got %v", got)
	}
	if got := testutil.ToFloat64(m.notificationResults.WithLabelValues(NotificationChannelPush, "error")); got != 1 {
		t.Fatalf("expected 1 failed push, got %v", got)
	}
}

func TestNilReceiverIsNoOp(t *testing.T) {
	var m *DispatchMetrics
	m.BookingCreated("Cleaning")
	m.ClaimAttempt(ClaimOutcomeWon)
	m.LocationRelayed()
}
