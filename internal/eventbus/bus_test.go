package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	hub.Start()
	t.Cleanup(hub.Close)
	return hub
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := startedHub(t)

	first := hub.Subscribe()
	second := hub.Subscribe()
	defer first.Close()
	defer second.Close()

	hub.Publish(Event{Topic: TopicNewJob, Payload: "job-1"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case event := <-sub.Events():
			assert.Equal(t, TopicNewJob, event.Topic)
			assert.Equal(t, "job-1", event.Payload)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishPreservesOrderPerSubscriber(t *testing.T) {
	hub := startedHub(t)

	sub := hub.Subscribe()
	defer sub.Close()

	hub.Publish(Event{Topic: TopicJobTaken})
	hub.Publish(Event{Topic: TopicJobUpdate})

	require.Equal(t, TopicJobTaken, (<-sub.Events()).Topic)
	require.Equal(t, TopicJobUpdate, (<-sub.Events()).Topic)
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	hub := startedHub(t)

	hub.Publish(Event{Topic: TopicNewJob})

	sub := hub.Subscribe()
	defer sub.Close()

	select {
	case event := <-sub.Events():
		t.Fatalf("late subscriber unexpectedly received %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := startedHub(t)

	sub := hub.Subscribe()
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultSubscriberBuffer*3; i++ {
			hub.Publish(Event{Topic: TopicTechnicianLocation, Payload: LocationSample{JobID: int64(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}

func TestClosedSubscriptionStopsReceiving(t *testing.T) {
	hub := startedHub(t)

	sub := hub.Subscribe()
	sub.Close()
	sub.Close()

	require.Equal(t, 0, hub.SubscriberCount())

	hub.Publish(Event{Topic: TopicNewJob})

	select {
	case event, ok := <-sub.Events():
		if ok {
			t.Fatalf("closed subscription received %v", event)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishBeforeStartPanics(t *testing.T) {
	hub := NewHub()
	assert.Panics(t, func() {
		hub.Publish(Event{Topic: TopicNewJob})
	})
}

func TestSubscribeBeforeStartPanics(t *testing.T) {
	hub := NewHub()
	assert.Panics(t, func() {
		hub.Subscribe()
	})
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	hub := NewHub()
	hub.Start()
	hub.Close()

	assert.NotPanics(t, func() {
		hub.Publish(Event{Topic: TopicNewJob})
	})
}
