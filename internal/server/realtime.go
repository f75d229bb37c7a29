package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chillserv/fieldops/internal/eventbus"
	"github.com/chillserv/fieldops/internal/observability/metrics"
)

// StreamEvents relays the hub over SSE. Dropped events are not replayed;
// a client that reconnects re-fetches state through the REST endpoints.
func (s *Server) StreamEvents(c *gin.Context) {
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	sub := s.hub.Subscribe()
	defer sub.Close()

	metrics.Dispatch().SubscriberConnected()
	defer metrics.Dispatch().SubscriberDisconnected()

	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub.Events():
			if err := writeEvent(writer, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event eventbus.Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data)
	return err
}

// PostTechnicianLocation relays a live location sample to subscribers.
// Samples are fire-and-forget: nothing is validated against the booking
// and nothing is persisted.
func (s *Server) PostTechnicianLocation(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok || !actor.IsTechnician() {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var sample eventbus.LocationSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.hub.Publish(eventbus.Event{Topic: eventbus.TopicTechnicianLocation, Payload: sample})
	metrics.Dispatch().LocationRelayed()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"relayed": true}})
}
