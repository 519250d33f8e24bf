package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/praxis/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		var documentID, runID, eventID string
		if payload, ok := event.Payload.(map[string]interface{}); ok {
			if id, ok := payload["document_id"].(string); ok {
				documentID = id
			}
			if id, ok := payload["run_id"].(string); ok {
				runID = id
			}
			if id, ok := payload["event_id"].(string); ok {
				eventID = id
			}
		}

		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if documentID != "" {
			logEvent = logEvent.Str("document_id", documentID)
		}
		if runID != "" {
			logEvent = logEvent.Str("run_id", runID)
		}
		if eventID != "" {
			logEvent = logEvent.Str("event_id", eventID)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventGeoSynced,
		interfaces.EventOutboxEventDead,
		interfaces.EventPipelineRunRetried,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	return nil
}
