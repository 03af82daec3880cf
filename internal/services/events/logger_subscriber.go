package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		var sessionID, status, provider string
		if payload, ok := event.Payload.(map[string]interface{}); ok {
			if id, ok := payload["session_id"].(string); ok {
				sessionID = id
			}
			if s, ok := payload["status"].(string); ok {
				status = s
			}
			if p, ok := payload["provider_name"].(string); ok {
				provider = p
			}
		}

		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if sessionID != "" {
			logEvent = logEvent.Str("session_id", sessionID)
		}
		if status != "" {
			logEvent = logEvent.Str("status", status)
		}
		if provider != "" {
			logEvent = logEvent.Str("provider", provider)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	for _, eventType := range interfaces.AllEventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Info().
		Int("event_type_count", len(interfaces.AllEventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
