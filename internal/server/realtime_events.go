package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"circles/internal/middleware"
	"circles/internal/observability"
)

// Event type constants prevent typos in event names.
const (
	EventRequestReceived  = "request_received"
	EventRequestAccepted  = "request_accepted"
	EventRequestRejected  = "request_rejected"
	EventRequestWithdrawn = "request_withdrawn"
	EventFollowerRemoved  = "follower_removed"
	EventFollowedBack     = "followed_back"
	EventUnfollowed       = "unfollowed"
)

// publishUserEvent delivers an event to every connection of userID. With
// Redis the event goes through pub/sub so other instances see it too;
// without it only this instance's hub is reached.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["at"] = time.Now().UTC().Format(time.RFC3339Nano)

	eventJSON, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("event", eventType), slog.String("error", err.Error()))
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	message := string(eventJSON)
	if s.notifier.Enabled() {
		// Detached so a cancelled request does not drop the event.
		err := s.notifier.PublishUser(context.WithoutCancel(ctx), userID, message)
		if err == nil {
			return
		}
		middleware.Logger.WarnContext(ctx, "failed to publish event, delivering locally",
			slog.String("event", eventType), slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
	s.hub.Broadcast(userID, message)
}
