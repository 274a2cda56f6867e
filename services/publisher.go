package services

import (
	"context"
)

// Publisher delivers a live event to every connection in a room.
// Delivery is fire-and-forget: a room with no live connections is not an error.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(ctx context.Context, room, event string, payload any) error

func (f PublisherFunc) Publish(ctx context.Context, room, event string, payload any) error {
	return f(ctx, room, event, payload)
}

// NopPublisher drops every event
var NopPublisher Publisher = PublisherFunc(func(context.Context, string, string, any) error { return nil })

// publishBestEffort logs and counts a failed delivery instead of returning it
func publishBestEffort(ctx context.Context, p Publisher, room, event string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, room, event, payload); err != nil {
		publishFailuresTotal.WithLabelValues(event).Inc()
		serviceLog("publisher").Warn().Err(err).Str("room", room).Str("event", event).Msg("live delivery failed")
	}
}
