package internal

import (
	"context"
	"time"

	"github.com/aavendano/taskchain/eventbus"
)

type ctxKey uint8

const (
	// PublisherKey holds the event bus on a context
	PublisherKey ctxKey = iota
	// ParentNameKey holds the name of the enclosing composite on a context
	ParentNameKey
)

// SetPublisher on the context
func SetPublisher(ctx context.Context, pub eventbus.EventBus) context.Context {
	return context.WithValue(ctx, PublisherKey, pub)
}

// GetPublisher from the context
func GetPublisher(ctx context.Context) eventbus.EventBus {
	bus, ok := ctx.Value(PublisherKey).(eventbus.EventBus)
	if !ok {
		return eventbus.NopBus
	}
	return bus
}

// PublishEvent publishes an event to the bus on the context
func PublishEvent(ctx context.Context, name string, args interface{}) {
	pub := GetPublisher(ctx)
	pub.Publish(eventbus.Event{
		Name: name,
		At:   time.Now(),
		Args: args,
	})
}

// SetParentName records the enclosing composite name on the context
func SetParentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ParentNameKey, name)
}

// GetParentName returns the enclosing composite name, or an empty string
func GetParentName(ctx context.Context) string {
	name, ok := ctx.Value(ParentNameKey).(string)
	if !ok {
		return ""
	}
	return name
}
