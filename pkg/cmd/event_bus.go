package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cascadehq/cascade/pkg/channels/gochannel"
	"github.com/cascadehq/cascade/pkg/channels/kafka"
	"github.com/cascadehq/cascade/pkg/eventbus"
)

// NewEventBus creates the execution-lifecycle event bus. An empty or
// "noop" provider discards events, for deployments without a broker;
// "gochannel" keeps events in-process.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "cascade")
		if err != nil {
			return nil, fmt.Errorf("creating Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("creating in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "", "noop":
		return eventbus.NewNoopEventBus(), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
