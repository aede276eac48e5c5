package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cascadehq/cascade/pkg/events"
)

// NoopEventBus discards every event. Default when no broker is configured,
// and handy in tests that do not assert on notifications.
type NoopEventBus struct{}

func NewNoopEventBus() EventBus {
	return &NoopEventBus{}
}

func (eb *NoopEventBus) Publish(_ context.Context, _ string, _ Event) error {
	return nil
}

func (eb *NoopEventBus) Handle(_ events.EventType, _ EventHandler) error {
	return nil
}

func (eb *NoopEventBus) Subscribe(_ context.Context) error {
	return nil
}

func (eb *NoopEventBus) Close() error {
	return nil
}

func (eb *NoopEventBus) GenerateID() string {
	return watermill.NewULID()
}
