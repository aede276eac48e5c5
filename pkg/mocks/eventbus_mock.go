// Package mocks provides test doubles shared across package tests.
package mocks

import (
	"context"

	"github.com/cascadehq/cascade/pkg/eventbus"
	"github.com/cascadehq/cascade/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of the eventbus.EventBus interface.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// RecordingEventBus keeps every published event in order. Lighter than the
// testify mock when a test only asserts on what was emitted.
type RecordingEventBus struct {
	Events []eventbus.Event
}

func (b *RecordingEventBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	b.Events = append(b.Events, event)

	return nil
}

// TypesSeen returns the event types in publication order.
func (b *RecordingEventBus) TypesSeen() []events.EventType {
	types := make([]events.EventType, 0, len(b.Events))
	for _, event := range b.Events {
		types = append(types, event.GetType())
	}

	return types
}
