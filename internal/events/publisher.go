package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SessionTopic is the single topic the engine publishes on.
const SessionTopic = "attempt.session"

// EventPublisher defines the interface for publishing session events
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *SessionEvent) error
	Close() error
}

// GoChannelEventPublisher implements EventPublisher using Watermill's
// in-process GoChannel pub/sub; the engine runs client-side, so the bus
// stays inside the process and hosts subscribe directly.
type GoChannelEventPublisher struct {
	bus    *gochannel.GoChannel
	logger *slog.Logger
}

// PublisherConfig holds configuration for the event publisher
type PublisherConfig struct {
	Buffer int
	Logger *slog.Logger
}

// NewGoChannelEventPublisher creates an in-process event publisher using Watermill
func NewGoChannelEventPublisher(config PublisherConfig) *GoChannelEventPublisher {
	logger := watermill.NewSlogLogger(config.Logger)

	bus := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(config.Buffer),
	}, logger)

	return &GoChannelEventPublisher{
		bus:    bus,
		logger: config.Logger,
	}
}

// PublishSessionEvent publishes a session event on the in-process bus
func (p *GoChannelEventPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}

	msg := message.NewMessage(event.ID, eventBytes)
	msg.SetContext(ctx)

	// Metadata headers
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format("2006-01-02T15:04:05Z07:00"))

	if err := p.bus.Publish(SessionTopic, msg); err != nil {
		p.logger.Error("Failed to publish session event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return fmt.Errorf("failed to publish session event: %w", err)
	}

	p.logger.Debug("Published session event",
		"event_id", event.ID,
		"event_type", event.Type)
	return nil
}

// Subscribe returns a channel of raw session event messages. Consumers
// must Ack each message.
func (p *GoChannelEventPublisher) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return p.bus.Subscribe(ctx, SessionTopic)
}

// Close closes the bus and releases resources
func (p *GoChannelEventPublisher) Close() error {
	return p.bus.Close()
}

// MockEventPublisher is a mock implementation for testing
type MockEventPublisher struct {
	Events []SessionEvent
	Logger *slog.Logger
}

// NewMockEventPublisher creates a new mock event publisher
func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]SessionEvent, 0),
		Logger: logger,
	}
}

// PublishSessionEvent stores the event in memory (for testing)
func (m *MockEventPublisher) PublishSessionEvent(_ context.Context, event *SessionEvent) error {
	m.Events = append(m.Events, *event)
	m.Logger.Debug("Mock: Published session event",
		"event_id", event.ID,
		"event_type", event.Type)
	return nil
}

// Close is a no-op for the mock publisher
func (m *MockEventPublisher) Close() error {
	return nil
}

// GetPublishedEvents returns all published events (for testing)
func (m *MockEventPublisher) GetPublishedEvents() []SessionEvent {
	return m.Events
}

// ClearEvents clears all published events (for testing)
func (m *MockEventPublisher) ClearEvents() {
	m.Events = make([]SessionEvent, 0)
}
