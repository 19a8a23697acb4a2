package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionEvent(t *testing.T) {
	event := NewSessionEvent(EventAttemptStarted, AttemptStartedEvent{
		AssessmentID:    7,
		DurationSeconds: 600,
	})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventAttemptStarted, event.Type)
	assert.Equal(t, "attempt-engine", event.Source)
	assert.Equal(t, "1.0", event.Version)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
}

func TestGoChannelEventPublisher_RoundTrip(t *testing.T) {
	publisher := NewGoChannelEventPublisher(PublisherConfig{
		Buffer: 8,
		Logger: slog.New(slog.DiscardHandler),
	})
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := publisher.Subscribe(ctx)
	require.NoError(t, err)

	sent := NewSessionEvent(EventQuestionAdvanced, QuestionAdvancedEvent{
		AssessmentID: 7,
		FromIndex:    0,
		ToIndex:      1,
	})
	require.NoError(t, publisher.PublishSessionEvent(ctx, sent))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(EventQuestionAdvanced), msg.Metadata.Get("event_type"))
		assert.Equal(t, "attempt-engine", msg.Metadata.Get("source"))

		var received SessionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &received))
		assert.Equal(t, sent.ID, received.ID)
		assert.Equal(t, EventQuestionAdvanced, received.Type)
	case <-ctx.Done():
		t.Fatal("no event arrived on the session topic")
	}
}

func TestMockEventPublisher(t *testing.T) {
	mock := NewMockEventPublisher(slog.New(slog.DiscardHandler))

	require.NoError(t, mock.PublishSessionEvent(context.Background(),
		NewSessionEvent(EventSessionLoaded, SessionLoadedEvent{AssessmentID: 7})))
	require.NoError(t, mock.PublishSessionEvent(context.Background(),
		NewSessionEvent(EventAttemptStarted, AttemptStartedEvent{AssessmentID: 7})))

	events := mock.GetPublishedEvents()
	require.Len(t, events, 2)
	assert.Equal(t, EventSessionLoaded, events[0].Type)
	assert.Equal(t, EventAttemptStarted, events[1].Type)

	mock.ClearEvents()
	assert.Empty(t, mock.GetPublishedEvents())
}
