package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of session lifecycle events
type EventType string

const (
	// Session events
	EventSessionLoaded      EventType = "session.loaded"
	EventSessionUnavailable EventType = "session.unavailable"

	// Attempt events
	EventAttemptStarted     EventType = "attempt.started"
	EventAttemptTimeWarning EventType = "attempt.time_warning"
	EventAttemptSubmitted   EventType = "attempt.submitted"

	// Question events
	EventQuestionAdvanced EventType = "question.advanced"
	EventAnswerSubmitted  EventType = "answer.submitted"

	// Pipeline events
	EventPipelineCompleted EventType = "pipeline.completed"
	EventPipelineFailed    EventType = "pipeline.failed"
)

// SessionEvent is the base event structure for all session events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewSessionEvent stamps identity and provenance onto an event payload.
func NewSessionEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    "attempt-engine",
		Version:   "1.0",
		Data:      data,
	}
}

// Session event payloads

type SessionLoadedEvent struct {
	AssessmentID    uint   `json:"assessment_id"`
	AssessmentTitle string `json:"assessment_title"`
	QuestionCount   int    `json:"question_count"`
	DurationSeconds int    `json:"duration_seconds"`
}

type SessionUnavailableEvent struct {
	AssessmentID uint   `json:"assessment_id"`
	Reason       string `json:"reason"`
}

type AttemptStartedEvent struct {
	AssessmentID    uint `json:"assessment_id"`
	DurationSeconds int  `json:"duration_seconds"`
}

type AttemptTimeWarningEvent struct {
	AssessmentID     uint `json:"assessment_id"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

type AttemptSubmittedEvent struct {
	AssessmentID uint   `json:"assessment_id"`
	EndReason    string `json:"end_reason"` // "finished" or "timeout"
}

type QuestionAdvancedEvent struct {
	AssessmentID uint `json:"assessment_id"`
	FromIndex    int  `json:"from_index"`
	ToIndex      int  `json:"to_index"`
}

type AnswerSubmittedEvent struct {
	QuestionID uint   `json:"question_id"`
	AnswerType string `json:"answer_type"`
	Delivered  bool   `json:"delivered"`
}

type PipelineCompletedEvent struct {
	QuestionID uint   `json:"question_id"`
	Modality   string `json:"modality"`
	TextChars  int    `json:"text_chars"`
}

type PipelineFailedEvent struct {
	QuestionID uint   `json:"question_id"`
	Modality   string `json:"modality"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}
