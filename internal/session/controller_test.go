package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/attempt-engine/internal/answers"
	"github.com/SAP-F-2025/attempt-engine/internal/config"
	"github.com/SAP-F-2025/attempt-engine/internal/events"
	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

// fakeAPI records submissions in memory and fails on demand.
type fakeAPI struct {
	mu          sync.Mutex
	assessments []models.Assessment
	listErr     error
	answerErr   error
	finalErr    error

	// answerGate blocks the next SubmitAnswer call until closed;
	// answerEntered is signaled once that call has arrived.
	answerGate    chan struct{}
	answerEntered chan struct{}

	submitted []submittedAnswer
	finals    []uint
}

type submittedAnswer struct {
	questionID uint
	payload    answers.WirePayload
}

func (f *fakeAPI) ListAssessments(context.Context) ([]models.Assessment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.assessments, nil
}

func (f *fakeAPI) SubmitAnswer(_ context.Context, questionID uint, payload answers.WirePayload) error {
	f.mu.Lock()
	gate := f.answerGate
	f.answerGate = nil
	f.mu.Unlock()
	if gate != nil {
		if f.answerEntered != nil {
			f.answerEntered <- struct{}{}
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answerErr != nil {
		return f.answerErr
	}
	f.submitted = append(f.submitted, submittedAnswer{questionID: questionID, payload: payload})
	return nil
}

func (f *fakeAPI) SubmitFinal(_ context.Context, assessmentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalErr != nil {
		return f.finalErr
	}
	f.finals = append(f.finals, assessmentID)
	return nil
}

func (f *fakeAPI) submittedAnswers() []submittedAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedAnswer(nil), f.submitted...)
}

func (f *fakeAPI) finalCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finals)
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(context.Context, *models.ImageFile) (string, error) {
	return f.text, f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, *models.AudioBlob) (string, error) {
	return f.text, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		APIBaseURL:             "http://localhost",
		MaxImageSizeMB:         10,
		OCRTimeout:             time.Second,
		ASRTimeout:             time.Second,
		DefaultDurationMinutes: 60,
		TimeWarningSeconds:     30,
		Environment:            "development",
	}
}

func testAssessment() models.Assessment {
	return models.Assessment{
		ID:       7,
		Title:    "Go Basics",
		Duration: 1,
		Questions: []models.Question{
			{ID: 101, Type: models.QuestionBoolean},
			{ID: 102, Type: models.QuestionSingleChoice, Choices: json.RawMessage(`["A","B"]`)},
		},
	}
}

func newTestController(t *testing.T, api *fakeAPI) (*Controller, *events.MockEventPublisher) {
	t.Helper()
	return newTestControllerWith(t, api, &fakeExtractor{text: "extracted"}, &fakeTranscriber{text: "spoken"})
}

func newTestControllerWith(t *testing.T, api *fakeAPI, extractor *fakeExtractor, transcriber *fakeTranscriber) (*Controller, *events.MockEventPublisher) {
	t.Helper()
	device := media.NewFakeDevice()
	device.FramePNG = []byte("pngbytes")
	device.AudioChunks = [][]byte{[]byte("audio")}
	publisher := events.NewMockEventPublisher(slog.New(slog.DiscardHandler))
	ctrl := NewController(testConfig(), Dependencies{
		API:         api,
		Device:      device,
		Extractor:   extractor,
		Transcriber: transcriber,
		Publisher:   publisher,
		Logger:      utils.NewDiscardLogger(),
	})
	return ctrl, publisher
}

func startedController(t *testing.T, api *fakeAPI) (*Controller, *events.MockEventPublisher) {
	t.Helper()
	ctrl, publisher := newTestController(t, api)
	require.NoError(t, ctrl.Load(context.Background(), 7))
	require.NoError(t, ctrl.Start(context.Background()))
	return ctrl, publisher
}

func eventCount(publisher *events.MockEventPublisher, eventType events.EventType) int {
	n := 0
	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func TestController_LoadFailureIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{
			name: "network failure",
			api:  &fakeAPI{listErr: errors.New("connection refused")},
		},
		{
			name: "assessment missing from list",
			api:  &fakeAPI{assessments: []models.Assessment{{ID: 99}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, publisher := newTestController(t, tt.api)
			err := ctrl.Load(context.Background(), 7)
			assert.ErrorIs(t, err, ErrAssessmentUnavailable)
			assert.True(t, ctrl.Unavailable())
			assert.Equal(t, StateTerminated, ctrl.State())
			assert.Equal(t, 1, eventCount(publisher, events.EventSessionUnavailable))

			// No recovery path from a failed load
			assert.ErrorIs(t, ctrl.Start(context.Background()), ErrSessionNotActive)
		})
	}
}

func TestController_LoadSeedsClockFromDuration(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, publisher := newTestController(t, api)

	require.NoError(t, ctrl.Load(context.Background(), 7))
	assert.Equal(t, StateReady, ctrl.State())
	assert.Equal(t, 60, ctrl.Remaining())
	assert.Equal(t, 1, eventCount(publisher, events.EventSessionLoaded))
}

func TestController_LoadFallsBackToDefaultDuration(t *testing.T) {
	a := testAssessment()
	a.Duration = 0
	api := &fakeAPI{assessments: []models.Assessment{a}}
	ctrl, _ := newTestController(t, api)

	require.NoError(t, ctrl.Load(context.Background(), 7))
	assert.Equal(t, 60*60, ctrl.Remaining())
}

func TestController_ExpiryForcesSubmissionExactlyOnce(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, publisher := startedController(t, api)

	require.NoError(t, ctrl.SelectBoolean(0))

	for i := 0; i < 70; i++ {
		ctrl.Tick()
	}

	assert.Equal(t, StateTerminated, ctrl.State())
	assert.True(t, ctrl.Locked())
	assert.Equal(t, 1, api.finalCount())
	assert.Equal(t, 1, eventCount(publisher, events.EventAttemptSubmitted))

	// The in-progress answer rode along with the forced submission
	submitted := api.submittedAnswers()
	require.Len(t, submitted, 1)
	assert.Equal(t, uint(101), submitted[0].questionID)
	assert.Equal(t, "True", submitted[0].payload.TextAnswer)

	// End reason reflects the timeout
	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == events.EventAttemptSubmitted {
			data := e.Data.(events.AttemptSubmittedEvent)
			assert.Equal(t, EndReasonTimeout, data.EndReason)
		}
	}
}

func TestController_ExpiryWithoutUserAction(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, publisher := startedController(t, api)

	// The student walks away: no answer, no navigation, nothing
	for i := 0; i < 60; i++ {
		ctrl.Tick()
	}

	// The forced submission must not be blocked by the answered guard
	assert.Equal(t, StateTerminated, ctrl.State())
	assert.True(t, ctrl.Locked())
	assert.Equal(t, 1, api.finalCount())
	assert.Equal(t, 1, eventCount(publisher, events.EventAttemptSubmitted))

	// The unanswered question still rode along, empty
	submitted := api.submittedAnswers()
	require.Len(t, submitted, 1)
	assert.Equal(t, uint(101), submitted[0].questionID)
	assert.Equal(t, "", submitted[0].payload.TextAnswer)
}

func TestController_ExpiryDuringAdvanceSubmitsAnswerOnce(t *testing.T) {
	api := &fakeAPI{
		assessments:   []models.Assessment{testAssessment()},
		answerGate:    make(chan struct{}),
		answerEntered: make(chan struct{}, 1),
	}
	ctrl, _ := startedController(t, api)

	require.NoError(t, ctrl.SelectBoolean(0))

	gate := api.answerGate
	done := make(chan error, 1)
	go func() { done <- ctrl.Advance(context.Background()) }()

	// Hold the answer call in flight and run the clock out underneath it
	<-api.answerEntered
	for i := 0; i < 60; i++ {
		ctrl.Tick()
	}
	close(gate)
	require.NoError(t, <-done)

	// The forced finish left the in-flight call to deliver the answer;
	// it must not have posted the same question a second time
	submitted := api.submittedAnswers()
	require.Len(t, submitted, 1)
	assert.Equal(t, uint(101), submitted[0].questionID)
	assert.Equal(t, 1, api.finalCount())

	// The navigation raced the expiry and lost
	assert.Equal(t, 0, ctrl.Index())
	assert.Equal(t, StateTerminated, ctrl.State())
	assert.True(t, ctrl.Locked())
}

func TestController_LockedAttemptRejectsEverything(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, _ := startedController(t, api)

	require.NoError(t, ctrl.SelectBoolean(0))
	for i := 0; i < 60; i++ {
		ctrl.Tick()
	}
	require.True(t, ctrl.Locked())

	assert.ErrorIs(t, ctrl.SelectBoolean(1), ErrSessionLocked)
	assert.ErrorIs(t, ctrl.Advance(context.Background()), ErrSessionLocked)
	assert.ErrorIs(t, ctrl.SetText(context.Background(), "late"), ErrSessionLocked)
	assert.ErrorIs(t, ctrl.Finish(context.Background()), ErrSessionNotActive)
}

func TestController_TimeWarningFiresOnce(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, publisher := startedController(t, api)

	// 60s duration, warning at 30s: tick into and through the window
	for i := 0; i < 45; i++ {
		ctrl.Tick()
	}

	assert.Equal(t, 1, eventCount(publisher, events.EventAttemptTimeWarning))
}

func TestController_AdvanceGuards(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, _ := startedController(t, api)

	t.Run("unanswered question blocks navigation", func(t *testing.T) {
		assert.ErrorIs(t, ctrl.Advance(context.Background()), ErrQuestionNotAnswered)
		assert.Equal(t, 0, ctrl.Index())
	})

	t.Run("answered question advances and submits", func(t *testing.T) {
		require.NoError(t, ctrl.SelectBoolean(1))
		require.NoError(t, ctrl.Advance(context.Background()))
		assert.Equal(t, 1, ctrl.Index())

		submitted := api.submittedAnswers()
		require.Len(t, submitted, 1)
		assert.Equal(t, "False", submitted[0].payload.TextAnswer)
	})

	t.Run("last question has nowhere to advance", func(t *testing.T) {
		require.NoError(t, ctrl.SelectOption(0))
		assert.ErrorIs(t, ctrl.Advance(context.Background()), ErrNoMoreQuestions)
	})
}

func TestController_AdvanceRetainsFailedSubmission(t *testing.T) {
	api := &fakeAPI{
		assessments: []models.Assessment{testAssessment()},
		answerErr:   errors.New("gateway timeout"),
	}
	ctrl, publisher := startedController(t, api)

	require.NoError(t, ctrl.SelectBoolean(0))
	require.NoError(t, ctrl.Advance(context.Background()))

	// Navigation succeeded despite the failed call
	assert.Equal(t, 1, ctrl.Index())
	require.Equal(t, 1, ctrl.Outbox().Len())
	assert.Equal(t, uint(101), ctrl.Outbox().Pending()[0].QuestionID)

	// The submission event reports non-delivery
	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == events.EventAnswerSubmitted {
			data := e.Data.(events.AnswerSubmittedEvent)
			assert.False(t, data.Delivered)
		}
	}
}

func TestController_FinishRequiresAnsweredQuestion(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, publisher := startedController(t, api)

	assert.ErrorIs(t, ctrl.Finish(context.Background()), ErrQuestionNotAnswered)

	require.NoError(t, ctrl.SelectBoolean(0))
	require.NoError(t, ctrl.Finish(context.Background()))

	assert.Equal(t, StateTerminated, ctrl.State())
	assert.True(t, ctrl.Locked())
	assert.Equal(t, 1, api.finalCount())

	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == events.EventAttemptSubmitted {
			data := e.Data.(events.AttemptSubmittedEvent)
			assert.Equal(t, EndReasonFinished, data.EndReason)
		}
	}
}

func TestController_FinalSubmitFailureIsRetained(t *testing.T) {
	api := &fakeAPI{
		assessments: []models.Assessment{testAssessment()},
		finalErr:    errors.New("backend down"),
	}
	ctrl, _ := startedController(t, api)

	require.NoError(t, ctrl.SelectBoolean(0))
	require.NoError(t, ctrl.Finish(context.Background()))

	assert.Equal(t, StateTerminated, ctrl.State())
	pending := ctrl.Outbox().Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Final)
	assert.Equal(t, uint(7), pending[0].AssessmentID)
}

func TestController_MutationRequiresActiveSession(t *testing.T) {
	api := &fakeAPI{assessments: []models.Assessment{testAssessment()}}
	ctrl, _ := newTestController(t, api)
	require.NoError(t, ctrl.Load(context.Background(), 7))

	// Ready but not started
	assert.ErrorIs(t, ctrl.SelectBoolean(0), ErrSessionNotActive)
}
