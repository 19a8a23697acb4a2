package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/SAP-F-2025/attempt-engine/internal/answers"
	"github.com/SAP-F-2025/attempt-engine/internal/cache"
	"github.com/SAP-F-2025/attempt-engine/internal/config"
	"github.com/SAP-F-2025/attempt-engine/internal/events"
	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/outbox"
	"github.com/SAP-F-2025/attempt-engine/internal/pipeline"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateTerminated State = "terminated"
)

// EndReason values recorded on attempt submission.
const (
	EndReasonFinished = "finished"
	EndReasonTimeout  = "timeout"
)

// API is the remote side of the submission protocol.
type API interface {
	ListAssessments(ctx context.Context) ([]models.Assessment, error)
	SubmitAnswer(ctx context.Context, questionID uint, payload answers.WirePayload) error
	SubmitFinal(ctx context.Context, assessmentID uint) error
}

// Dependencies collects the collaborators a session needs. Drafts and
// Publisher are optional; the rest are required.
type Dependencies struct {
	API         API
	Device      media.Device
	Extractor   pipeline.TextExtractor
	Transcriber pipeline.Transcriber
	Drafts      cache.DraftStore
	Publisher   events.EventPublisher
	Logger      utils.Logger
}

// Controller walks one student through one timed attempt. It owns the
// countdown, the per-question answer containers and transcription jobs,
// and the lock that stops all mutation once the attempt is submitted.
type Controller struct {
	mu sync.Mutex

	cfg       *config.Config
	logger    utils.Logger
	api       API
	media     *media.Manager
	ocr       *pipeline.OCRPipeline
	asr       *pipeline.ASRPipeline
	outbox    *outbox.Outbox
	drafts    cache.DraftStore
	publisher events.EventPublisher

	assessment *models.Assessment
	store      *answers.Store
	ocrJobs    []*pipeline.Job
	asrJobs    []*pipeline.Job

	clock      *Countdown
	state      State
	unavail    bool
	locked     bool
	index      int
	submitting bool
	warned     bool

	recorder *media.Recorder
}

func NewController(cfg *config.Config, deps Dependencies) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	drafts := deps.Drafts
	if drafts == nil {
		drafts = cache.NewMemoryStore()
	}

	manager := media.NewManager(deps.Device, logger)

	c := &Controller{
		cfg:    cfg,
		logger: logger.With("component", "session"),
		api:    deps.API,
		media:  manager,
		ocr: pipeline.NewOCRPipeline(deps.Extractor, pipeline.OCRConfig{
			MaxSizeBytes:   cfg.MaxImageSizeBytes(),
			UploadDelay:    cfg.UploadDelay,
			ExtractTimeout: cfg.OCRTimeout,
		}, logger),
		asr: pipeline.NewASRPipeline(deps.Transcriber, manager, pipeline.ASRConfig{
			TranscribeTimeout: cfg.ASRTimeout,
		}, logger),
		outbox:    outbox.New(logger),
		drafts:    drafts,
		publisher: deps.Publisher,
		state:     StateLoading,
	}
	return c
}

// ===== LIFECYCLE =====

// Load fetches the assessment list, finds the requested one, and builds
// every per-question state container at matching length. Load failure is
// terminal: the session lands in an unavailable state with no retry.
func (c *Controller) Load(ctx context.Context, assessmentID uint) error {
	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	c.mu.Unlock()

	c.logger.Info("Loading assessment", "assessment_id", assessmentID)

	list, err := c.api.ListAssessments(ctx)
	if err != nil {
		return c.failLoad(ctx, assessmentID, fmt.Errorf("%w: %v", ErrAssessmentUnavailable, err))
	}

	var assessment *models.Assessment
	for i := range list {
		if list[i].ID == assessmentID {
			assessment = &list[i]
			break
		}
	}
	if assessment == nil {
		return c.failLoad(ctx, assessmentID, fmt.Errorf("%w: id %d not found", ErrAssessmentUnavailable, assessmentID))
	}

	store, err := answers.NewStore(assessment.Questions)
	if err != nil {
		return c.failLoad(ctx, assessmentID, fmt.Errorf("%w: %v", ErrAssessmentUnavailable, err))
	}

	minutes := assessment.Duration
	if minutes <= 0 {
		minutes = c.cfg.DefaultDurationMinutes
	}
	seconds := minutes * 60

	ocrJobs := make([]*pipeline.Job, len(assessment.Questions))
	asrJobs := make([]*pipeline.Job, len(assessment.Questions))
	for i, q := range assessment.Questions {
		ocrJobs[i] = pipeline.NewJob(q.ID, pipeline.ModalityImage)
		asrJobs[i] = pipeline.NewJob(q.ID, pipeline.ModalityVoice)
	}

	c.mu.Lock()
	c.assessment = assessment
	c.store = store
	c.ocrJobs = ocrJobs
	c.asrJobs = asrJobs
	c.clock = NewCountdown(seconds, c.handleTick, c.handleExpiry)
	c.state = StateReady
	c.mu.Unlock()

	c.restoreDrafts(ctx)

	c.logger.Info("Assessment loaded",
		"assessment_id", assessment.ID,
		"title", assessment.Title,
		"questions", len(assessment.Questions),
		"duration_seconds", seconds)

	c.publish(ctx, events.NewSessionEvent(events.EventSessionLoaded, events.SessionLoadedEvent{
		AssessmentID:    assessment.ID,
		AssessmentTitle: assessment.Title,
		QuestionCount:   len(assessment.Questions),
		DurationSeconds: seconds,
	}))
	return nil
}

func (c *Controller) failLoad(ctx context.Context, assessmentID uint, err error) error {
	c.mu.Lock()
	c.state = StateTerminated
	c.unavail = true
	c.mu.Unlock()

	c.logger.Error("Assessment load failed", "assessment_id", assessmentID, "error", err)
	c.publish(ctx, events.NewSessionEvent(events.EventSessionUnavailable, events.SessionUnavailableEvent{
		AssessmentID: assessmentID,
		Reason:       err.Error(),
	}))
	return err
}

// Start transitions the loaded session to Active. The countdown begins
// counting from the first Tick; call StartClock for the built-in 1 Hz
// source or drive Tick from the host's own loop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	c.state = StateActive
	assessment := c.assessment
	clock := c.clock
	c.mu.Unlock()

	c.logger.Info("Attempt started", "assessment_id", assessment.ID)
	c.publish(ctx, events.NewSessionEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AssessmentID:    assessment.ID,
		DurationSeconds: clock.Remaining(),
	}))
	return nil
}

// StartClock runs the countdown's own 1 Hz goroutine.
func (c *Controller) StartClock() {
	c.mu.Lock()
	clock := c.clock
	active := c.state == StateActive
	c.mu.Unlock()
	if active && clock != nil {
		clock.Run()
	}
}

// Tick advances session time by one second. Also advances the
// recording-duration counter, an independent periodic concern.
func (c *Controller) Tick() {
	c.mu.Lock()
	clock := c.clock
	recorder := c.recorder
	active := c.state == StateActive
	c.mu.Unlock()

	if !active || clock == nil {
		return
	}
	clock.Tick()
	if recorder != nil {
		recorder.TickSecond()
	}
}

func (c *Controller) handleTick(remaining int) {
	c.mu.Lock()
	warn := !c.warned && remaining > 0 && remaining <= c.cfg.TimeWarningSeconds
	if warn {
		c.warned = true
	}
	var assessmentID uint
	if c.assessment != nil {
		assessmentID = c.assessment.ID
	}
	c.mu.Unlock()

	if warn {
		c.logger.Warn("Attempt time warning", "remaining_seconds", remaining)
		c.publish(context.Background(), events.NewSessionEvent(events.EventAttemptTimeWarning, events.AttemptTimeWarningEvent{
			AssessmentID:     assessmentID,
			RemainingSeconds: remaining,
		}))
	}
}

func (c *Controller) handleExpiry() {
	c.logger.Info("Countdown reached zero; forcing submission")
	if err := c.finish(context.Background(), EndReasonTimeout, true); err != nil {
		c.logger.Warn("Forced finish skipped", "error", err)
	}
}

// Teardown clears the countdown and releases every device stream. It
// does not submit anything; in-flight calls are abandoned, not aborted.
func (c *Controller) Teardown() {
	c.mu.Lock()
	clock := c.clock
	recorder := c.recorder
	c.recorder = nil
	if c.state != StateTerminated {
		c.state = StateTerminated
	}
	c.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
	if recorder != nil {
		recorder.Discard()
	}
	c.media.ReleaseAll()
	c.logger.Info("Session torn down")
}

// ===== NAVIGATION =====

// IsCurrentQuestionAnswered is the per-type completion predicate. The
// server-asserted question status short-circuits local checks.
func (c *Controller) IsCurrentQuestionAnswered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return false
	}
	return c.store.IsAnswered(c.index)
}

// Advance submits the current answer best-effort and moves to the next
// question. It waits for call completion, not call success; a failed
// submission is retained in the outbox and never blocks navigation.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if err := c.mutableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if c.index >= c.store.Len()-1 {
		c.mu.Unlock()
		return ErrNoMoreQuestions
	}
	if !c.store.IsAnswered(c.index) {
		c.mu.Unlock()
		return ErrQuestionNotAnswered
	}
	c.submitting = true
	from := c.index
	c.mu.Unlock()

	c.submitCurrentAnswer(ctx, from)

	c.mu.Lock()
	c.submitting = false
	if c.state != StateActive {
		// The clock ran out while the submission was in flight; the
		// session has moved on and this navigation is discarded.
		c.mu.Unlock()
		return nil
	}
	c.index++
	to := c.index
	assessmentID := c.assessment.ID
	recorder := c.recorder
	c.recorder = nil
	c.mu.Unlock()

	// Leaving a question always gives its devices back.
	if recorder != nil {
		recorder.Discard()
	}
	c.media.ReleaseAll()

	c.logger.Info("Advanced to next question", "from", from, "to", to)
	c.publish(ctx, events.NewSessionEvent(events.EventQuestionAdvanced, events.QuestionAdvancedEvent{
		AssessmentID: assessmentID,
		FromIndex:    from,
		ToIndex:      to,
	}))
	return nil
}

// Finish ends the attempt from an explicit action on the last question.
func (c *Controller) Finish(ctx context.Context) error {
	return c.finish(ctx, EndReasonFinished, false)
}

func (c *Controller) finish(ctx context.Context, reason string, force bool) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrSessionNotActive
	}
	if !force {
		if c.submitting {
			c.mu.Unlock()
			return ErrSubmissionInFlight
		}
		if !c.store.IsAnswered(c.index) {
			c.mu.Unlock()
			return ErrQuestionNotAnswered
		}
	}
	c.state = StateSubmitting
	clock := c.clock
	current := c.index
	assessmentID := c.assessment.ID
	recorder := c.recorder
	c.recorder = nil
	// A forced finish can land while an Advance has this question's
	// submission in flight; that call owns it and posting again here
	// would duplicate the answer.
	answerInFlight := c.submitting
	c.mu.Unlock()

	// The session has left Active; the countdown must not fire again.
	clock.Stop()

	if !answerInFlight {
		c.submitCurrentAnswer(ctx, current)
	}

	if err := c.api.SubmitFinal(ctx, assessmentID); err != nil {
		// Best-effort by design: the student is never blocked on this.
		c.outbox.RecordFinal(assessmentID, err)
	}

	c.mu.Lock()
	c.locked = true
	c.state = StateTerminated
	c.mu.Unlock()

	if recorder != nil {
		recorder.Discard()
	}
	c.media.ReleaseAll()

	if err := c.drafts.Clear(ctx, assessmentID); err != nil {
		c.logger.Warn("Failed to clear drafts", "error", err)
	}

	c.logger.Info("Attempt submitted", "assessment_id", assessmentID, "end_reason", reason)
	c.publish(ctx, events.NewSessionEvent(events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
		AssessmentID: assessmentID,
		EndReason:    reason,
	}))
	return nil
}

// submitCurrentAnswer serializes and posts one answer. Failures are
// swallowed into the outbox; callers proceed either way.
func (c *Controller) submitCurrentAnswer(ctx context.Context, index int) {
	c.mu.Lock()
	payload, err := c.store.Serialize(index)
	var questionID uint
	if q, qerr := c.store.Question(index); qerr == nil {
		questionID = q.ID
	}
	if payload.AnswerType == "image" {
		payload.Image = c.ocrJobs[index].Image
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("Answer serialization failed", "question_id", questionID, "error", err)
		return
	}

	submitErr := c.api.SubmitAnswer(ctx, questionID, payload)
	if submitErr != nil {
		c.outbox.RecordAnswer(questionID, payload, submitErr)
	}

	c.publish(ctx, events.NewSessionEvent(events.EventAnswerSubmitted, events.AnswerSubmittedEvent{
		QuestionID: questionID,
		AnswerType: payload.AnswerType,
		Delivered:  submitErr == nil,
	}))
}

// ===== ANSWER MUTATION =====
// Every mutator funnels through guard so the post-submission lock is
// enforced in one place.

func (c *Controller) SelectOption(option int) error {
	return c.guard(func() error { return c.store.SelectOption(c.index, option) })
}

func (c *Controller) SelectBoolean(option int) error {
	return c.guard(func() error { return c.store.SelectBoolean(c.index, option) })
}

func (c *Controller) ToggleOption(option int) error {
	return c.guard(func() error { return c.store.ToggleOption(c.index, option) })
}

func (c *Controller) MoveOrderItem(from, to int) error {
	return c.guard(func() error { return c.store.MoveOrderItem(c.index, from, to) })
}

func (c *Controller) SetMatch(left, right string) error {
	return c.guard(func() error { return c.store.SetMatch(c.index, left, right) })
}

func (c *Controller) PlaceItem(target, item string) error {
	return c.guard(func() error { return c.store.PlaceItem(c.index, target, item) })
}

func (c *Controller) ClearPlacement(target string) error {
	return c.guard(func() error { return c.store.ClearPlacement(c.index, target) })
}

func (c *Controller) SetInputMode(mode models.InputMode) error {
	return c.guard(func() error { return c.store.SetInputMode(c.index, mode) })
}

// SetText edits the open-ended buffer and keeps the draft store current
// for text-mode answers.
func (c *Controller) SetText(ctx context.Context, text string) error {
	var saveDraft bool
	var index int
	var assessmentID uint
	err := c.guard(func() error {
		if err := c.store.SetText(c.index, text); err != nil {
			return err
		}
		if a, aerr := c.store.Answer(c.index); aerr == nil {
			if oa, ok := a.(*models.OpenEndedAnswer); ok && oa.Mode == models.InputModeText {
				saveDraft = true
				index = c.index
				assessmentID = c.assessment.ID
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if saveDraft {
		if derr := c.drafts.SaveDraft(ctx, assessmentID, index, text); derr != nil {
			c.logger.Warn("Failed to save draft", "question_index", index, "error", derr)
		}
	}
	return nil
}

func (c *Controller) guard(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return err
	}
	return fn()
}

// mutableLocked is the single lock/liveness check; callers hold c.mu.
func (c *Controller) mutableLocked() error {
	if c.locked {
		return ErrSessionLocked
	}
	if c.state != StateActive {
		return ErrSessionNotActive
	}
	return nil
}

// ===== ACCESSORS =====

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Unavailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unavail
}

func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	clock := c.clock
	c.mu.Unlock()
	if clock == nil {
		return 0
	}
	return clock.Remaining()
}

func (c *Controller) Assessment() *models.Assessment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assessment
}

func (c *Controller) QuestionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return 0
	}
	return c.store.Len()
}

func (c *Controller) CurrentQuestion() (*models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, ErrSessionNotActive
	}
	return c.store.Question(c.index)
}

func (c *Controller) CurrentChoices() (models.ChoiceSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return models.ChoiceSet{}, ErrSessionNotActive
	}
	return c.store.Choices(c.index)
}

func (c *Controller) CurrentAnswer() (models.Answer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, ErrSessionNotActive
	}
	return c.store.Answer(c.index)
}

func (c *Controller) AvailableItems() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil, ErrSessionNotActive
	}
	return c.store.AvailableItems(c.index)
}

// Outbox exposes retained best-effort submissions to the host.
func (c *Controller) Outbox() *outbox.Outbox {
	return c.outbox
}

// Recorder returns the in-progress recording, if any.
func (c *Controller) Recorder() *media.Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorder
}

// ===== INTERNAL HELPERS =====

func (c *Controller) restoreDrafts(ctx context.Context) {
	c.mu.Lock()
	assessment := c.assessment
	store := c.store
	c.mu.Unlock()

	drafts, err := c.drafts.LoadDrafts(ctx, assessment.ID)
	if err != nil {
		c.logger.Warn("Failed to load drafts", "error", err)
		return
	}

	restored := 0
	for idx, text := range drafts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		q, qerr := store.Question(idx)
		if qerr != nil || q.Type != models.QuestionOpenEnded {
			continue
		}
		if store.SetInputMode(idx, models.InputModeText) != nil {
			continue
		}
		if store.SetText(idx, text) == nil {
			restored++
		}
	}
	if restored > 0 {
		c.logger.Info("Restored open-ended drafts", "count", restored)
	}
}

func (c *Controller) publish(ctx context.Context, event *events.SessionEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishSessionEvent(ctx, event); err != nil {
		c.logger.Warn("Failed to publish session event", "event_type", event.Type, "error", err)
	}
}
