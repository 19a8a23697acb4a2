package main

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/SAP-F-2025/attempt-engine/internal/media"
	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/pipeline"
	"github.com/SAP-F-2025/attempt-engine/internal/session"
)

// Model renders one attempt as a terminal UI. The controller owns all
// session state; the model holds only display concerns.
type Model struct {
	ctrl   *session.Controller
	input  textinput.Model
	cursor int
	busy   bool
	errMsg string
	width  int
}

// Options configures the attempt UI model.
type Options struct {
	Placeholder string
}

func NewModel(ctrl *session.Controller, opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = opts.Placeholder
	if ti.Placeholder == "" {
		ti.Placeholder = "Type your answer"
	}
	ti.CharLimit = 4000
	return Model{
		ctrl:  ctrl,
		input: ti,
	}
}

// Init starts the one-second clock.
func (m Model) Init() tea.Cmd {
	return tick()
}

// tickMsg carries the 1 Hz clock tick.
type tickMsg time.Time

// pipelineDoneMsg reports a finished media-to-text run.
type pipelineDoneMsg struct{ err error }

// submitDoneMsg reports a finished advance or final submission.
type submitDoneMsg struct{ err error }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update consumes key presses and clock ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.input.Width = max(typed.Width-8, 20)
		return m, nil

	case tickMsg:
		m.ctrl.Tick()
		if m.ctrl.State() == session.StateTerminated && m.ctrl.Unavailable() {
			return m, tea.Quit
		}
		return m, tick()

	case pipelineDoneMsg:
		m.busy = false
		m.errMsg = ""
		if typed.err != nil {
			m.errMsg = typed.err.Error()
		}
		m.syncInput()
		return m, nil

	case submitDoneMsg:
		m.busy = false
		m.errMsg = ""
		if typed.err != nil {
			m.errMsg = typed.err.Error()
		}
		m.cursor = 0
		m.syncInput()
		if m.ctrl.State() == session.StateTerminated {
			return m, nil
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(typed)
	}
	return m, nil
}

func (m Model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		m.ctrl.Teardown()
		return m, tea.Quit
	}

	switch m.ctrl.State() {
	case session.StateReady:
		if key.Type == tea.KeyEnter {
			m.errMsg = ""
			if err := m.ctrl.Start(context.Background()); err != nil {
				m.errMsg = err.Error()
			}
		}
		return m, nil
	case session.StateActive:
		if m.busy {
			return m, nil
		}
		return m.handleActiveKey(key)
	case session.StateTerminated:
		if key.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleActiveKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	q, err := m.ctrl.CurrentQuestion()
	if err != nil {
		m.errMsg = err.Error()
		return m, nil
	}

	// Text entry owns the keyboard except for enter and escape.
	if m.textEditing(q) {
		switch key.Type {
		case tea.KeyEnter:
			return m.advance()
		case tea.KeyEsc:
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(key)
		m.errMsg = ""
		if err := m.ctrl.SetText(context.Background(), m.input.Value()); err != nil {
			m.errMsg = err.Error()
		}
		return m, cmd
	}

	if key.Type == tea.KeyEnter {
		return m.advance()
	}

	m.errMsg = ""
	if err := m.applyAnswerKey(q, key.String()); err != nil {
		m.errMsg = err.Error()
	}
	return m.maybeRunPipeline(q, key.String())
}

// applyAnswerKey maps a key press to the mutator for the current
// question type.
func (m *Model) applyAnswerKey(q *models.Question, key string) error {
	switch q.Type {
	case models.QuestionSingleChoice:
		if n, ok := optionDigit(key); ok {
			return m.ctrl.SelectOption(n)
		}
	case models.QuestionBoolean:
		if n, ok := optionDigit(key); ok {
			return m.ctrl.SelectBoolean(n)
		}
	case models.QuestionMultiChoice:
		if n, ok := optionDigit(key); ok {
			return m.ctrl.ToggleOption(n)
		}
	case models.QuestionOrdering:
		return m.applyOrderingKey(key)
	case models.QuestionMatching:
		return m.applyMatchingKey(key)
	case models.QuestionDragDrop:
		return m.applyDragDropKey(key)
	case models.QuestionOpenEnded:
		return m.applyOpenEndedKey(key)
	}
	return nil
}

func (m *Model) applyOrderingKey(key string) error {
	choices, err := m.ctrl.CurrentChoices()
	if err != nil {
		return err
	}
	last := len(choices.Items) - 1
	switch key {
	case "j", "down":
		m.cursor = min(m.cursor+1, last)
	case "k", "up":
		m.cursor = max(m.cursor-1, 0)
	case "J":
		if m.cursor < last {
			if err := m.ctrl.MoveOrderItem(m.cursor, m.cursor+1); err != nil {
				return err
			}
			m.cursor++
		}
	case "K":
		if m.cursor > 0 {
			if err := m.ctrl.MoveOrderItem(m.cursor, m.cursor-1); err != nil {
				return err
			}
			m.cursor--
		}
	}
	return nil
}

func (m *Model) applyMatchingKey(key string) error {
	choices, err := m.ctrl.CurrentChoices()
	if err != nil {
		return err
	}
	switch key {
	case "j", "down":
		m.cursor = min(m.cursor+1, len(choices.Items)-1)
	case "k", "up":
		m.cursor = max(m.cursor-1, 0)
	case "x":
		return m.ctrl.SetMatch(choices.Items[m.cursor], "")
	default:
		if n, ok := optionDigit(key); ok && n < len(choices.Targets) {
			return m.ctrl.SetMatch(choices.Items[m.cursor], choices.Targets[n])
		}
	}
	return nil
}

func (m *Model) applyDragDropKey(key string) error {
	choices, err := m.ctrl.CurrentChoices()
	if err != nil {
		return err
	}
	switch key {
	case "j", "down":
		m.cursor = min(m.cursor+1, len(choices.Targets)-1)
	case "k", "up":
		m.cursor = max(m.cursor-1, 0)
	case "x":
		return m.ctrl.ClearPlacement(choices.Targets[m.cursor])
	default:
		if n, ok := optionDigit(key); ok {
			available, err := m.ctrl.AvailableItems()
			if err != nil {
				return err
			}
			if n < len(available) {
				return m.ctrl.PlaceItem(choices.Targets[m.cursor], available[n])
			}
		}
	}
	return nil
}

func (m *Model) applyOpenEndedKey(key string) error {
	switch key {
	case "t":
		if err := m.ctrl.SetInputMode(models.InputModeText); err != nil {
			return err
		}
		m.syncInput()
		m.input.Focus()
	case "i":
		return m.ctrl.SetInputMode(models.InputModeImage)
	case "v":
		return m.ctrl.SetInputMode(models.InputModeVoice)
	case "e":
		// Edit the transcribed buffer in place.
		m.syncInput()
		m.input.Focus()
	case "d":
		return m.ctrl.DiscardRecording()
	}
	return nil
}

// maybeRunPipeline starts the slow media operations as background
// commands so the clock keeps ticking while they run.
func (m Model) maybeRunPipeline(q *models.Question, key string) (tea.Model, tea.Cmd) {
	if q.Type != models.QuestionOpenEnded {
		return m, nil
	}
	ctrl := m.ctrl
	switch key {
	case "c":
		// A job that already ran (failed or not) restarts from scratch
		// with the fresh capture; only an untouched job submits directly.
		replace := false
		if job := ctrl.OCRJob(); job != nil && job.Stage != pipeline.StageIdle {
			replace = true
		}
		m.busy = true
		return m, func() tea.Msg {
			ctx := context.Background()
			frame, err := ctrl.CaptureImage(ctx, media.Constraints{})
			if err != nil {
				return pipelineDoneMsg{err: err}
			}
			if replace {
				return pipelineDoneMsg{err: ctrl.ReplaceImage(ctx, frame)}
			}
			return pipelineDoneMsg{err: ctrl.SubmitImage(ctx, frame)}
		}
	case "r":
		mode := m.currentInputMode()
		m.busy = true
		return m, func() tea.Msg {
			ctx := context.Background()
			if mode == models.InputModeImage {
				return pipelineDoneMsg{err: ctrl.RetryOCR(ctx)}
			}
			return pipelineDoneMsg{err: ctrl.RetryASR(ctx)}
		}
	case " ":
		if rec := ctrl.Recorder(); rec != nil {
			m.busy = true
			return m, func() tea.Msg {
				return pipelineDoneMsg{err: ctrl.StopVoiceRecording(context.Background())}
			}
		}
		m.errMsg = ""
		if err := ctrl.StartVoiceRecording(context.Background(), media.Constraints{}); err != nil {
			m.errMsg = err.Error()
		}
		return m, nil
	}
	return m, nil
}

// advance submits the current answer and moves on, or finishes the
// attempt from the last question.
func (m Model) advance() (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	last := ctrl.Index() == ctrl.QuestionCount()-1
	m.busy = true
	m.input.Blur()
	return m, func() tea.Msg {
		ctx := context.Background()
		if last {
			return submitDoneMsg{err: ctrl.Finish(ctx)}
		}
		return submitDoneMsg{err: ctrl.Advance(ctx)}
	}
}

// currentInputMode reports the open-ended input mode of the current
// question, or unset for every other question type.
func (m Model) currentInputMode() models.InputMode {
	a, err := m.ctrl.CurrentAnswer()
	if err != nil {
		return models.InputModeUnset
	}
	if oa, ok := a.(*models.OpenEndedAnswer); ok {
		return oa.Mode
	}
	return models.InputModeUnset
}

// syncInput mirrors the controller's open-ended buffer into the text
// widget after transcription, restore or navigation.
func (m *Model) syncInput() {
	a, err := m.ctrl.CurrentAnswer()
	if err != nil {
		m.input.SetValue("")
		return
	}
	if oa, ok := a.(*models.OpenEndedAnswer); ok {
		m.input.SetValue(oa.Text)
		return
	}
	m.input.SetValue("")
}

func (m Model) textEditing(q *models.Question) bool {
	if q.Type != models.QuestionOpenEnded || !m.input.Focused() {
		return false
	}
	a, err := m.ctrl.CurrentAnswer()
	if err != nil {
		return false
	}
	oa, ok := a.(*models.OpenEndedAnswer)
	return ok && oa.Mode != models.InputModeUnset
}

func optionDigit(key string) (int, bool) {
	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || n > 9 {
		return 0, false
	}
	return n - 1, true
}
