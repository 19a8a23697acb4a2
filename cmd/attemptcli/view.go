package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/SAP-F-2025/attempt-engine/internal/pipeline"
	"github.com/SAP-F-2025/attempt-engine/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	timerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	warningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// View renders the attempt for the current session state.
func (m Model) View() string {
	switch m.ctrl.State() {
	case session.StateLoading:
		return "Loading assessment...\n"
	case session.StateReady:
		return m.viewReady()
	case session.StateActive, session.StateSubmitting:
		return m.viewActive()
	case session.StateTerminated:
		return m.viewTerminated()
	}
	return ""
}

func (m Model) viewReady() string {
	a := m.ctrl.Assessment()
	var b strings.Builder
	b.WriteString(titleStyle.Render(a.Title) + "\n")
	if a.Topic != "" {
		b.WriteString(a.Topic + "\n")
	}
	b.WriteString(fmt.Sprintf("%d questions | %s | %d marks\n\n",
		len(a.Questions), formatClock(m.ctrl.Remaining()), a.TotalMarks))
	b.WriteString(helpStyle.Render("enter start attempt | ctrl+c quit") + "\n")
	return b.String()
}

func (m Model) viewActive() string {
	q, err := m.ctrl.CurrentQuestion()
	if err != nil {
		return errStyle.Render(err.Error()) + "\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n" + q.Text + "\n\n")
	b.WriteString(m.renderAnswerArea(q))

	if m.busy {
		b.WriteString("\n" + helpStyle.Render("working...") + "\n")
	}
	if m.errMsg != "" {
		b.WriteString("\n" + errStyle.Render(m.errMsg) + "\n")
	}
	b.WriteString("\n" + helpStyle.Render(m.helpLine(q)) + "\n")
	return b.String()
}

func (m Model) renderHeader() string {
	remaining := m.ctrl.Remaining()
	clock := formatClock(remaining)
	style := timerStyle
	if remaining <= 300 {
		style = warningStyle
	}
	progress := fmt.Sprintf("Question %d/%d", m.ctrl.Index()+1, m.ctrl.QuestionCount())
	return lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(progress),
		"  ",
		style.Render(clock))
}

func (m Model) renderAnswerArea(q *models.Question) string {
	choices, err := m.ctrl.CurrentChoices()
	if err != nil {
		return errStyle.Render(err.Error())
	}
	a, err := m.ctrl.CurrentAnswer()
	if err != nil {
		return errStyle.Render(err.Error())
	}

	switch q.Type {
	case models.QuestionSingleChoice:
		return renderOptions(choices.Items, func(i int) bool {
			return a.(*models.SingleChoiceAnswer).Selected == i
		})
	case models.QuestionBoolean:
		return renderOptions(choices.Items, func(i int) bool {
			return a.(*models.BooleanAnswer).Selected == i
		})
	case models.QuestionMultiChoice:
		return renderOptions(choices.Items, func(i int) bool {
			return a.(*models.MultiChoiceAnswer).Selected[i]
		})
	case models.QuestionOrdering:
		return m.renderOrdering(a.(*models.OrderingAnswer))
	case models.QuestionMatching:
		return m.renderMatching(choices.Items, choices.Targets, a.(*models.MatchingAnswer))
	case models.QuestionDragDrop:
		return m.renderDragDrop(choices.Targets, a.(*models.DragDropAnswer))
	case models.QuestionOpenEnded:
		return m.renderOpenEnded(a.(*models.OpenEndedAnswer))
	}
	return ""
}

func renderOptions(items []string, selected func(int) bool) string {
	var b strings.Builder
	for i, item := range items {
		marker := "[ ]"
		line := fmt.Sprintf("%d. %s %s", i+1, marker, item)
		if selected(i) {
			line = fmt.Sprintf("%d. [x] %s", i+1, item)
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderOrdering(a *models.OrderingAnswer) string {
	var b strings.Builder
	for i, item := range a.Order {
		line := fmt.Sprintf("%d. %s", i+1, item)
		if i == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) renderMatching(items, targets []string, a *models.MatchingAnswer) string {
	var b strings.Builder
	for i, item := range items {
		match := a.Pairs[item]
		if match == "" {
			match = "—"
		}
		line := fmt.Sprintf("%s -> %s", item, match)
		if i == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\nTargets: ")
	for i, t := range targets {
		b.WriteString(fmt.Sprintf("%d=%s ", i+1, t))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderDragDrop(targets []string, a *models.DragDropAnswer) string {
	var b strings.Builder
	for i, target := range targets {
		placed := a.Placements[target]
		if placed == "" {
			placed = "—"
		}
		line := fmt.Sprintf("%s: %s", target, placed)
		if i == m.cursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	available, err := m.ctrl.AvailableItems()
	if err == nil {
		b.WriteString("\nAvailable: ")
		for i, item := range available {
			b.WriteString(fmt.Sprintf("%d=%s ", i+1, item))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderOpenEnded(a *models.OpenEndedAnswer) string {
	var b strings.Builder
	switch a.Mode {
	case models.InputModeUnset:
		b.WriteString("Choose how to answer:\n")
		b.WriteString("  t  type text\n")
		b.WriteString("  i  photograph handwriting\n")
		b.WriteString("  v  record voice\n")
	case models.InputModeText:
		b.WriteString(m.input.View() + "\n")
	case models.InputModeImage:
		b.WriteString(m.renderJob(m.ctrl.OCRJob()))
		b.WriteString(m.input.View() + "\n")
	case models.InputModeVoice:
		if rec := m.ctrl.Recorder(); rec != nil {
			b.WriteString(fmt.Sprintf("Recording... %ds (%s)\n", rec.Seconds(), rec.Encoding()))
		} else {
			b.WriteString(m.renderJob(m.ctrl.ASRJob()))
		}
		b.WriteString(m.input.View() + "\n")
	}
	return b.String()
}

func (m Model) renderJob(job *pipeline.Job) string {
	if job == nil || job.Stage == pipeline.StageIdle {
		return ""
	}
	line := fmt.Sprintf("[%s]", job.Stage)
	if job.Stage == pipeline.StageError {
		line = errStyle.Render(fmt.Sprintf("[%s] %s", job.Stage, job.Err))
	}
	return line + "\n"
}

func (m Model) helpLine(q *models.Question) string {
	switch q.Type {
	case models.QuestionSingleChoice, models.QuestionBoolean:
		return "1-9 select | enter next"
	case models.QuestionMultiChoice:
		return "1-9 toggle | enter next"
	case models.QuestionOrdering:
		return "j/k move cursor | J/K move item | enter next"
	case models.QuestionMatching:
		return "j/k cursor | 1-9 match target | x clear | enter next"
	case models.QuestionDragDrop:
		return "j/k cursor | 1-9 place item | x clear | enter next"
	case models.QuestionOpenEnded:
		return "t/i/v mode | c capture | space record/stop | r retry | d discard | e edit | enter next"
	}
	return "enter next"
}

func (m Model) viewTerminated() string {
	if m.ctrl.Unavailable() {
		return errStyle.Render("Assessment unavailable.") + "\n"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Attempt submitted.") + "\n")
	if pending := m.ctrl.Outbox().Len(); pending > 0 {
		b.WriteString(fmt.Sprintf("%d submissions could not be delivered and were retained.\n", pending))
	}
	b.WriteString(helpStyle.Render("q quit") + "\n")
	return b.String()
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
