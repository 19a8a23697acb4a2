package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/SAP-F-2025/attempt-engine/internal/answers"
	"github.com/SAP-F-2025/attempt-engine/internal/utils"
)

// Submitter re-posts retained submissions; the protocol client satisfies it.
type Submitter interface {
	SubmitAnswer(ctx context.Context, questionID uint, payload answers.WirePayload) error
	SubmitFinal(ctx context.Context, assessmentID uint) error
}

// Record is one failed best-effort submission, kept with enough context
// to re-post it later.
type Record struct {
	QuestionID   uint                `json:"question_id,omitempty"`
	AssessmentID uint                `json:"assessment_id,omitempty"`
	Final        bool                `json:"final"`
	Payload      answers.WirePayload `json:"-"`
	Err          string              `json:"error"`
	FailedAt     time.Time           `json:"failed_at"`
}

// Outbox retains submissions whose network call failed. The session
// never blocks or surfaces these; a host application can flush them.
type Outbox struct {
	mu      sync.Mutex
	records []Record
	logger  utils.Logger
}

func New(logger utils.Logger) *Outbox {
	return &Outbox{logger: logger}
}

// RecordAnswer retains a failed per-question submission.
func (o *Outbox) RecordAnswer(questionID uint, payload answers.WirePayload, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, Record{
		QuestionID: questionID,
		Payload:    payload,
		Err:        err.Error(),
		FailedAt:   time.Now(),
	})
	o.logger.Warn("Answer submission retained in outbox", "question_id", questionID, "error", err)
}

// RecordFinal retains a failed final attempt submission.
func (o *Outbox) RecordFinal(assessmentID uint, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, Record{
		AssessmentID: assessmentID,
		Final:        true,
		Err:          err.Error(),
		FailedAt:     time.Now(),
	})
	o.logger.Warn("Final submission retained in outbox", "assessment_id", assessmentID, "error", err)
}

// Pending returns a copy of the retained records.
func (o *Outbox) Pending() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Record(nil), o.records...)
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.records)
}

// Flush re-posts every retained record, dropping the ones that succeed.
// Still best-effort: failures simply stay queued. Returns how many
// records were delivered.
func (o *Outbox) Flush(ctx context.Context, submitter Submitter) int {
	o.mu.Lock()
	records := o.records
	o.records = nil
	o.mu.Unlock()

	delivered := 0
	var remaining []Record
	for _, r := range records {
		var err error
		if r.Final {
			err = submitter.SubmitFinal(ctx, r.AssessmentID)
		} else {
			err = submitter.SubmitAnswer(ctx, r.QuestionID, r.Payload)
		}
		if err != nil {
			r.Err = err.Error()
			remaining = append(remaining, r)
			continue
		}
		delivered++
	}

	o.mu.Lock()
	o.records = append(remaining, o.records...)
	o.mu.Unlock()

	if delivered > 0 {
		o.logger.Info("Outbox flushed", "delivered", delivered, "remaining", len(remaining))
	}
	return delivered
}
