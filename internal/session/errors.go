package session

import "errors"

var (
	ErrAssessmentUnavailable = errors.New("assessment unavailable")
	ErrSessionNotActive      = errors.New("session is not active")
	ErrSessionLocked         = errors.New("attempt is locked; no further changes accepted")
	ErrQuestionNotAnswered   = errors.New("current question is not answered")
	ErrSubmissionInFlight    = errors.New("a submission is already in flight for the current question")
	ErrNoMoreQuestions       = errors.New("already at the last question")
	ErrWrongQuestionType     = errors.New("operation does not apply to the current question type")
	ErrNoActiveRecording     = errors.New("no recording is in progress")
)

// IsUnavailable checks if error represents a failed or missing assessment load
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrAssessmentUnavailable)
}

// IsLocked checks if error represents a mutation against a locked attempt
func IsLocked(err error) bool {
	return errors.Is(err, ErrSessionLocked)
}
