package answers

import "errors"

var (
	ErrIndexOutOfRange     = errors.New("question index out of range")
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrTypeMismatch        = errors.New("answer variant does not match question type")
	ErrInvalidOption       = errors.New("option index out of range")
	ErrInvalidPosition     = errors.New("ordering position out of range")
	ErrUnknownItem         = errors.New("item is not part of the question's choices")
	ErrUnknownTarget       = errors.New("target is not part of the question's choices")
	ErrInputModeLocked     = errors.New("input mode cannot change once chosen")
	ErrInputModeUnset      = errors.New("input mode has not been chosen")
)
