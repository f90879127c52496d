package domain

import "errors"

var (
	// ErrAttemptNotFound is returned when no attempt is running for the user.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrAttemptInProgress is returned when the user already has a running attempt.
	ErrAttemptInProgress = errors.New("quiz attempt already in progress")
	// ErrAlreadySubmitted is returned when a user starts or submits a quiz twice.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
	// ErrTooManyOptions is returned when several options are sent for a single-choice question.
	ErrTooManyOptions = errors.New("question accepts a single option")
)
