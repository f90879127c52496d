package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"aptitude-quiz/internal/app"
	"aptitude-quiz/internal/domain"
	"aptitude-quiz/internal/navigation"
	"aptitude-quiz/internal/timer"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string   `json:"questionId"`
	OptionIDs  []string `json:"optionIds"`
}

type gotoPayload struct {
	Number int `json:"number"`
}

type secondsPayload struct {
	Seconds int `json:"seconds"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type joinedPayload struct {
	AttemptID     string         `json:"attemptId"`
	QuizID        string         `json:"quizId"`
	Title         string         `json:"title"`
	QuestionCount int            `json:"questionCount"`
	Timer         timer.Snapshot `json:"timer"`
}

type highlightPayload struct {
	Level string `json:"level"`
	Pulse bool   `json:"pulse"`
}

type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// questionView never carries the correct flags.
type questionView struct {
	Number     int             `json:"number"`
	ID         string          `json:"id"`
	Prompt     string          `json:"prompt"`
	Category   string          `json:"category,omitempty"`
	Multiple   bool            `json:"multiple"`
	Options    []optionView    `json:"options"`
	Navigation navigation.View `json:"navigation"`
}

type answeredPayload struct {
	QuestionID string          `json:"questionId"`
	Number     int             `json:"number"`
	Navigation navigation.View `json:"navigation"`
}

type submitConfirmPayload struct {
	Confirmation string             `json:"confirmation,omitempty"`
	Summary      navigation.Summary `json:"summary"`
	Navigation   navigation.View    `json:"navigation"`
}

type resultPayload struct {
	Result  domain.Result      `json:"result"`
	Flashes []domain.FlashNote `json:"flashes"`
}

func newQuestionView(attempt *app.Attempt) (questionView, bool) {
	nav := attempt.Navigator()
	view := nav.View()
	quiz := attempt.Quiz()
	if view.Current < 1 || view.Current > len(quiz.Questions) {
		return questionView{}, false
	}
	q := quiz.Questions[view.Current-1]
	options := make([]optionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, optionView{ID: opt.ID, Text: opt.Text})
	}
	return questionView{
		Number:     view.Current,
		ID:         q.ID,
		Prompt:     q.Prompt,
		Category:   q.Category,
		Multiple:   q.Multiple,
		Options:    options,
		Navigation: view,
	}, true
}

// statusFor maps domain and timer errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrAttemptInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrOptionNotFound),
		errors.Is(err, domain.ErrTooManyOptions),
		errors.Is(err, timer.ErrInvalidDuration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
