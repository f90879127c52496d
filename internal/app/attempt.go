package app

import (
	"context"
	"sync"
	"time"

	"aptitude-quiz/internal/domain"
	"aptitude-quiz/internal/navigation"
	"aptitude-quiz/internal/timer"
)

// Attempt is one participant's timed run through a quiz. It is the
// countdown's FormSubmitter: expiry submits it with the time-up flag.
type Attempt struct {
	ID          string
	QuizID      string
	UserID      string
	DisplayName string
	StartedAt   time.Time

	quiz      domain.Quiz
	countdown *timer.Countdown
	nav       *navigation.Navigator
	service   *QuizService

	mu      sync.Mutex
	answers map[string][]string
	timeUp  bool
	result  *domain.Result
	done    chan struct{}
}

func (a *Attempt) Quiz() domain.Quiz                { return a.quiz }
func (a *Attempt) Countdown() *timer.Countdown      { return a.countdown }
func (a *Attempt) Navigator() *navigation.Navigator { return a.nav }

// Done is closed once the attempt is submitted.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result returns the scored submission once Done is closed.
func (a *Attempt) Result() (domain.Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.Result{}, false
	}
	return *a.result, true
}

// MarkTimeUp flags the submission as forced by the countdown.
func (a *Attempt) MarkTimeUp() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.timeUp = true
}

// Submit is invoked by the countdown after it claimed the submission guard.
func (a *Attempt) Submit(ctx context.Context) error {
	_, err := a.service.finish(ctx, a, true)
	return err
}

func (a *Attempt) record(submission domain.AnswerSubmission) (int, error) {
	question, number, err := findQuestion(a.quiz, submission.QuestionID)
	if err != nil {
		return 0, err
	}
	if err := validateOptions(question, submission.OptionIDs); err != nil {
		return 0, err
	}

	a.mu.Lock()
	if len(submission.OptionIDs) == 0 {
		delete(a.answers, submission.QuestionID)
	} else {
		a.answers[submission.QuestionID] = append([]string(nil), submission.OptionIDs...)
	}
	a.mu.Unlock()

	if a.nav != nil && len(submission.OptionIDs) > 0 {
		a.nav.MarkAnswered(number)
	}
	return number, nil
}

func (a *Attempt) answersCopy() map[string][]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string][]string, len(a.answers))
	for k, v := range a.answers {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (a *Attempt) isTimeUp() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timeUp
}

func (a *Attempt) complete(result domain.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result != nil {
		return
	}
	a.result = &result
	close(a.done)
}
