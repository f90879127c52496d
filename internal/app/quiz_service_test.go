package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"aptitude-quiz/internal/app"
	"aptitude-quiz/internal/domain"
	"aptitude-quiz/internal/infra/memory"
	"aptitude-quiz/internal/timer"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func TestStartAttemptUsesQuizTimer(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if got := attempt.Countdown().Total(); got != 120 {
		t.Fatalf("expected quiz timer of 120s, got %d", got)
	}
	if !attempt.Countdown().IsRunning() {
		t.Fatalf("expected countdown running")
	}
	if attempt.Navigator().Total() != 3 {
		t.Fatalf("expected navigator over 3 questions, got %d", attempt.Navigator().Total())
	}

	_, err = env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}
}

func TestStartAttemptDurationOverride(t *testing.T) {
	env := newTestEnv(t)
	attempt, err := env.service.StartAttempt(context.Background(), "quiz-1", "u1", "Alice", app.StartOptions{
		DurationSeconds: 45,
		Display:         &nopDisplay{},
	})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	if got := attempt.Countdown().Total(); got != 45 {
		t.Fatalf("expected override of 45s, got %d", got)
	}
}

func TestStartAttemptUnknownQuiz(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.StartAttempt(context.Background(), "nope", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestRecordAnswerValidates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}}); err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	cases := []struct {
		name    string
		answer  domain.AnswerSubmission
		wantErr error
		wantNum int
	}{
		{"single", domain.AnswerSubmission{QuestionID: "q1", OptionIDs: []string{"a"}}, nil, 1},
		{"multiple", domain.AnswerSubmission{QuestionID: "q3", OptionIDs: []string{"a", "c"}}, nil, 3},
		{"unknown question", domain.AnswerSubmission{QuestionID: "q9", OptionIDs: []string{"a"}}, domain.ErrQuestionNotFound, 0},
		{"unknown option", domain.AnswerSubmission{QuestionID: "q1", OptionIDs: []string{"z"}}, domain.ErrOptionNotFound, 0},
		{"two options on single", domain.AnswerSubmission{QuestionID: "q2", OptionIDs: []string{"a", "b"}}, domain.ErrTooManyOptions, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			num, err := env.service.RecordAnswer(ctx, "quiz-1", "u1", tc.answer)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if num != tc.wantNum {
				t.Fatalf("expected question number %d, got %d", tc.wantNum, num)
			}
		})
	}

	if _, err := env.service.RecordAnswer(ctx, "quiz-1", "u2", domain.AnswerSubmission{QuestionID: "q1"}); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestManualSubmitScoresAndFlashes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	answer(t, env.service, "q1", "a")
	answer(t, env.service, "q2", "a") // wrong
	answer(t, env.service, "q3", "a", "c")

	result, err := env.service.Submit(ctx, "quiz-1", "u1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 3 || result.MaxScore != 4 {
		t.Fatalf("expected 3/4, got %d/%d", result.Score, result.MaxScore)
	}
	if result.CategoryScores["numerical"] != 1 || result.CategoryScores["verbal"] != 0 || result.CategoryScores["logical"] != 2 {
		t.Fatalf("unexpected category scores %+v", result.CategoryScores)
	}
	if result.TimeUp {
		t.Fatalf("expected manual submission")
	}
	if attempt.Countdown().IsRunning() {
		t.Fatalf("expected countdown stopped after submit")
	}
	select {
	case <-attempt.Done():
	default:
		t.Fatalf("expected attempt done")
	}

	notes, _ := env.service.PopFlashes(ctx, "u1")
	if len(notes) != 1 || notes[0].Text != "Quiz completed! Your score: 3/4" || notes[0].Severity != domain.SeveritySuccess {
		t.Fatalf("unexpected flashes %+v", notes)
	}

	if _, err := env.service.Submit(ctx, "quiz-1", "u1", false); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt gone after submit, got %v", err)
	}
	_, err = env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted on restart, got %v", err)
	}
}

func TestMultipleChoiceNeedsExactSet(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}}); err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	answer(t, env.service, "q3", "a")

	result, err := env.service.Submit(ctx, "quiz-1", "u1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 0 {
		t.Fatalf("expected partial selection to score 0, got %d", result.Score)
	}
}

func TestExpiryAutoSubmitsWithTimeUp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{
		DurationSeconds: 5,
		Display:         &nopDisplay{},
	})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	answer(t, env.service, "q1", "a")

	env.clock.Advance(5 * time.Second)
	waitFor(t, func() bool { return attempt.Countdown().State() == timer.StateExpired })
	env.clock.Advance(timer.DefaultGracePeriod)

	select {
	case <-attempt.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for auto-submit")
	}
	result, ok := attempt.Result()
	if !ok || !result.TimeUp || result.Score != 1 {
		t.Fatalf("unexpected auto-submitted result %+v", result)
	}

	notes, _ := env.service.PopFlashes(ctx, "u1")
	if len(notes) != 1 || notes[0].Text != "Time is over, so your responses have been submitted." || notes[0].Severity != domain.SeverityWarning {
		t.Fatalf("unexpected flashes %+v", notes)
	}
}

func TestManualSubmitDuringGraceWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{
		DurationSeconds: 2,
		Display:         &nopDisplay{},
	})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	env.clock.Advance(2 * time.Second)
	waitFor(t, func() bool { return attempt.Countdown().State() == timer.StateExpired })

	result, err := env.service.Submit(ctx, "quiz-1", "u1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.TimeUp {
		t.Fatalf("expected time-up flag carried from expiry")
	}

	env.clock.Advance(timer.DefaultGracePeriod)
	time.Sleep(20 * time.Millisecond)
	results, _ := env.results.ListResults(ctx, "quiz-1")
	if len(results) != 1 {
		t.Fatalf("expected exactly one stored result, got %d", len(results))
	}
}

func TestSubmitRetriesAfterFailedSave(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	flaky := &flakyResults{ResultStore: results, failures: 1}
	env := newTestEnvWithResults(t, results, flaky)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	answer(t, env.service, "q1", "a")

	if _, err := env.service.Submit(ctx, "quiz-1", "u1", false); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if !attempt.Countdown().IsRunning() {
		t.Fatalf("expected countdown still running after failed save, got %s", attempt.Countdown().State())
	}
	if _, ok := env.service.Attempt("quiz-1", "u1"); !ok {
		t.Fatalf("expected attempt kept after failed save")
	}
	_, err = env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if !errors.Is(err, domain.ErrAttemptInProgress) {
		t.Fatalf("expected the kept attempt to block a restart, got %v", err)
	}

	result, err := env.service.Submit(ctx, "quiz-1", "u1", false)
	if err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if result.Score != 1 || result.TimeUp {
		t.Fatalf("unexpected retried result %+v", result)
	}
	if attempt.Countdown().IsRunning() {
		t.Fatalf("expected countdown stopped after successful save")
	}
	if _, ok := env.service.Attempt("quiz-1", "u1"); ok {
		t.Fatalf("expected attempt removed after successful save")
	}
	stored, _ := results.ListResults(ctx, "quiz-1")
	if len(stored) != 1 {
		t.Fatalf("expected one stored result, got %d", len(stored))
	}
}

func TestFailedAutoSubmitLeavesAttemptForManualSubmit(t *testing.T) {
	ctx := context.Background()
	results := memory.NewResultStore()
	flaky := &flakyResults{ResultStore: results, failures: 1}
	env := newTestEnvWithResults(t, results, flaky)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{
		DurationSeconds: 3,
		Display:         &nopDisplay{},
	})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	answer(t, env.service, "q3", "a", "c")

	env.clock.Advance(3 * time.Second)
	waitFor(t, func() bool { return attempt.Countdown().State() == timer.StateExpired })
	env.clock.Advance(timer.DefaultGracePeriod)
	waitFor(t, func() bool { return flaky.calls() == 1 })

	if _, done := attempt.Result(); done {
		t.Fatalf("failed auto-submit must not complete the attempt")
	}
	// the auto-submit hands its claim back once the failed save returns
	var result domain.Result
	waitFor(t, func() bool {
		result, err = env.service.Submit(ctx, "quiz-1", "u1", false)
		return !errors.Is(err, domain.ErrAlreadySubmitted)
	})
	if err != nil {
		t.Fatalf("manual submit after failed auto-submit: %v", err)
	}
	if !result.TimeUp || result.Score != 2 {
		t.Fatalf("expected time-up result keeping answers, got %+v", result)
	}
}

func TestSubmitFormWithoutAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.service.SubmitForm(ctx, "quiz-1", "u1", "Alice", map[string][]string{
		"q1": {"a"},
		"q2": {"b"},
	}, true)
	if err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if result.Score != 2 || !result.TimeUp {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, err := env.service.SubmitForm(ctx, "quiz-1", "u1", "Alice", nil, false); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitFormMergesIntoAttempt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	answer(t, env.service, "q1", "a")

	result, err := env.service.SubmitForm(ctx, "quiz-1", "u1", "Alice", map[string][]string{"q2": {"b"}}, false)
	if err != nil {
		t.Fatalf("submit form: %v", err)
	}
	if result.Score != 2 {
		t.Fatalf("expected merged answers to score 2, got %d", result.Score)
	}
	if _, ok := attempt.Result(); !ok {
		t.Fatalf("expected attempt completed")
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	submit := func(userID, name string, answers map[string][]string) {
		t.Helper()
		if _, err := env.service.SubmitForm(ctx, "quiz-1", userID, name, answers, false); err != nil {
			t.Fatalf("submit %s: %v", userID, err)
		}
	}
	submit("u1", "Carol", map[string][]string{"q1": {"a"}})
	env.clock.Advance(time.Second)
	submit("u2", "Bob", map[string][]string{"q1": {"a"}, "q2": {"b"}})
	env.clock.Advance(time.Second)
	submit("u3", "Alice", map[string][]string{"q1": {"a"}})

	lb, err := env.service.Leaderboard(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	got := []string{}
	for _, e := range lb.Entries {
		got = append(got, e.UserID)
	}
	want := []string{"u2", "u1", "u3"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestLeaveStopsCountdown(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	attempt, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}})
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}

	env.service.Leave(ctx, "quiz-1", "u1")
	if attempt.Countdown().State() != timer.StateStopped {
		t.Fatalf("expected stopped countdown, got %s", attempt.Countdown().State())
	}
	if _, ok := env.service.Attempt("quiz-1", "u1"); ok {
		t.Fatalf("expected attempt removed")
	}
	// leaving does not count as a submission
	if _, err := env.service.StartAttempt(ctx, "quiz-1", "u1", "Alice", app.StartOptions{Display: &nopDisplay{}}); err != nil {
		t.Fatalf("restart after leave: %v", err)
	}
}

type testEnv struct {
	service *app.QuizService
	results *memory.ResultStore
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	return newTestEnvWithResults(t, memory.NewResultStore(), nil)
}

// newTestEnvWithResults lets a test put a wrapper in front of the result store.
func newTestEnvWithResults(t *testing.T, results *memory.ResultStore, repo app.ResultRepository) testEnv {
	t.Helper()
	if repo == nil {
		repo = results
	}
	clock := clockwork.NewFakeClock()
	attempts := memory.NewAttemptStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": sampleQuiz(),
	}), 5*time.Minute, memory.WithClock(clock))
	service := app.NewQuizService(attempts, quizRepo, repo, memory.NewFlashStore(),
		app.WithClock(clock),
		app.WithLogger(zerolog.Nop()),
	)
	t.Cleanup(func() {
		for _, user := range []string{"u1", "u2", "u3"} {
			service.Leave(context.Background(), "quiz-1", user)
		}
	})
	return testEnv{service: service, results: results, clock: clock}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Aptitude",
		TimerSeconds: 120,
		Questions: []domain.Question{
			{
				ID:       "q1",
				Prompt:   "7 x 8?",
				Category: "numerical",
				Options:  []domain.Option{{ID: "a", Text: "56", Correct: true}, {ID: "b", Text: "54"}},
			},
			{
				ID:       "q2",
				Prompt:   "Opposite of scarce?",
				Category: "verbal",
				Options:  []domain.Option{{ID: "a", Text: "rare"}, {ID: "b", Text: "plentiful", Correct: true}},
			},
			{
				ID:       "q3",
				Prompt:   "Which are even?",
				Category: "logical",
				Multiple: true,
				Points:   2,
				Options: []domain.Option{
					{ID: "a", Text: "2", Correct: true},
					{ID: "b", Text: "3"},
					{ID: "c", Text: "4", Correct: true},
				},
			},
		},
	}
}

func answer(t *testing.T, service *app.QuizService, questionID string, optionIDs ...string) {
	t.Helper()
	if _, err := service.RecordAnswer(context.Background(), "quiz-1", "u1", domain.AnswerSubmission{
		QuestionID: questionID,
		OptionIDs:  optionIDs,
	}); err != nil {
		t.Fatalf("record %s: %v", questionID, err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

type nopDisplay struct {
	mu     sync.Mutex
	frames []timer.Frame
}

func (d *nopDisplay) Render(frame timer.Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
	return nil
}

func (d *nopDisplay) Highlight(timer.Level, bool) error { return nil }

var errStoreDown = errors.New("db down")

// flakyResults fails the first failures saves.
type flakyResults struct {
	*memory.ResultStore
	mu       sync.Mutex
	failures int
	saves    int
}

func (f *flakyResults) SaveResult(ctx context.Context, result domain.Result) error {
	f.mu.Lock()
	f.saves++
	fail := f.saves <= f.failures
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.ResultStore.SaveResult(ctx, result)
}

func (f *flakyResults) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}
