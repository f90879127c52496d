package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"aptitude-quiz/internal/domain"
	"aptitude-quiz/internal/navigation"
	"aptitude-quiz/internal/timer"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const timeUpFlash = "Time is over, so your responses have been submitted."

// AttemptRepository abstracts where live attempts are kept (in-memory, Redis, etc).
type AttemptRepository interface {
	// Put stores the attempt unless one already exists for the same quiz and user.
	Put(attempt *Attempt) bool
	Get(quizID, userID string) (*Attempt, bool)
	Delete(quizID, userID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultRepository persists scored submissions.
type ResultRepository interface {
	// SaveResult returns domain.ErrAlreadySubmitted when the user already has a result.
	SaveResult(ctx context.Context, result domain.Result) error
	HasSubmitted(ctx context.Context, quizID, userID string) (bool, error)
	ListResults(ctx context.Context, quizID string) ([]domain.Result, error)
}

// FlashRepository queues messages shown on the participant's next page.
type FlashRepository interface {
	PushFlash(ctx context.Context, userID string, note domain.FlashNote) error
	PopFlashes(ctx context.Context, userID string) ([]domain.FlashNote, error)
}

// StartOptions carries the per-connection collaborators of an attempt.
type StartOptions struct {
	// DurationSeconds overrides the quiz timer when positive.
	DurationSeconds int
	Display         timer.Display
	Sink            timer.NotificationSink
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	results  ResultRepository
	flashes  FlashRepository
	timerCfg timer.Config
	clock    clockwork.Clock
	logger   zerolog.Logger
}

type ServiceOption func(*QuizService)

// WithClock is used by tests for deterministic countdowns and timestamps.
func WithClock(clock clockwork.Clock) ServiceOption {
	return func(s *QuizService) { s.clock = clock }
}

func WithTimerConfig(cfg timer.Config) ServiceOption {
	return func(s *QuizService) { s.timerCfg = cfg }
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *QuizService) { s.logger = logger }
}

func NewQuizService(attempts AttemptRepository, quizzes QuizRepository, results ResultRepository, flashes FlashRepository, opts ...ServiceOption) *QuizService {
	s := &QuizService{
		attempts: attempts,
		quizzes:  quizzes,
		results:  results,
		flashes:  flashes,
		timerCfg: timer.DefaultConfig(),
		clock:    clockwork.NewRealClock(),
		logger:   log.Logger.With().Str("component", "quiz_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAttempt loads the quiz and starts the participant's countdown.
func (s *QuizService) StartAttempt(ctx context.Context, quizID, userID, displayName string, opts StartOptions) (*Attempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	submitted, err := s.results.HasSubmitted(ctx, quizID, userID)
	if err != nil {
		return nil, fmt.Errorf("check submission: %w", err)
	}
	if submitted {
		return nil, domain.ErrAlreadySubmitted
	}

	attempt := &Attempt{
		ID:          uuid.NewString(),
		QuizID:      quizID,
		UserID:      userID,
		DisplayName: displayName,
		StartedAt:   s.clock.Now(),
		quiz:        quiz,
		nav:         navigation.New(len(quiz.Questions)),
		service:     s,
		answers:     make(map[string][]string),
		done:        make(chan struct{}),
	}

	cfg := s.timerCfg
	cfg.DurationSeconds = s.resolveDuration(quiz, opts.DurationSeconds)
	countdown, err := timer.NewCountdown(cfg, opts.Display,
		timer.WithClock(s.clock),
		timer.WithNotificationSink(opts.Sink),
		timer.WithSubmitter(attempt),
		timer.WithLogger(s.logger.With().Str("attempt_id", attempt.ID).Str("quiz_id", quizID).Str("user_id", userID).Logger()),
	)
	if err != nil {
		return nil, err
	}
	attempt.countdown = countdown

	if !s.attempts.Put(attempt) {
		return nil, domain.ErrAttemptInProgress
	}
	if err := countdown.Start(); err != nil {
		s.attempts.Delete(quizID, userID)
		return nil, fmt.Errorf("start countdown: %w", err)
	}
	s.logger.Info().
		Str("attempt_id", attempt.ID).
		Str("quiz_id", quizID).
		Str("user_id", userID).
		Int("duration", cfg.DurationSeconds).
		Msg("attempt started")
	return attempt, nil
}

// RecordAnswer stores the options selected for a question and returns its 1-based number.
func (s *QuizService) RecordAnswer(_ context.Context, quizID, userID string, submission domain.AnswerSubmission) (int, error) {
	attempt, ok := s.attempts.Get(quizID, userID)
	if !ok {
		return 0, domain.ErrAttemptNotFound
	}
	return attempt.record(submission)
}

// Submit finalizes a running attempt. Only one of the manual submit and the
// countdown's auto-submit wins; the loser gets domain.ErrAlreadySubmitted.
func (s *QuizService) Submit(ctx context.Context, quizID, userID string, timeUp bool) (domain.Result, error) {
	attempt, ok := s.attempts.Get(quizID, userID)
	if !ok {
		return domain.Result{}, domain.ErrAttemptNotFound
	}
	if !attempt.countdown.ClaimSubmission() {
		return domain.Result{}, domain.ErrAlreadySubmitted
	}
	return s.finish(ctx, attempt, timeUp)
}

// SubmitForm handles a full form post. Answers are merged into the running
// attempt when there is one; otherwise the form is scored on its own.
func (s *QuizService) SubmitForm(ctx context.Context, quizID, userID, displayName string, answers map[string][]string, timeUp bool) (domain.Result, error) {
	if attempt, ok := s.attempts.Get(quizID, userID); ok {
		for questionID, optionIDs := range answers {
			if _, err := attempt.record(domain.AnswerSubmission{QuestionID: questionID, OptionIDs: optionIDs}); err != nil {
				s.logger.Warn().Err(err).Str("question_id", questionID).Msg("ignoring invalid form answer")
			}
		}
		return s.Submit(ctx, quizID, userID, timeUp)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Result{}, err
	}
	result := s.score(quiz, userID, displayName, answers, timeUp)
	if err := s.persist(ctx, result); err != nil {
		return domain.Result{}, err
	}
	return result, nil
}

// Leaderboard orders results by score, then earliest submission, then name.
func (s *QuizService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	results, err := s.results.ListResults(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Score:       r.Score,
			SubmittedAt: r.SubmittedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: s.clock.Now()}, nil
}

// PopFlashes returns and clears the participant's queued messages.
func (s *QuizService) PopFlashes(ctx context.Context, userID string) ([]domain.FlashNote, error) {
	return s.flashes.PopFlashes(ctx, userID)
}

// Leave tears down the participant's countdown and drops the attempt.
func (s *QuizService) Leave(_ context.Context, quizID, userID string) {
	attempt, ok := s.attempts.Get(quizID, userID)
	if !ok {
		return
	}
	attempt.countdown.Stop()
	s.attempts.Delete(quizID, userID)
	s.logger.Info().Str("attempt_id", attempt.ID).Msg("attempt left")
}

// Attempt returns the running attempt, if any.
func (s *QuizService) Attempt(quizID, userID string) (*Attempt, bool) {
	return s.attempts.Get(quizID, userID)
}

func (s *QuizService) finish(ctx context.Context, attempt *Attempt, timeUp bool) (domain.Result, error) {
	// a manual submit that lands in the grace period still counts as time up
	timeUp = timeUp || attempt.isTimeUp() || attempt.countdown.State() == timer.StateExpired
	result := s.score(attempt.quiz, attempt.UserID, attempt.DisplayName, attempt.answersCopy(), timeUp)
	if err := s.persist(ctx, result); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			// stored elsewhere already, so this attempt is over
			attempt.countdown.Stop()
			s.attempts.Delete(attempt.QuizID, attempt.UserID)
			return domain.Result{}, err
		}
		// nothing was stored: keep the attempt and its answers for a retry
		attempt.countdown.ReleaseSubmission()
		s.logger.Error().Err(err).Str("attempt_id", attempt.ID).Bool("time_up", timeUp).Msg("failed to save result")
		return domain.Result{}, err
	}
	attempt.countdown.Stop()
	attempt.complete(result)
	s.attempts.Delete(attempt.QuizID, attempt.UserID)
	return result, nil
}

func (s *QuizService) persist(ctx context.Context, result domain.Result) error {
	if err := s.results.SaveResult(ctx, result); err != nil {
		return err
	}

	note := domain.FlashNote{
		Text:     fmt.Sprintf("Quiz completed! Your score: %d/%d", result.Score, result.MaxScore),
		Severity: domain.SeveritySuccess,
	}
	if result.TimeUp {
		note = domain.FlashNote{Text: timeUpFlash, Severity: domain.SeverityWarning}
	}
	if err := s.flashes.PushFlash(ctx, result.UserID, note); err != nil {
		// the result is saved; a lost flash only costs the confirmation message
		s.logger.Warn().Err(err).Str("user_id", result.UserID).Msg("failed to queue flash")
	}

	s.logger.Info().
		Str("quiz_id", result.QuizID).
		Str("user_id", result.UserID).
		Int("score", result.Score).
		Bool("time_up", result.TimeUp).
		Msg("quiz submitted")
	return nil
}

func (s *QuizService) score(quiz domain.Quiz, userID, displayName string, answers map[string][]string, timeUp bool) domain.Result {
	score, maxScore, categories := scoreAnswers(quiz, answers)
	return domain.Result{
		QuizID:         quiz.ID,
		UserID:         userID,
		DisplayName:    displayName,
		Score:          score,
		MaxScore:       maxScore,
		CategoryScores: categories,
		Answers:        answers,
		TimeUp:         timeUp,
		SubmittedAt:    s.clock.Now(),
	}
}

func (s *QuizService) resolveDuration(quiz domain.Quiz, override int) int {
	switch {
	case override > 0:
		return override
	case quiz.TimerSeconds > 0:
		return quiz.TimerSeconds
	case s.timerCfg.DurationSeconds > 0:
		return s.timerCfg.DurationSeconds
	default:
		return timer.DefaultDurationSeconds
	}
}
