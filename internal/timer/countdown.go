package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aptitude-quiz/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle position of a Countdown.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateExpired State = "expired"
	// StateStopped follows Stop or a failed tick; ticking is over for good.
	StateStopped State = "stopped"
)

const (
	eventStart  = "start"
	eventPause  = "pause"
	eventResume = "resume"
	eventExpire = "expire"
	eventStop   = "stop"
)

// Level is the visual emphasis applied to the display.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Frame is one rendered view of the countdown.
type Frame struct {
	Clock           string  `json:"clock"`
	Remaining       int     `json:"remaining"`
	Total           int     `json:"total"`
	ProgressPercent float64 `json:"progress"`
}

// Display receives rendered frames. Implementations must not call back into the Countdown.
type Display interface {
	Render(frame Frame) error
	Highlight(level Level, pulse bool) error
}

// NotificationSink surfaces threshold and time-up alerts.
type NotificationSink interface {
	Notify(ctx context.Context, message string, severity domain.Severity) error
}

// FormSubmitter is the terminal action run once the deadline passes.
type FormSubmitter interface {
	MarkTimeUp()
	Submit(ctx context.Context) error
}

// Snapshot is a consistent read of the countdown's observable state.
type Snapshot struct {
	State          State     `json:"state"`
	Remaining      int       `json:"remaining"`
	Total          int       `json:"total"`
	Clock          string    `json:"clock"`
	Progress       float64   `json:"progress"`
	Deadline       time.Time `json:"deadline"`
	WarningRaised  bool      `json:"warningRaised"`
	CriticalRaised bool      `json:"criticalRaised"`
}

// Countdown owns an absolute deadline and fires a single terminal action when it passes.
// Remaining time is always derived from the deadline, never decremented per tick.
type Countdown struct {
	cfg       Config
	clock     clockwork.Clock
	display   Display
	sink      NotificationSink
	submitter FormSubmitter
	logger    zerolog.Logger
	degraded  bool

	mu             sync.Mutex
	machine        *fsm.FSM
	deadline       time.Time
	total          int
	remaining      int
	lastRendered   int
	warningRaised  bool
	criticalRaised bool
	expiredHandled bool
	formSubmitted  bool
	ticks          *tickHandle
	grace          clockwork.Timer
}

type Option func(*Countdown)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Countdown) { c.clock = clock }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Countdown) { c.logger = logger }
}

func WithNotificationSink(sink NotificationSink) Option {
	return func(c *Countdown) { c.sink = sink }
}

func WithSubmitter(submitter FormSubmitter) Option {
	return func(c *Countdown) { c.submitter = submitter }
}

// NewCountdown builds an idle countdown. A nil display yields a degraded
// instance whose operations are all no-ops.
func NewCountdown(cfg Config, display Display, opts ...Option) (*Countdown, error) {
	if cfg.DurationSeconds < 0 {
		return nil, fmt.Errorf("new countdown: %w", ErrInvalidDuration)
	}
	cfg = cfg.withDefaults()

	c := &Countdown{
		cfg:          cfg,
		clock:        clockwork.NewRealClock(),
		display:      display,
		sink:         noopSink{},
		logger:       log.Logger.With().Str("component", "countdown").Logger(),
		total:        cfg.DurationSeconds,
		remaining:    cfg.DurationSeconds,
		lastRendered: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = noopSink{}
	}
	c.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateIdle)}, Dst: string(StateRunning)},
			{Name: eventPause, Src: []string{string(StateRunning)}, Dst: string(StatePaused)},
			{Name: eventResume, Src: []string{string(StatePaused)}, Dst: string(StateRunning)},
			{Name: eventExpire, Src: []string{string(StateRunning), string(StatePaused)}, Dst: string(StateExpired)},
			{Name: eventStop, Src: []string{string(StateRunning), string(StatePaused)}, Dst: string(StateStopped)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.logger.Debug().Str("from", e.Src).Str("to", e.Dst).Msg("countdown state changed")
			},
		},
	)

	if display == nil {
		c.degraded = true
		c.logger.Warn().Err(ErrNoDisplay).Msg("countdown elements not found, timer disabled")
	} else {
		c.logger.Debug().Int("duration", c.total).Msg("countdown initialized")
	}
	return c, nil
}

// Start begins ticking from idle. Calling it while running is a no-op.
func (c *Countdown) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded {
		return nil
	}

	switch c.stateLocked() {
	case StateIdle:
	case StateRunning:
		return nil
	case StateExpired:
		return ErrExpired
	case StateStopped:
		return ErrStopped
	default:
		return ErrNotIdle
	}

	now := c.clock.Now()
	c.deadline = now.Add(seconds(c.remaining))
	c.fire(eventStart)
	c.scheduleLocked()
	c.tickLocked(now)
	c.logger.Info().Int("remaining", c.remaining).Time("deadline", c.deadline).Msg("countdown started")
	return nil
}

// Tick re-evaluates the remaining time against the deadline. It is driven by
// the internal ticker but is safe to call at any moment.
func (c *Countdown) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded || c.stateLocked() != StateRunning {
		return
	}
	c.tickLocked(c.clock.Now())
}

// Pause halts ticking and keeps the remaining time computed at this instant.
func (c *Countdown) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded {
		return nil
	}
	if err := c.requireState(StateRunning, ErrNotRunning); err != nil {
		return err
	}

	c.tickLocked(c.clock.Now())
	if err := c.requireState(StateRunning, ErrNotRunning); err != nil {
		return err
	}
	c.cancelTicksLocked()
	c.fire(eventPause)
	c.logger.Info().Int("remaining", c.remaining).Msg("countdown paused")
	return nil
}

// Resume restarts ticking from a pause with a fresh deadline.
func (c *Countdown) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded {
		return nil
	}
	if err := c.requireState(StatePaused, ErrNotPaused); err != nil {
		return err
	}
	if c.remaining <= 0 {
		return ErrExpired
	}

	now := c.clock.Now()
	c.deadline = now.Add(seconds(c.remaining))
	c.fire(eventResume)
	c.scheduleLocked()
	c.tickLocked(now)
	c.logger.Info().Int("remaining", c.remaining).Msg("countdown resumed")
	return nil
}

// AddTime extends both the remaining and the total duration. Threshold alerts
// already raised stay raised.
func (c *Countdown) AddTime(secs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded {
		return nil
	}
	if secs <= 0 {
		return fmt.Errorf("add time %d: %w", secs, ErrInvalidDuration)
	}
	if err := c.requireAdjustable(); err != nil {
		return err
	}

	now := c.clock.Now()
	if c.stateLocked() == StateRunning {
		current := RemainingSeconds(c.deadline, now)
		if current <= 0 {
			// deadline passed between ticks; it wins over the extension
			c.tickLocked(now)
			return ErrExpired
		}
		c.remaining = current
	}
	c.remaining += secs
	c.total += secs
	if c.stateLocked() == StateRunning {
		c.deadline = now.Add(seconds(c.remaining))
	}
	if err := c.renderAndCheckLocked(); err != nil {
		return err
	}
	c.logger.Info().Int("added", secs).Int("remaining", c.remaining).Msg("countdown extended")
	return nil
}

// SetTime redefines the countdown as if freshly configured with secs.
func (c *Countdown) SetTime(secs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded {
		return nil
	}
	if secs <= 0 {
		return fmt.Errorf("set time %d: %w", secs, ErrInvalidDuration)
	}
	if err := c.requireAdjustable(); err != nil {
		return err
	}

	c.remaining = secs
	c.total = secs
	c.warningRaised = false
	c.criticalRaised = false
	c.expiredHandled = false
	if c.stateLocked() == StateRunning {
		c.deadline = c.clock.Now().Add(seconds(secs))
	}
	if err := c.display.Highlight(LevelNormal, false); err != nil {
		c.failLocked(err)
		return err
	}
	if err := c.renderAndCheckLocked(); err != nil {
		return err
	}
	c.logger.Info().Int("remaining", secs).Msg("countdown reset")
	return nil
}

// Stop tears the countdown down: ticking halts and the deadline is cleared.
// It never expires the countdown, and a submission already in its grace
// period still runs.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.degraded || c.stateLocked() == StateIdle {
		return
	}
	c.cancelTicksLocked()
	c.deadline = time.Time{}
	c.lastRendered = -1
	switch c.stateLocked() {
	case StateRunning, StatePaused:
		c.fire(eventStop)
		c.logger.Info().Int("remaining", c.remaining).Msg("countdown stopped")
	}
}

// ClaimSubmission takes the submission guard. It reports false when the
// terminal action, manual or automatic, was already claimed.
func (c *Countdown) ClaimSubmission() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.formSubmitted {
		return false
	}
	c.formSubmitted = true
	if c.grace != nil {
		c.grace.Stop()
	}
	return true
}

// ReleaseSubmission hands back a claimed guard after the submission failed,
// so a later submit can retry. An expired countdown does not re-arm its
// auto-submit; the retry has to come from the caller.
func (c *Countdown) ReleaseSubmission() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.formSubmitted = false
}

func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *Countdown) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total - c.remaining
}

func (c *Countdown) ProgressPercent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ProgressPercent(c.total, c.remaining)
}

func (c *Countdown) IsRunning() bool {
	return c.State() == StateRunning
}

func (c *Countdown) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:          c.stateLocked(),
		Remaining:      c.remaining,
		Total:          c.total,
		Clock:          FormatClock(c.remaining),
		Progress:       ProgressPercent(c.total, c.remaining),
		Deadline:       c.deadline,
		WarningRaised:  c.warningRaised,
		CriticalRaised: c.criticalRaised,
	}
}

func (c *Countdown) tickLocked(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			c.failLocked(fmt.Errorf("tick panic: %v", r))
		}
	}()

	remaining := RemainingSeconds(c.deadline, now)
	if remaining > c.remaining {
		remaining = c.remaining
	}
	if remaining != c.lastRendered {
		c.remaining = remaining
		if err := c.renderLocked(); err != nil {
			c.failLocked(err)
			return
		}
		if err := c.checkThresholdsLocked(); err != nil {
			c.failLocked(err)
			return
		}
		if remaining%10 == 0 {
			c.logger.Debug().Int("remaining", remaining).Msg("countdown tick")
		}
	}
	if remaining <= 0 {
		c.handleExpiryLocked()
	}
}

// renderAndCheckLocked redraws after an adjustment. A running countdown
// raises any threshold it now sits under without waiting for the next second.
func (c *Countdown) renderAndCheckLocked() error {
	if err := c.renderLocked(); err != nil {
		c.failLocked(err)
		return err
	}
	if c.stateLocked() != StateRunning {
		return nil
	}
	if err := c.checkThresholdsLocked(); err != nil {
		c.failLocked(err)
		return err
	}
	return nil
}

func (c *Countdown) renderLocked() error {
	frame := Frame{
		Clock:           FormatClock(c.remaining),
		Remaining:       c.remaining,
		Total:           c.total,
		ProgressPercent: ProgressPercent(c.total, c.remaining),
	}
	if err := c.display.Render(frame); err != nil {
		return fmt.Errorf("render countdown: %w", err)
	}
	c.lastRendered = c.remaining
	return nil
}

func (c *Countdown) checkThresholdsLocked() error {
	if c.remaining <= c.cfg.WarningThresholdSeconds && !c.warningRaised {
		c.warningRaised = true
		if err := c.display.Highlight(LevelWarning, false); err != nil {
			return fmt.Errorf("highlight warning: %w", err)
		}
		c.notifyLocked(warningMessage(c.cfg.WarningThresholdSeconds), domain.SeverityWarning)
	}
	if c.remaining <= c.cfg.CriticalThresholdSeconds && !c.criticalRaised {
		c.criticalRaised = true
		if err := c.display.Highlight(LevelCritical, true); err != nil {
			return fmt.Errorf("highlight critical: %w", err)
		}
		c.notifyLocked(criticalMessage(c.cfg.CriticalThresholdSeconds), domain.SeverityDanger)
	}
	return nil
}

func (c *Countdown) handleExpiryLocked() {
	if c.expiredHandled {
		return
	}
	c.expiredHandled = true
	c.remaining = 0
	c.cancelTicksLocked()
	c.fire(eventExpire)
	c.logger.Info().Msg("countdown reached zero")

	c.notifyLocked(timeUpMessage, domain.SeverityDanger)

	if !c.cfg.AutoSubmit || c.submitter == nil {
		return
	}
	c.grace = c.clock.AfterFunc(c.cfg.GracePeriod, c.autoSubmit)
}

// autoSubmit runs outside the lock so the submitter may call Stop.
func (c *Countdown) autoSubmit() {
	c.mu.Lock()
	if c.formSubmitted {
		c.mu.Unlock()
		c.logger.Debug().Msg("submission already claimed, skipping auto-submit")
		return
	}
	c.formSubmitted = true
	submitter := c.submitter
	timeout := c.cfg.SubmitTimeout
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.logger.Info().Msg("auto-submitting quiz due to time up")
	submitter.MarkTimeUp()
	if err := submitter.Submit(ctx); err != nil {
		c.logger.Error().Err(err).Msg("auto-submit failed")
	}
}

// notifyLocked never lets a failing sink interrupt the caller.
func (c *Countdown) notifyLocked(message string, severity domain.Severity) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("message", message).Msg("notification sink panicked")
		}
	}()
	if err := c.sink.Notify(context.Background(), message, severity); err != nil {
		c.logger.Warn().Err(err).Str("message", message).Msg("notification failed")
	}
}

func (c *Countdown) failLocked(err error) {
	c.logger.Error().Err(err).Int("remaining", c.remaining).Msg("countdown tick failed, stopping")
	c.cancelTicksLocked()
	if c.machine.Can(eventStop) {
		c.fire(eventStop)
	}
}

func (c *Countdown) requireState(want State, otherwise error) error {
	switch state := c.stateLocked(); state {
	case want:
		return nil
	case StateExpired:
		return ErrExpired
	case StateStopped:
		return ErrStopped
	default:
		return otherwise
	}
}

func (c *Countdown) requireAdjustable() error {
	switch c.stateLocked() {
	case StateExpired:
		return ErrExpired
	case StateStopped:
		return ErrStopped
	default:
		return nil
	}
}

func (c *Countdown) stateLocked() State {
	return State(c.machine.Current())
}

func (c *Countdown) fire(event string) {
	if err := c.machine.Event(context.Background(), event); err != nil {
		c.logger.Debug().Err(err).Str("event", event).Msg("countdown transition rejected")
	}
}

type noopSink struct{}

func (noopSink) Notify(context.Context, string, domain.Severity) error { return nil }
