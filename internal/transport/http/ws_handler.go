package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aptitude-quiz/internal/app"
	"aptitude-quiz/internal/domain"
	"aptitude-quiz/internal/flash"
	"aptitude-quiz/internal/timer"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service           *app.QuizService
	upgrader          websocket.Upgrader
	clock             clockwork.Clock
	flashAutoDismiss  time.Duration
	allowTimerControl bool
	logger            zerolog.Logger
}

type WSOption func(*WSHandler)

// WithTimerControl lets clients pause, resume and adjust their own countdown.
func WithTimerControl(allow bool) WSOption {
	return func(h *WSHandler) { h.allowTimerControl = allow }
}

func WithFlashAutoDismiss(d time.Duration) WSOption {
	return func(h *WSHandler) { h.flashAutoDismiss = d }
}

func WithHandlerClock(clock clockwork.Clock) WSOption {
	return func(h *WSHandler) { h.clock = clock }
}

func NewWSHandler(service *app.QuizService, opts ...WSOption) *WSHandler {
	h := &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clock:            clockwork.NewRealClock(),
		flashAutoDismiss: flash.DefaultAutoDismiss,
		logger:           log.Logger.With().Str("component", "ws_handler").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeWS upgrades HTTP requests to websockets and runs one quiz attempt per connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if quizID == "" || userID == "" || displayName == "" {
		http.Error(w, "missing quizId, userId, or name", http.StatusBadRequest)
		return
	}
	duration := 0
	if raw := r.URL.Query().Get("timer"); raw != "" {
		duration = timer.ParseDurationAttr(raw)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("quiz_id", quizID).Str("user_id", userID).Logger()
	session := newWSSession(conn, logger)
	writerDone := make(chan struct{})
	go session.writeLoop(writerDone)
	defer func() {
		session.close()
		<-writerDone
	}()

	notes := flash.NewQueue(flash.WithClock(h.clock), flash.WithAutoDismiss(h.flashAutoDismiss))
	events, unsubscribe := notes.Subscribe()
	defer unsubscribe()
	go session.forwardFlashes(events)

	ctx := r.Context()
	attempt, err := h.service.StartAttempt(ctx, quizID, userID, displayName, app.StartOptions{
		DurationSeconds: duration,
		Display:         wsDisplay{session: session},
		Sink:            notes,
	})
	if err != nil {
		session.pushError(err)
		return
	}
	defer h.service.Leave(context.Background(), quizID, userID)

	_ = session.push("joined", joinedPayload{
		AttemptID:     attempt.ID,
		QuizID:        quizID,
		Title:         attempt.Quiz().Title,
		QuestionCount: len(attempt.Quiz().Questions),
		Timer:         attempt.Countdown().Snapshot(),
	})
	h.pushQuestion(session, attempt)
	go h.awaitResult(ctx, session, attempt, notes)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, session, attempt, inbound); err != nil {
			session.pushError(err)
		}
	}
	logger.Debug().Msg("ws connection closed")
}

func (h *WSHandler) dispatch(ctx context.Context, session *wsSession, attempt *app.Attempt, inbound inboundMessage) error {
	nav := attempt.Navigator()
	countdown := attempt.Countdown()

	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.New("invalid answer payload")
		}
		number, err := h.service.RecordAnswer(ctx, attempt.QuizID, attempt.UserID, domain.AnswerSubmission{
			QuestionID: payload.QuestionID,
			OptionIDs:  payload.OptionIDs,
		})
		if err != nil {
			return err
		}
		return session.push("answered", answeredPayload{QuestionID: payload.QuestionID, Number: number, Navigation: nav.View()})
	case "next":
		if nav.Next() {
			return h.pushSubmitConfirm(session, attempt)
		}
		h.pushQuestion(session, attempt)
	case "prev":
		nav.Prev()
		h.pushQuestion(session, attempt)
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errors.New("invalid goto payload")
		}
		if !nav.GoTo(payload.Number) {
			return fmt.Errorf("question %d out of range", payload.Number)
		}
		h.pushQuestion(session, attempt)
	case "review":
		return h.pushSubmitConfirm(session, attempt)
	case "submit":
		// the result is pushed by awaitResult once the attempt completes
		_, err := h.service.Submit(ctx, attempt.QuizID, attempt.UserID, false)
		return err
	case "pause", "resume", "addTime", "setTime":
		if !h.allowTimerControl {
			return errors.New("timer control is disabled")
		}
		return h.controlTimer(countdown, inbound)
	default:
		return errors.New("unsupported message type")
	}
	return nil
}

func (h *WSHandler) controlTimer(countdown *timer.Countdown, inbound inboundMessage) error {
	switch inbound.Type {
	case "pause":
		return countdown.Pause()
	case "resume":
		return countdown.Resume()
	}
	var payload secondsPayload
	if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload", inbound.Type)
	}
	if inbound.Type == "addTime" {
		return countdown.AddTime(payload.Seconds)
	}
	return countdown.SetTime(payload.Seconds)
}

func (h *WSHandler) pushQuestion(session *wsSession, attempt *app.Attempt) {
	if view, ok := newQuestionView(attempt); ok {
		_ = session.push("question", view)
	}
}

func (h *WSHandler) pushSubmitConfirm(session *wsSession, attempt *app.Attempt) error {
	nav := attempt.Navigator()
	return session.push("submitConfirm", submitConfirmPayload{
		Confirmation: nav.SubmitConfirmation(),
		Summary:      nav.Summary(),
		Navigation:   nav.View(),
	})
}

// awaitResult pushes the scored result however the attempt was submitted.
func (h *WSHandler) awaitResult(ctx context.Context, session *wsSession, attempt *app.Attempt, notes *flash.Queue) {
	select {
	case <-attempt.Done():
	case <-session.closed:
		return
	}
	result, _ := attempt.Result()
	flashes, err := h.service.PopFlashes(ctx, attempt.UserID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", attempt.UserID).Msg("failed to pop flashes")
	}
	for _, note := range flashes {
		notes.Show(note.Text, note.Severity, true)
	}
	_ = session.push("result", resultPayload{Result: result, Flashes: flashes})
}
