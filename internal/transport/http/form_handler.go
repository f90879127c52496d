package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"aptitude-quiz/internal/app"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FormHandler serves the non-websocket endpoints: the classic form post,
// pending flashes and the leaderboard.
type FormHandler struct {
	service *app.QuizService
	logger  zerolog.Logger
}

func NewFormHandler(service *app.QuizService) *FormHandler {
	return &FormHandler{
		service: service,
		logger:  log.Logger.With().Str("component", "form_handler").Logger(),
	}
}

// Submit accepts quizId, userId, name, time_up and one q<questionID> field
// per question (repeated for multiple choice).
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	quizID := r.PostForm.Get("quizId")
	userID := r.PostForm.Get("userId")
	if quizID == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "missing quizId or userId")
		return
	}

	answers := make(map[string][]string)
	for key, values := range r.PostForm {
		if !strings.HasPrefix(key, "q") || key == "quizId" {
			continue
		}
		questionID := strings.TrimPrefix(key, "q")
		if questionID == "" {
			continue
		}
		answers[questionID] = values
	}

	result, err := h.service.SubmitForm(r.Context(), quizID, userID, r.PostForm.Get("name"), answers, parseTimeUp(r.PostForm.Get("time_up")))
	if err != nil {
		h.logger.Warn().Err(err).Str("quiz_id", quizID).Str("user_id", userID).Msg("form submit rejected")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Flashes returns and clears the user's queued post-submit messages.
func (h *FormHandler) Flashes(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}
	notes, err := h.service.PopFlashes(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if notes == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *FormHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		writeError(w, http.StatusBadRequest, "missing quizId")
		return
	}
	lb, err := h.service.Leaderboard(r.Context(), quizID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func parseTimeUp(raw string) bool {
	if raw == "on" {
		return true
	}
	v, _ := strconv.ParseBool(raw)
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}
