package domain

import "time"

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question. Multiple-choice questions require the
// exact set of correct options.
type Question struct {
	ID       string   `json:"id"`
	Prompt   string   `json:"prompt"`
	Category string   `json:"category"`
	Options  []Option `json:"options"`
	Multiple bool     `json:"multiple"`
	Points   int      `json:"points"` // defaults to 1 if zero
}

// Quiz is a timed collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	// TimerSeconds is the countdown length; zero means the configured default.
	TimerSeconds int `json:"timer"`
}

// AnswerSubmission records the options a participant selected for one question.
type AnswerSubmission struct {
	QuestionID string
	OptionIDs  []string
}

// Result is a scored, submitted attempt.
type Result struct {
	QuizID         string              `json:"quizId"`
	UserID         string              `json:"userId"`
	DisplayName    string              `json:"displayName"`
	Score          int                 `json:"score"`
	MaxScore       int                 `json:"maxScore"`
	CategoryScores map[string]int      `json:"categoryScores"`
	Answers        map[string][]string `json:"answers"`
	TimeUp         bool                `json:"timeUp"`
	SubmittedAt    time.Time           `json:"submittedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a result.
type LeaderboardEntry struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quizId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// FlashNote is a message queued for the participant's next page.
type FlashNote struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}
