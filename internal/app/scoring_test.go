package app

import (
	"testing"

	"aptitude-quiz/internal/domain"
)

func TestIsCorrect(t *testing.T) {
	single := domain.Question{ID: "q1", Options: []domain.Option{{ID: "a", Correct: true}, {ID: "b"}}}
	multi := domain.Question{ID: "q2", Multiple: true, Options: []domain.Option{
		{ID: "a", Correct: true}, {ID: "b"}, {ID: "c", Correct: true},
	}}

	cases := []struct {
		name     string
		question domain.Question
		selected []string
		want     bool
	}{
		{"single correct", single, []string{"a"}, true},
		{"single wrong", single, []string{"b"}, false},
		{"unanswered", single, nil, false},
		{"exact set", multi, []string{"c", "a"}, true},
		{"duplicates still exact", multi, []string{"a", "c", "a"}, true},
		{"subset", multi, []string{"a"}, false},
		{"superset", multi, []string{"a", "b", "c"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isCorrect(tc.question, tc.selected); got != tc.want {
				t.Fatalf("isCorrect(%v) = %v, want %v", tc.selected, got, tc.want)
			}
		})
	}
}

func TestScoreAnswersDefaultsPointsAndCategories(t *testing.T) {
	quiz := domain.Quiz{Questions: []domain.Question{
		{ID: "q1", Category: "verbal", Options: []domain.Option{{ID: "a", Correct: true}}},
		{ID: "q2", Category: "verbal", Points: 3, Options: []domain.Option{{ID: "a", Correct: true}}},
		{ID: "q3", Category: "numerical", Options: []domain.Option{{ID: "a", Correct: true}}},
	}}

	score, maxScore, categories := scoreAnswers(quiz, map[string][]string{"q2": {"a"}})
	if score != 3 || maxScore != 5 {
		t.Fatalf("expected 3/5, got %d/%d", score, maxScore)
	}
	if categories["verbal"] != 3 {
		t.Fatalf("expected verbal 3, got %d", categories["verbal"])
	}
	if v, ok := categories["numerical"]; !ok || v != 0 {
		t.Fatalf("expected numerical present with 0, got %v %v", v, ok)
	}
}
