package app

import (
	"sort"

	"aptitude-quiz/internal/domain"
)

// scoreAnswers returns (score, maxScore, per-category score). Every category
// present in the quiz appears in the map, even with zero points.
func scoreAnswers(quiz domain.Quiz, answers map[string][]string) (int, int, map[string]int) {
	score, maxScore := 0, 0
	categories := make(map[string]int)
	for _, q := range quiz.Questions {
		points := questionPoints(q)
		maxScore += points
		if q.Category != "" {
			categories[q.Category] += 0
		}
		if !isCorrect(q, answers[q.ID]) {
			continue
		}
		score += points
		if q.Category != "" {
			categories[q.Category] += points
		}
	}
	return score, maxScore, categories
}

func questionPoints(q domain.Question) int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

func isCorrect(q domain.Question, selected []string) bool {
	if len(selected) == 0 {
		return false
	}
	correct := correctOptions(q)
	if !q.Multiple {
		return len(correct) > 0 && selected[0] == correct[0]
	}
	if len(correct) != len(dedupe(selected)) {
		return false
	}
	chosen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		chosen[id] = struct{}{}
	}
	for _, id := range correct {
		if _, ok := chosen[id]; !ok {
			return false
		}
	}
	return true
}

func correctOptions(q domain.Question) []string {
	var out []string
	for _, opt := range q.Options {
		if opt.Correct {
			out = append(out, opt.ID)
		}
	}
	return out
}

func dedupe(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

// findQuestion returns the question and its 1-based position.
func findQuestion(quiz domain.Quiz, questionID string) (domain.Question, int, error) {
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			return quiz.Questions[i], i + 1, nil
		}
	}
	return domain.Question{}, 0, domain.ErrQuestionNotFound
}

func validateOptions(q domain.Question, optionIDs []string) error {
	if !q.Multiple && len(optionIDs) > 1 {
		return domain.ErrTooManyOptions
	}
	for _, id := range optionIDs {
		found := false
		for _, opt := range q.Options {
			if opt.ID == id {
				found = true
				break
			}
		}
		if !found {
			return domain.ErrOptionNotFound
		}
	}
	return nil
}
