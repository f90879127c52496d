package postgres

import (
	"context"
	"fmt"
	"time"

	"aptitude-quiz/internal/domain"
	"github.com/uptrace/bun"
)

// resultRow maps the results table; one row per (quiz_id, user_id).
type resultRow struct {
	bun.BaseModel `bun:"table:results,alias:r"`

	ID             int64               `bun:"id,pk,autoincrement"`
	QuizID         string              `bun:"quiz_id,notnull"`
	UserID         string              `bun:"user_id,notnull"`
	DisplayName    string              `bun:"display_name"`
	Score          int                 `bun:"score,notnull"`
	MaxScore       int                 `bun:"max_score,notnull"`
	CategoryScores map[string]int      `bun:"category_scores,type:jsonb"`
	Answers        map[string][]string `bun:"answers,type:jsonb"`
	TimeUp         bool                `bun:"time_up,notnull"`
	SubmittedAt    time.Time           `bun:"submitted_at,notnull"`
}

// ResultStore persists scored submissions with bun.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SaveResult(ctx context.Context, result domain.Result) error {
	row := toRow(result)
	res, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (quiz_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func (s *ResultStore) HasSubmitted(ctx context.Context, quizID, userID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*resultRow)(nil)).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check result: %w", err)
	}
	return exists, nil
}

func (s *ResultStore) ListResults(ctx context.Context, quizID string) ([]domain.Result, error) {
	var rows []resultRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("submitted_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	out := make([]domain.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func toRow(r domain.Result) resultRow {
	return resultRow{
		QuizID:         r.QuizID,
		UserID:         r.UserID,
		DisplayName:    r.DisplayName,
		Score:          r.Score,
		MaxScore:       r.MaxScore,
		CategoryScores: r.CategoryScores,
		Answers:        r.Answers,
		TimeUp:         r.TimeUp,
		SubmittedAt:    r.SubmittedAt.UTC(),
	}
}

func (row resultRow) toDomain() domain.Result {
	return domain.Result{
		QuizID:         row.QuizID,
		UserID:         row.UserID,
		DisplayName:    row.DisplayName,
		Score:          row.Score,
		MaxScore:       row.MaxScore,
		CategoryScores: row.CategoryScores,
		Answers:        row.Answers,
		TimeUp:         row.TimeUp,
		SubmittedAt:    row.SubmittedAt,
	}
}
