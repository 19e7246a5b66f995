package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrExamNotFound is returned when no exam has the requested name.
var ErrExamNotFound = errors.New("exam not found")

// ExamRepository handles exam definition data access.
// Localized text is stored in JSON (not JSONB) columns to keep language order.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByName retrieves an exam with its questions in position order.
func (r *ExamRepository) GetByName(ctx context.Context, name string) (*model.ExamDefinition, error) {
	e := &model.ExamDefinition{}
	var langs []byte
	err := r.pool.QueryRow(ctx,
		`SELECT name, duration_minutes, supported_languages, start_time, end_time
		 FROM exams WHERE name = $1`, name,
	).Scan(&e.Name, &e.DurationMinutes, &langs, &e.StartTime, &e.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(langs, &e.SupportedLanguages); err != nil {
		return nil, fmt.Errorf("decode languages: %w", err)
	}

	questions, err := r.questions(ctx, name)
	if err != nil {
		return nil, err
	}
	e.Questions = questions
	return e, nil
}

func (r *ExamRepository) questions(ctx context.Context, examName string) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, text, options, correct_answer_index
		 FROM questions WHERE exam_name = $1
		 ORDER BY position ASC`, examName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Question
	for rows.Next() {
		var (
			q             model.Question
			text, options []byte
		)
		if err := rows.Scan(&q.ID, &text, &options, &q.CorrectAnswerIndex); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(text, &q.Text); err != nil {
			return nil, fmt.Errorf("decode question %d text: %w", q.ID, err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode question %d options: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ListNames returns every exam name.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM exams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Upsert replaces an exam and all of its questions in one transaction.
func (r *ExamRepository) Upsert(ctx context.Context, e *model.ExamDefinition) error {
	langs, err := json.Marshal(e.SupportedLanguages)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO exams (name, duration_minutes, supported_languages, start_time, end_time)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE
		 SET duration_minutes = EXCLUDED.duration_minutes,
		     supported_languages = EXCLUDED.supported_languages,
		     start_time = EXCLUDED.start_time,
		     end_time = EXCLUDED.end_time,
		     updated_at = NOW()`,
		e.Name, e.DurationMinutes, string(langs), e.StartTime, e.EndTime)
	if err != nil {
		return fmt.Errorf("upsert exam: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_name = $1`, e.Name); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	rows := make([][]interface{}, 0, len(e.Questions))
	for pos, q := range e.Questions {
		text, err := json.Marshal(q.Text)
		if err != nil {
			return err
		}
		options, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{e.Name, q.ID, pos, string(text), string(options), q.CorrectAnswerIndex})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"exam_name", "question_id", "position", "text", "options", "correct_answer_index"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy questions: %w", err)
	}

	return tx.Commit(ctx)
}
