package repository

import (
	"context"

	"therapy_webapp/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TrialRepository struct {
	db *pgxpool.Pool
}

func NewTrialRepository(db *pgxpool.Pool) *TrialRepository {
	return &TrialRepository{db: db}
}

// Create сохраняет одну попытку. Записи неизменяемы - только INSERT.
func (r *TrialRepository) Create(ctx context.Context, t *domain.TrialRecord) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO trial_records (id, session_id, seq, correct, note)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		t.ID, t.SessionID, t.Seq, t.Correct, t.Note,
	).Scan(&t.CreatedAt)
}

// ListBySession возвращает попытки сессии в порядке их номеров
func (r *TrialRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.TrialRecord, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, seq, correct, note, created_at
		 FROM trial_records
		 WHERE session_id = $1
		 ORDER BY seq ASC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.TrialRecord
	for rows.Next() {
		var t domain.TrialRecord
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Seq, &t.Correct, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &t)
	}

	return result, rows.Err()
}
