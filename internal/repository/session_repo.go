package repository

import (
	"context"
	"errors"

	"therapy_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSessionNotFound = errors.New("therapy session not found")

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetByID возвращает сессию или ErrSessionNotFound
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.TherapySession, error) {
	var s domain.TherapySession

	err := r.db.QueryRow(ctx,
		`SELECT id, supervisor_id, learner_name, game_type, scheduled_at, created_at
		 FROM therapy_sessions
		 WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.SupervisorID, &s.LearnerName, &s.GameType, &s.ScheduledAt, &s.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// OwnedBy проверяет, что сессия принадлежит заявленному супервизору
func (r *SessionRepository) OwnedBy(ctx context.Context, sessionID string, supervisorID int64) (bool, error) {
	s, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return s.SupervisorID == supervisorID, nil
}
