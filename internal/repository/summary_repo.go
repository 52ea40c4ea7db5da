package repository

import (
	"context"
	"encoding/json"

	"therapy_webapp/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SummaryRepository struct {
	db *pgxpool.Pool
}

func NewSummaryRepository(db *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert записывает снимок игры. Промежуточные снимки по ходу партии
// замещаются финальным при завершении (ключ - session_id).
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.GameSummary) error {
	playersJSON, err := json.Marshal(s.Players)
	if err != nil {
		playersJSON = []byte("{}")
	}
	eventsJSON, err := json.Marshal(s.Events)
	if err != nil {
		eventsJSON = []byte("[]")
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO game_summaries
			(session_id, game_type, attempts, correct_attempts, duration_seconds,
			 completed, players, events, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO UPDATE SET
			attempts = EXCLUDED.attempts,
			correct_attempts = EXCLUDED.correct_attempts,
			duration_seconds = EXCLUDED.duration_seconds,
			completed = EXCLUDED.completed,
			players = EXCLUDED.players,
			events = EXCLUDED.events,
			completed_at = EXCLUDED.completed_at`,
		s.SessionID, s.GameType, s.Attempts, s.CorrectAttempts, s.DurationSeconds,
		s.Completed, playersJSON, eventsJSON, s.StartedAt, s.CompletedAt,
	)

	return err
}

// GetBySession возвращает снимок игры сессии, если он есть
func (r *SummaryRepository) GetBySession(ctx context.Context, sessionID string) (*domain.GameSummary, error) {
	var (
		s           domain.GameSummary
		playersJSON []byte
		eventsJSON  []byte
	)

	err := r.db.QueryRow(ctx,
		`SELECT session_id, game_type, attempts, correct_attempts, duration_seconds,
				completed, players, events, started_at, completed_at
		 FROM game_summaries
		 WHERE session_id = $1`,
		sessionID,
	).Scan(&s.SessionID, &s.GameType, &s.Attempts, &s.CorrectAttempts, &s.DurationSeconds,
		&s.Completed, &playersJSON, &eventsJSON, &s.StartedAt, &s.CompletedAt)
	if err != nil {
		return nil, err
	}

	if len(playersJSON) > 0 {
		_ = json.Unmarshal(playersJSON, &s.Players)
	}
	if len(eventsJSON) > 0 {
		_ = json.Unmarshal(eventsJSON, &s.Events)
	}

	return &s, nil
}
