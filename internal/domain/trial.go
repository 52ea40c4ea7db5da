package domain

import "time"

// TrialRecord - один засчитанный ответ/ход. Неизменяемая запись.
// Seq is assigned by the room and is strictly increasing per session.
type TrialRecord struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Seq       int64     `db:"seq" json:"seq"`
	Correct   bool      `db:"correct" json:"correct"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RoleStats - разбивка по участнику для итогов игры
type RoleStats struct {
	Attempts int `json:"attempts"`
	Correct  int `json:"correct"`
}

// SummaryEvent - заметное событие партии (для отчёта терапевту)
type SummaryEvent struct {
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// GameSummary - итоговый снимок завершённой игры. Пишется один раз при
// завершении и замещает промежуточные снимки, сохранённые по ходу партии.
type GameSummary struct {
	SessionID       string             `db:"session_id" json:"session_id"`
	GameType        string             `db:"game_type" json:"game_type"`
	Attempts        int                `db:"attempts" json:"attempts"`
	CorrectAttempts int                `db:"correct_attempts" json:"correct_attempts"`
	DurationSeconds int64              `db:"duration_seconds" json:"duration_seconds"`
	Completed       bool               `db:"completed" json:"completed"`
	Players         map[Role]RoleStats `db:"players" json:"players"`
	Events          []SummaryEvent     `db:"events" json:"events,omitempty"`
	StartedAt       time.Time          `db:"started_at" json:"started_at"`
	CompletedAt     *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}
