package game

import (
	"encoding/json"
	"errors"

	"therapy_webapp/internal/domain"
)

type Type string

const (
	TypeChoice Type = "choice"
	TypeMatch  Type = "match"
)

// Move - одно входящее игровое сообщение, уже снятое с конверта
type Move struct {
	Kind    string
	Payload json.RawMessage
}

// Event - уведомление, которое комната рассылает обоим участникам
type Event struct {
	Type    string
	Payload any
}

// Outcome - результат принятого хода
type Outcome struct {
	Scored    bool // ход засчитан как попытка (пишется TrialRecord)
	Correct   bool
	Note      string
	Completed bool
	Events    []Event
}

// Variant - механика одной мини-игры. Реализации не потокобезопасны:
// комната сериализует все вызовы в своём цикле обработки.
type Variant interface {
	Type() Type
	Turn() domain.Role
	Apply(role domain.Role, mv Move) (*Outcome, error)
	Complete() bool
	Counts() (attempts, correct int)
	Snapshot() map[string]any
	Summarize() *domain.GameSummary
}

// Rejection codes relayed to the offending sender.
const (
	RejectBadPayload      = "bad-payload"
	RejectUnknownMove     = "unknown-move"
	RejectWrongRole       = "wrong-role"
	RejectWrongTurn       = "wrong-turn"
	RejectNotActive       = "not-active"
	RejectUnknownOption   = "unknown-option"
	RejectAlreadyAnswered = "already-answered"
	RejectUnknownCard     = "unknown-card"
	RejectAlreadyMatched  = "already-matched"
	RejectAlreadyFlipped  = "already-flipped"
	RejectTooManyFlipped  = "too-many-flipped"
	RejectNoPairFlipped   = "no-pair-flipped"
)

// RejectError - отклонённый ход. Состояние игры при этом не меняется.
type RejectError struct {
	Code    string
	Message string
}

func (e *RejectError) Error() string { return e.Message }

func Reject(code, message string) error {
	return &RejectError{Code: code, Message: message}
}

// AsReject returns the rejection if err is one.
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
