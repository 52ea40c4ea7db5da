package ws

import (
	"encoding/json"
	"time"

	"therapy_webapp/internal/domain"
)

const (
	// client - server
	MsgJoinGame     = "join-game"
	MsgSelectOption = "select-option"
	MsgFlipCard     = "flip-card"
	MsgCheckMatch   = "check-match"
	MsgEndTurn      = "end-turn"
	MsgNextPrompt   = "next-prompt"
	MsgPauseGame    = "pause-game"
	MsgResumeGame   = "resume-game"
	MsgEndGame      = "end-game"

	// server - client
	MsgGameState         = "game-state"
	MsgSessionCredential = "session-credential"
	MsgAnswerResult      = "answer-result"
	MsgMatchResult       = "match-result"
	MsgCardFlipped       = "card-flipped"
	MsgTurnChanged       = "turn-changed"
	MsgNewPrompt         = "new-prompt"
	MsgGamePaused        = "game-paused"
	MsgGameResumed       = "game-resumed"
	MsgGameCompleted     = "game-completed"
	MsgError             = "error"
)

// Policy close codes (websocket private range). Клиент не должен
// переподключаться после любого из них.
const (
	CloseInternalError = 4000
	CloseBadSession    = 4001
	CloseBadRole       = 4002
	CloseBadCredential = 4003
	CloseNotOwner      = 4004
	CloseSuperseded    = 4005
)

// Message - входящий конверт
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Player    domain.Role     `json:"player,omitempty"`
}

// Envelope - исходящий конверт. Player заполняется только на
// сообщениях клиент → сервер.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp string      `json:"timestamp"`
	Player    domain.Role `json:"player,omitempty"`
}

// ErrorPayload - тело сообщения об ошибке
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// marshalEnvelope stamps and serializes an outbound message.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
