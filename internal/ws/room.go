package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/game"
	"therapy_webapp/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Статусы комнаты. Отдельной фазы "uninitialized" нет: вариант игры
// выбирается при создании, комната рождается сразу в waiting.
const (
	StatusWaiting   = "waiting"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

var ErrRoomClosed = errors.New("room is closed")

// TrialSink и SummarySink - узкий мост к хранилищу. Запись не блокирует
// игру: комната вызывает их из fire-and-forget горутин.
type TrialSink interface {
	Create(ctx context.Context, t *domain.TrialRecord) error
}

type SummarySink interface {
	Upsert(ctx context.Context, s *domain.GameSummary) error
}

type roomEvent struct {
	attach *Client
	detach *Client
	sender *Client
	frame  []byte
}

// Room - актор одной игровой сессии. Всё состояние игры принадлежит
// горутине Run; снаружи в неё попадают только события через канал,
// поэтому ходы обоих участников применяются строго по одному.
type Room struct {
	ID      string
	variant game.Variant

	status      string
	players     map[domain.Role]*Client
	events      chan roomEvent
	closed      chan struct{}
	seq         int64
	startedAt   time.Time
	completedAt *time.Time
	lastActive  time.Time

	trials    TrialSink
	summaries SummarySink
	registry  *Registry
}

func NewRoom(id string, v game.Variant, trials TrialSink, summaries SummarySink, registry *Registry) *Room {
	return &Room{
		ID:        id,
		variant:   v,
		status:    StatusWaiting,
		players:   make(map[domain.Role]*Client),
		events:    make(chan roomEvent, 64),
		closed:    make(chan struct{}),
		trials:    trials,
		summaries: summaries,
		registry:  registry,
	}
}

// Attach queues a connection for the given role. The previous connection
// for that role, if any, is superseded inside the room loop.
func (r *Room) Attach(c *Client) error {
	select {
	case r.events <- roomEvent{attach: c}:
		return nil
	case <-r.closed:
		return ErrRoomClosed
	}
}

func (r *Room) Detach(c *Client) {
	select {
	case r.events <- roomEvent{detach: c}:
	case <-r.closed:
	}
}

// Inbound hands a raw frame from a connection to the room loop.
func (r *Room) Inbound(c *Client, raw []byte) {
	select {
	case r.events <- roomEvent{sender: c, frame: raw}:
	case <-r.closed:
	}
}

func (r *Room) Run() {
	logger.Info("room started", "session", r.ID, "variant", r.variant.Type())
	RoomsActive.Inc()

	defer func() {
		RoomsActive.Dec()
		logger.Info("room stopped", "session", r.ID)
	}()

	for ev := range r.events {
		r.lastActive = time.Now()

		switch {
		case ev.attach != nil:
			r.handleAttach(ev.attach)
		case ev.detach != nil:
			if r.handleDetach(ev.detach) && r.stop() {
				return
			}
		case ev.sender != nil:
			r.handleFrame(ev.sender, ev.frame)
		}
	}
}

func (r *Room) handleAttach(c *Client) {
	if old, ok := r.players[c.Role]; ok && old != c {
		logger.Info("superseding connection", "session", r.ID, "role", c.Role)
		old.CloseWithCode(CloseSuperseded, "superseded by a newer connection")
		ConnectionsActive.WithLabelValues(string(c.Role)).Dec()
	}

	r.players[c.Role] = c
	ConnectionsActive.WithLabelValues(string(c.Role)).Inc()

	logger.Info("player attached", "session", r.ID, "role", c.Role, "players", len(r.players))

	if r.status == StatusWaiting && len(r.players) == 2 {
		r.status = StatusActive
		r.startedAt = time.Now()
		logger.Info("game activated", "session", r.ID, "variant", r.variant.Type())
	}

	// полный снимок - единственный механизм ресинхронизации
	r.broadcast(MsgGameState, r.snapshot())
}

// stop drains events queued behind the final detach before shutting the
// loop down. Поздний attach оживляет комнату: подключение уже принято
// шлюзом, молча терять его нельзя.
func (r *Room) stop() bool {
	for {
		select {
		case ev := <-r.events:
			if ev.attach == nil {
				// кадры и detach от уже ушедших подключений
				continue
			}
			if !r.registry.reinstate(r) {
				// сессию успела занять новая комната
				ev.attach.CloseWithCode(websocket.CloseTryAgainLater, "room was replaced")
				continue
			}
			r.handleAttach(ev.attach)
			return false

		default:
			close(r.closed)
			return true
		}
	}
}

// handleDetach reports whether the room is now empty and should stop.
func (r *Room) handleDetach(c *Client) bool {
	// a superseded connection detaches after its replacement attached;
	// only the current holder of the role counts
	if cur, ok := r.players[c.Role]; !ok || cur != c {
		return false
	}

	delete(r.players, c.Role)
	ConnectionsActive.WithLabelValues(string(c.Role)).Dec()
	logger.Info("player detached", "session", r.ID, "role", c.Role, "players", len(r.players))

	if len(r.players) == 0 {
		r.registry.Remove(r)
		return true
	}

	r.broadcast(MsgGameState, r.snapshot())
	return false
}

func (r *Room) handleFrame(c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.sendError(c, game.RejectBadPayload, "malformed message")
		return
	}

	switch msg.Type {
	case MsgJoinGame:
		// already attached; treat as a resync request
		r.sendTo(c, MsgGameState, r.snapshot())

	case MsgPauseGame:
		r.handlePause(c)

	case MsgResumeGame:
		r.handleResume(c)

	case MsgEndGame:
		r.handleEnd(c)

	case MsgSelectOption, MsgNextPrompt, MsgFlipCard, MsgCheckMatch, MsgEndTurn:
		r.handleMove(c, msg.Type, msg.Payload)

	case "":
		r.sendError(c, game.RejectBadPayload, "message type is required")

	default:
		r.sendError(c, game.RejectUnknownMove, "unknown message type: "+msg.Type)
	}
}

func (r *Room) handleMove(c *Client, kind string, payload json.RawMessage) {
	if r.status != StatusActive {
		r.sendError(c, game.RejectNotActive, "game is not active")
		return
	}

	outcome, err := r.variant.Apply(c.Role, game.Move{Kind: kind, Payload: payload})
	if err != nil {
		if re, ok := game.AsReject(err); ok {
			RejectionsTotal.WithLabelValues(re.Code).Inc()
			r.sendError(c, re.Code, re.Message)
		} else {
			logger.Error("variant apply failed", "session", r.ID, "error", err)
			r.sendError(c, "internal", "internal error")
		}
		return
	}

	if outcome.Scored {
		r.seq++
		r.recordTrial(outcome)
		MovesTotal.WithLabelValues(string(r.variant.Type()), resultLabel(outcome.Correct)).Inc()
	}

	for _, ev := range outcome.Events {
		r.broadcast(ev.Type, ev.Payload)
	}

	if outcome.Completed {
		r.complete()
	}

	r.broadcast(MsgGameState, r.snapshot())
}

func (r *Room) handlePause(c *Client) {
	if c.Role != domain.RoleSupervisor {
		r.sendError(c, game.RejectWrongRole, "only the supervisor may pause")
		return
	}
	if r.status != StatusActive {
		r.sendError(c, game.RejectNotActive, "game is not active")
		return
	}

	r.status = StatusPaused
	r.broadcast(MsgGamePaused, nil)
	r.broadcast(MsgGameState, r.snapshot())
}

func (r *Room) handleResume(c *Client) {
	if c.Role != domain.RoleSupervisor {
		r.sendError(c, game.RejectWrongRole, "only the supervisor may resume")
		return
	}
	if r.status != StatusPaused {
		r.sendError(c, game.RejectNotActive, "game is not paused")
		return
	}

	r.status = StatusActive
	r.broadcast(MsgGameResumed, nil)
	r.broadcast(MsgGameState, r.snapshot())
}

func (r *Room) handleEnd(c *Client) {
	if c.Role != domain.RoleSupervisor {
		r.sendError(c, game.RejectWrongRole, "only the supervisor may end the game")
		return
	}
	if r.status == StatusCompleted {
		// повторный end-game после завершения - no-op
		return
	}
	if r.status != StatusActive && r.status != StatusPaused {
		r.sendError(c, game.RejectNotActive, "game has not started")
		return
	}

	r.complete()
	r.broadcast(MsgGameState, r.snapshot())
}

// complete moves the room to its terminal status and writes the final
// summary. Completion is idempotent.
func (r *Room) complete() {
	if r.status == StatusCompleted {
		return
	}

	r.status = StatusCompleted
	now := time.Now()
	r.completedAt = &now

	attempts, correct := r.variant.Counts()
	r.broadcast(MsgGameCompleted, map[string]any{
		"attempts":        attempts,
		"correctAttempts": correct,
	})

	r.recordSummary(true)
	logger.Info("game completed", "session", r.ID, "attempts", attempts, "correct", correct)
}

// recordTrial persists one scored attempt off the hot path. Failures are
// logged and counted; in-memory state stays authoritative.
func (r *Room) recordTrial(outcome *game.Outcome) {
	if r.trials == nil {
		return
	}

	trial := &domain.TrialRecord{
		ID:        uuid.NewString(),
		SessionID: r.ID,
		Seq:       r.seq,
		Correct:   outcome.Correct,
		Note:      outcome.Note,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.trials.Create(ctx, trial); err != nil {
			PersistFailures.Inc()
			logger.Error("trial write failed", "session", trial.SessionID, "seq", trial.Seq, "error", err)
		}
	}()

	// промежуточный снимок; финальный при завершении его заместит
	r.recordSummary(false)
}

func (r *Room) recordSummary(final bool) {
	if r.summaries == nil {
		return
	}

	s := r.variant.Summarize()
	s.SessionID = r.ID
	s.StartedAt = r.startedAt
	s.CompletedAt = r.completedAt
	if final {
		// явный end-game терминален, даже если вариант не доигран
		s.Completed = true
	}
	if r.completedAt != nil {
		s.DurationSeconds = int64(r.completedAt.Sub(r.startedAt).Seconds())
	} else if !r.startedAt.IsZero() {
		s.DurationSeconds = int64(time.Since(r.startedAt).Seconds())
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.summaries.Upsert(ctx, s); err != nil {
			PersistFailures.Inc()
			logger.Error("summary write failed", "session", s.SessionID, "final", final, "error", err)
		}
	}()
}

func (r *Room) snapshot() map[string]any {
	attempts, correct := r.variant.Counts()

	return map[string]any{
		"sessionId":       r.ID,
		"status":          r.status,
		"turn":            string(r.variant.Turn()),
		"attempts":        attempts,
		"correctAttempts": correct,
		"connected": map[string]bool{
			string(domain.RoleSupervisor): r.players[domain.RoleSupervisor] != nil,
			string(domain.RoleLearner):    r.players[domain.RoleLearner] != nil,
		},
		"game": r.variant.Snapshot(),
	}
}

func (r *Room) broadcast(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		logger.Error("broadcast marshal failed", "session", r.ID, "type", msgType, "error", err)
		return
	}
	for _, c := range r.players {
		c.deliver(data)
	}
}

func (r *Room) sendTo(c *Client, msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		logger.Error("send marshal failed", "session", r.ID, "type", msgType, "error", err)
		return
	}
	c.deliver(data)
}

// sendError replies to the offending sender only; no state change.
func (r *Room) sendError(c *Client, code, message string) {
	r.sendTo(c, MsgError, ErrorPayload{Message: message, Code: code})
}

func resultLabel(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}
