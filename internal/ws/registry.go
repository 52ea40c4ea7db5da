package ws

import (
	"sync"

	"therapy_webapp/internal/game"
	"therapy_webapp/internal/logger"
)

// Registry - единственная общая для процесса структура: карта
// session id → живая комната. Комнаты создаются лениво при первом
// подключении и убираются, когда отключились оба участника.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	factory *game.Factory

	trials    TrialSink
	summaries SummarySink
}

func NewRegistry(trials TrialSink, summaries SummarySink) *Registry {
	return &Registry{
		rooms:     make(map[string]*Room),
		factory:   game.NewFactory(),
		trials:    trials,
		summaries: summaries,
	}
}

// GetOrCreate returns the live room for the session, creating it on first
// use. Idempotent: concurrent calls for one session get the same room.
func (reg *Registry) GetOrCreate(sessionID string, gameType game.Type) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[sessionID]; ok {
		select {
		case <-room.closed:
			// stale entry from a room that just emptied; fall through
		default:
			return room, nil
		}
	}

	variant, err := reg.factory.Create(gameType, sessionID)
	if err != nil {
		return nil, err
	}

	room := NewRoom(sessionID, variant, reg.trials, reg.summaries, reg)
	reg.rooms[sessionID] = room
	go room.Run()

	logger.Info("room created", "session", sessionID, "variant", gameType)
	return room, nil
}

// reinstate возвращает опустевшую комнату в карту, когда за её последним
// detach в очереди оказался attach. Не срабатывает, если session id уже
// занят новой комнатой.
func (reg *Registry) reinstate(room *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if cur, ok := reg.rooms[room.ID]; ok {
		return cur == room
	}
	reg.rooms[room.ID] = room
	logger.Info("room revived", "session", room.ID)
	return true
}

// Remove drops the room if it is still the registered one for its session.
func (reg *Registry) Remove(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if cur, ok := reg.rooms[room.ID]; ok && cur == room {
		delete(reg.rooms, room.ID)
		logger.Info("room removed", "session", room.ID)
	}
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}
