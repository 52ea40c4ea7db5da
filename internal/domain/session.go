package domain

import "time"

// Role - кто сидит за подключением в игровой комнате
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleLearner    Role = "learner"
)

func (r Role) Valid() bool {
	return r == RoleSupervisor || r == RoleLearner
}

// Other возвращает противоположную роль (для передачи хода)
func (r Role) Other() Role {
	if r == RoleSupervisor {
		return RoleLearner
	}
	return RoleSupervisor
}

// TherapySession - запись сессии из основного приложения.
// Движок читает её только для проверки владения и выбора игры.
type TherapySession struct {
	ID           string    `db:"id" json:"id"`
	SupervisorID int64     `db:"supervisor_id" json:"supervisor_id"`
	LearnerName  string    `db:"learner_name" json:"learner_name"`
	GameType     string    `db:"game_type" json:"game_type"` // choice | match
	ScheduledAt  time.Time `db:"scheduled_at" json:"scheduled_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
