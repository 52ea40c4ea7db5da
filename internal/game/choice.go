package game

import (
	"encoding/json"
	"fmt"
	"time"

	"therapy_webapp/internal/domain"

	"github.com/thoas/go-funk"
)

// Option - один вариант ответа на подсказке
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Prompt - задание с несколькими вариантами, ровно один верный
type Prompt struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
	Answer  string   `json:"-"` // correct option id, never serialized
}

// ChoiceGame - игра "выбери ответ": отвечает только ученик, подсказки
// листает только супервизор.
type ChoiceGame struct {
	sessionID string
	prompts   []Prompt
	index     int
	answered  bool
	done      bool
	attempts  int
	correct   int
	events    []domain.SummaryEvent
}

func NewChoiceGame(sessionID string, prompts []Prompt) *ChoiceGame {
	return &ChoiceGame{
		sessionID: sessionID,
		prompts:   prompts,
	}
}

func (g *ChoiceGame) Type() Type { return TypeChoice }

// Turn: пока подсказка открыта - ходит ученик, после ответа - супервизор
func (g *ChoiceGame) Turn() domain.Role {
	if g.done || g.answered {
		return domain.RoleSupervisor
	}
	return domain.RoleLearner
}

func (g *ChoiceGame) Complete() bool { return g.done }

func (g *ChoiceGame) Counts() (int, int) { return g.attempts, g.correct }

func (g *ChoiceGame) Apply(role domain.Role, mv Move) (*Outcome, error) {
	switch mv.Kind {
	case "select-option":
		return g.selectOption(role, mv.Payload)
	case "next-prompt":
		return g.nextPrompt(role)
	default:
		return nil, Reject(RejectUnknownMove, fmt.Sprintf("unknown move %q for choice game", mv.Kind))
	}
}

func (g *ChoiceGame) selectOption(role domain.Role, payload json.RawMessage) (*Outcome, error) {
	if role != domain.RoleLearner {
		return nil, Reject(RejectWrongRole, "only the learner may answer")
	}
	if g.done {
		return nil, Reject(RejectNotActive, "game is already complete")
	}
	if g.answered {
		return nil, Reject(RejectAlreadyAnswered, "current prompt is already answered")
	}

	var p struct {
		OptionID string `json:"optionId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.OptionID == "" {
		return nil, Reject(RejectBadPayload, "select-option requires optionId")
	}

	prompt := g.prompts[g.index]
	ids := funk.Map(prompt.Options, func(o Option) string { return o.ID }).([]string)
	if !funk.ContainsString(ids, p.OptionID) {
		return nil, Reject(RejectUnknownOption, fmt.Sprintf("option %q is not on this prompt", p.OptionID))
	}

	correct := p.OptionID == prompt.Answer
	g.answered = true
	g.attempts++
	if correct {
		g.correct++
	} else {
		g.events = append(g.events, domain.SummaryEvent{
			Type:   "incorrect-answer",
			Detail: fmt.Sprintf("prompt %s: chose %s", prompt.ID, p.OptionID),
			At:     time.Now(),
		})
	}

	return &Outcome{
		Scored:  true,
		Correct: correct,
		Note:    fmt.Sprintf("prompt %s: selected %s", prompt.ID, p.OptionID),
		Events: []Event{{
			Type: "answer-result",
			Payload: map[string]any{
				"promptId": prompt.ID,
				"optionId": p.OptionID,
				"correct":  correct,
			},
		}},
	}, nil
}

func (g *ChoiceGame) nextPrompt(role domain.Role) (*Outcome, error) {
	if role != domain.RoleSupervisor {
		return nil, Reject(RejectWrongRole, "only the supervisor may advance prompts")
	}
	if g.done {
		return nil, Reject(RejectNotActive, "game is already complete")
	}

	if g.index+1 >= len(g.prompts) {
		g.done = true
		return &Outcome{Completed: true}, nil
	}

	g.index++
	g.answered = false

	return &Outcome{
		Events: []Event{{
			Type: "new-prompt",
			Payload: map[string]any{
				"prompt": g.publicPrompt(),
				"index":  g.index,
				"total":  len(g.prompts),
			},
		}},
	}, nil
}

// publicPrompt returns the current prompt without the answer key.
func (g *ChoiceGame) publicPrompt() map[string]any {
	p := g.prompts[g.index]
	return map[string]any{
		"id":      p.ID,
		"text":    p.Text,
		"options": p.Options,
	}
}

func (g *ChoiceGame) Snapshot() map[string]any {
	return map[string]any{
		"variant":         string(TypeChoice),
		"prompt":          g.publicPrompt(),
		"promptIndex":     g.index,
		"promptCount":     len(g.prompts),
		"answered":        g.answered,
		"attempts":        g.attempts,
		"correctAttempts": g.correct,
	}
}

func (g *ChoiceGame) Summarize() *domain.GameSummary {
	return &domain.GameSummary{
		SessionID:       g.sessionID,
		GameType:        string(TypeChoice),
		Attempts:        g.attempts,
		CorrectAttempts: g.correct,
		Completed:       g.done,
		Players: map[domain.Role]domain.RoleStats{
			domain.RoleLearner: {Attempts: g.attempts, Correct: g.correct},
		},
		Events: g.events,
	}
}

// DefaultPrompts - встроенный набор заданий на словарный запас
func DefaultPrompts() []Prompt {
	return []Prompt{
		{
			ID:   "p1",
			Text: "Which one is the cat?",
			Options: []Option{
				{ID: "p1-a", Label: "cat"},
				{ID: "p1-b", Label: "dog"},
				{ID: "p1-c", Label: "bird"},
			},
			Answer: "p1-a",
		},
		{
			ID:   "p2",
			Text: "Which one do you drink from?",
			Options: []Option{
				{ID: "p2-a", Label: "shoe"},
				{ID: "p2-b", Label: "cup"},
				{ID: "p2-c", Label: "hat"},
			},
			Answer: "p2-b",
		},
		{
			ID:   "p3",
			Text: "Which one flies?",
			Options: []Option{
				{ID: "p3-a", Label: "fish"},
				{ID: "p3-b", Label: "car"},
				{ID: "p3-c", Label: "plane"},
			},
			Answer: "p3-c",
		},
		{
			ID:   "p4",
			Text: "Which one is red?",
			Options: []Option{
				{ID: "p4-a", Label: "apple"},
				{ID: "p4-b", Label: "banana"},
				{ID: "p4-c", Label: "pea"},
			},
			Answer: "p4-a",
		},
	}
}
