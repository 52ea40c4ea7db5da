package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"therapy_webapp/internal/domain"

	"github.com/thoas/go-funk"
)

// Pair - пара карточек "слово - картинка"
type Pair struct {
	ID      string `json:"id"`
	Word    string `json:"word"`
	Picture string `json:"picture"`
}

// Card - одна карточка на поле
type Card struct {
	ID      string
	PairID  string
	Kind    string // word | picture
	Label   string
	Flipped bool
	Matched bool
}

// MatchGame - мемори с парами карточек. Ходят оба участника по очереди;
// совпадение оставляет ход, промах передаёт его другому.
type MatchGame struct {
	sessionID string
	cards     []*Card
	turn      domain.Role
	done      bool
	attempts  int
	correct   int
	perRole   map[domain.Role]domain.RoleStats
	events    []domain.SummaryEvent
}

func NewMatchGame(sessionID string, pairs []Pair) *MatchGame {
	cards := make([]*Card, 0, len(pairs)*2)
	for _, p := range pairs {
		cards = append(cards,
			&Card{ID: p.ID + "-w", PairID: p.ID, Kind: "word", Label: p.Word},
			&Card{ID: p.ID + "-p", PairID: p.ID, Kind: "picture", Label: p.Picture},
		)
	}
	rand.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	return &MatchGame{
		sessionID: sessionID,
		cards:     cards,
		turn:      domain.RoleLearner,
		perRole:   make(map[domain.Role]domain.RoleStats),
	}
}

func (g *MatchGame) Type() Type { return TypeMatch }

func (g *MatchGame) Turn() domain.Role { return g.turn }

func (g *MatchGame) Complete() bool { return g.done }

func (g *MatchGame) Counts() (int, int) { return g.attempts, g.correct }

func (g *MatchGame) Apply(role domain.Role, mv Move) (*Outcome, error) {
	switch mv.Kind {
	case "flip-card":
		return g.flipCard(role, mv.Payload)
	case "check-match":
		return g.checkMatch(role, mv.Payload)
	case "end-turn":
		return g.endTurn(role)
	default:
		return nil, Reject(RejectUnknownMove, fmt.Sprintf("unknown move %q for match game", mv.Kind))
	}
}

func (g *MatchGame) flipped() []*Card {
	return funk.Filter(g.cards, func(c *Card) bool { return c.Flipped }).([]*Card)
}

func (g *MatchGame) find(id string) *Card {
	c := funk.Find(g.cards, func(c *Card) bool { return c.ID == id })
	if c == nil {
		return nil
	}
	return c.(*Card)
}

func (g *MatchGame) flipCard(role domain.Role, payload json.RawMessage) (*Outcome, error) {
	if g.done {
		return nil, Reject(RejectNotActive, "game is already complete")
	}
	if role != g.turn {
		return nil, Reject(RejectWrongTurn, "it is not your turn")
	}

	var p struct {
		CardID string `json:"cardId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.CardID == "" {
		return nil, Reject(RejectBadPayload, "flip-card requires cardId")
	}

	card := g.find(p.CardID)
	if card == nil {
		return nil, Reject(RejectUnknownCard, fmt.Sprintf("no card %q on the board", p.CardID))
	}
	if card.Matched {
		return nil, Reject(RejectAlreadyMatched, "card is already matched")
	}
	if card.Flipped {
		return nil, Reject(RejectAlreadyFlipped, "card is already face up")
	}
	if len(g.flipped()) >= 2 {
		return nil, Reject(RejectTooManyFlipped, "two cards are already face up")
	}

	card.Flipped = true

	return &Outcome{
		Events: []Event{{
			Type: "card-flipped",
			Payload: map[string]any{
				"cardId": card.ID,
				"kind":   card.Kind,
				"label":  card.Label,
				"by":     string(role),
			},
		}},
	}, nil
}

func (g *MatchGame) checkMatch(role domain.Role, payload json.RawMessage) (*Outcome, error) {
	if g.done {
		return nil, Reject(RejectNotActive, "game is already complete")
	}
	if role != g.turn {
		return nil, Reject(RejectWrongTurn, "it is not your turn")
	}

	var p struct {
		Card1ID string `json:"card1Id"`
		Card2ID string `json:"card2Id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Card1ID == "" || p.Card2ID == "" {
		return nil, Reject(RejectBadPayload, "check-match requires card1Id and card2Id")
	}

	up := g.flipped()
	if len(up) != 2 {
		return nil, Reject(RejectNoPairFlipped, "exactly two cards must be face up")
	}
	ids := []string{up[0].ID, up[1].ID}
	if !funk.ContainsString(ids, p.Card1ID) || !funk.ContainsString(ids, p.Card2ID) || p.Card1ID == p.Card2ID {
		return nil, Reject(RejectBadPayload, "check-match must name the two face-up cards")
	}

	matched := up[0].PairID == up[1].PairID
	g.attempts++
	stats := g.perRole[role]
	stats.Attempts++

	events := []Event{}
	if matched {
		up[0].Matched = true
		up[1].Matched = true
		up[0].Flipped = false
		up[1].Flipped = false
		g.correct++
		stats.Correct++

		events = append(events, Event{
			Type: "match-result",
			Payload: map[string]any{
				"correct": true,
				"pairId":  up[0].PairID,
				"by":      string(role),
			},
		})

		g.events = append(g.events, domain.SummaryEvent{
			Type:   "matched-pair",
			Detail: fmt.Sprintf("%s matched pair %s", role, up[0].PairID),
			At:     time.Now(),
		})

		if g.remaining() == 0 {
			g.done = true
		}
	} else {
		g.events = append(g.events, domain.SummaryEvent{
			Type:   "incorrect-match",
			Detail: fmt.Sprintf("%s checked %s + %s", role, p.Card1ID, p.Card2ID),
			At:     time.Now(),
		})
		up[0].Flipped = false
		up[1].Flipped = false
		g.turn = role.Other()

		events = append(events,
			Event{
				Type: "match-result",
				Payload: map[string]any{
					"correct": false,
					"cardIds": ids,
					"by":      string(role),
				},
			},
			Event{
				Type: "turn-changed",
				Payload: map[string]any{
					"turn":   string(g.turn),
					"reason": "incorrect-match",
				},
			},
		)
	}
	g.perRole[role] = stats

	return &Outcome{
		Scored:    true,
		Correct:   matched,
		Note:      fmt.Sprintf("%s checked %s + %s", role, p.Card1ID, p.Card2ID),
		Completed: g.done,
		Events:    events,
	}, nil
}

func (g *MatchGame) endTurn(role domain.Role) (*Outcome, error) {
	if g.done {
		return nil, Reject(RejectNotActive, "game is already complete")
	}
	if role != g.turn {
		return nil, Reject(RejectWrongTurn, "it is not your turn")
	}

	// face-up cards flip back when the turn is given up
	for _, c := range g.flipped() {
		c.Flipped = false
	}
	g.turn = role.Other()

	return &Outcome{
		Events: []Event{{
			Type: "turn-changed",
			Payload: map[string]any{
				"turn":   string(g.turn),
				"reason": "end-turn",
			},
		}},
	}, nil
}

func (g *MatchGame) remaining() int {
	return len(funk.Filter(g.cards, func(c *Card) bool { return !c.Matched }).([]*Card))
}

func (g *MatchGame) Snapshot() map[string]any {
	cards := make([]map[string]any, 0, len(g.cards))
	for _, c := range g.cards {
		entry := map[string]any{
			"id":      c.ID,
			"flipped": c.Flipped,
			"matched": c.Matched,
		}
		// card faces stay hidden until flipped or matched
		if c.Flipped || c.Matched {
			entry["kind"] = c.Kind
			entry["label"] = c.Label
		}
		cards = append(cards, entry)
	}

	return map[string]any{
		"variant":         string(TypeMatch),
		"cards":           cards,
		"turn":            string(g.turn),
		"attempts":        g.attempts,
		"correctAttempts": g.correct,
	}
}

func (g *MatchGame) Summarize() *domain.GameSummary {
	players := make(map[domain.Role]domain.RoleStats, len(g.perRole))
	for role, stats := range g.perRole {
		players[role] = stats
	}

	return &domain.GameSummary{
		SessionID:       g.sessionID,
		GameType:        string(TypeMatch),
		Attempts:        g.attempts,
		CorrectAttempts: g.correct,
		Completed:       g.done,
		Players:         players,
		Events:          g.events,
	}
}

// DefaultPairs - набор из четырёх пар (поле на 8 карточек)
func DefaultPairs() []Pair {
	return []Pair{
		{ID: "m1", Word: "cat", Picture: "🐱"},
		{ID: "m2", Word: "dog", Picture: "🐶"},
		{ID: "m3", Word: "sun", Picture: "☀️"},
		{ID: "m4", Word: "fish", Picture: "🐟"},
	}
}
