package game

import "fmt"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// Create builds a variant with its default deck/prompt set.
func (f *Factory) Create(gameType Type, sessionID string) (Variant, error) {
	switch gameType {
	case TypeChoice:
		return NewChoiceGame(sessionID, DefaultPrompts()), nil
	case TypeMatch:
		return NewMatchGame(sessionID, DefaultPairs()), nil
	default:
		return nil, fmt.Errorf("unknown game type: %s", gameType)
	}
}
