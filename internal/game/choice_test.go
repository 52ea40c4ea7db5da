package game

import (
	"encoding/json"
	"testing"

	"therapy_webapp/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectMove(optionID string) Move {
	payload, _ := json.Marshal(map[string]string{"optionId": optionID})
	return Move{Kind: "select-option", Payload: payload}
}

func nextMove() Move {
	return Move{Kind: "next-prompt"}
}

func TestChoiceCorrectAnswerScores(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	out, err := g.Apply(domain.RoleLearner, selectMove("p1-a"))
	require.NoError(t, err)

	assert.True(t, out.Scored)
	assert.True(t, out.Correct)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "answer-result", out.Events[0].Type)

	attempts, correct := g.Counts()
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, correct)
}

func TestChoiceIncorrectAnswerScores(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	out, err := g.Apply(domain.RoleLearner, selectMove("p1-b"))
	require.NoError(t, err)

	assert.True(t, out.Scored)
	assert.False(t, out.Correct)

	attempts, correct := g.Counts()
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 0, correct)
}

func TestChoiceSupervisorMayNotAnswer(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	_, err := g.Apply(domain.RoleSupervisor, selectMove("p1-a"))
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectWrongRole, re.Code)

	attempts, _ := g.Counts()
	assert.Equal(t, 0, attempts)
}

func TestChoiceLearnerMayNotAdvance(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	_, err := g.Apply(domain.RoleLearner, nextMove())
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectWrongRole, re.Code)
}

func TestChoiceDoubleAnswerRejected(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	_, err := g.Apply(domain.RoleLearner, selectMove("p1-a"))
	require.NoError(t, err)

	_, err = g.Apply(domain.RoleLearner, selectMove("p1-b"))
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectAlreadyAnswered, re.Code)

	// rejection must not touch the counters
	attempts, correct := g.Counts()
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, correct)
}

func TestChoiceUnknownOptionRejected(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	_, err := g.Apply(domain.RoleLearner, selectMove("nope"))
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectUnknownOption, re.Code)
}

func TestChoiceAdvanceOpensNextPrompt(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	_, err := g.Apply(domain.RoleLearner, selectMove("p1-a"))
	require.NoError(t, err)

	out, err := g.Apply(domain.RoleSupervisor, nextMove())
	require.NoError(t, err)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "new-prompt", out.Events[0].Type)
	assert.False(t, out.Completed)

	// new prompt accepts an answer again
	_, err = g.Apply(domain.RoleLearner, selectMove("p2-b"))
	require.NoError(t, err)
}

func TestChoiceCompletesWhenPromptsExhausted(t *testing.T) {
	prompts := DefaultPrompts()[:2]
	g := NewChoiceGame("s1", prompts)

	_, err := g.Apply(domain.RoleLearner, selectMove("p1-a"))
	require.NoError(t, err)

	out, err := g.Apply(domain.RoleSupervisor, nextMove())
	require.NoError(t, err)
	assert.False(t, out.Completed)

	_, err = g.Apply(domain.RoleLearner, selectMove("p2-b"))
	require.NoError(t, err)

	out, err = g.Apply(domain.RoleSupervisor, nextMove())
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.True(t, g.Complete())

	// no more moves after completion
	_, err = g.Apply(domain.RoleLearner, selectMove("p2-b"))
	re, ok := AsReject(err)
	require.True(t, ok)
	assert.Equal(t, RejectNotActive, re.Code)
}

func TestChoiceTurnTracksAnswerState(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	assert.Equal(t, domain.RoleLearner, g.Turn())

	_, err := g.Apply(domain.RoleLearner, selectMove("p1-a"))
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupervisor, g.Turn())

	_, err = g.Apply(domain.RoleSupervisor, nextMove())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleLearner, g.Turn())
}

func TestChoiceSnapshotHidesAnswer(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts())

	snap := g.Snapshot()
	prompt := snap["prompt"].(map[string]any)

	_, hasAnswer := prompt["answer"]
	assert.False(t, hasAnswer)
	assert.Equal(t, "p1", prompt["id"])
}

func TestChoiceSummary(t *testing.T) {
	g := NewChoiceGame("s1", DefaultPrompts()[:1])

	_, err := g.Apply(domain.RoleLearner, selectMove("p1-b"))
	require.NoError(t, err)
	_, err = g.Apply(domain.RoleSupervisor, nextMove())
	require.NoError(t, err)

	s := g.Summarize()
	assert.Equal(t, "s1", s.SessionID)
	assert.Equal(t, "choice", s.GameType)
	assert.Equal(t, 1, s.Attempts)
	assert.Equal(t, 0, s.CorrectAttempts)
	assert.True(t, s.Completed)
	assert.Equal(t, 1, s.Players[domain.RoleLearner].Attempts)
	require.Len(t, s.Events, 1)
	assert.Equal(t, "incorrect-answer", s.Events[0].Type)
}
