package wsclient

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelayDoublesPerAttempt(t *testing.T) {
	base := 500 * time.Millisecond

	assert.Equal(t, 500*time.Millisecond, retryDelay(base, 1))
	assert.Equal(t, 1*time.Second, retryDelay(base, 2))
	assert.Equal(t, 2*time.Second, retryDelay(base, 3))
	assert.Equal(t, 4*time.Second, retryDelay(base, 4))
	assert.Equal(t, 8*time.Second, retryDelay(base, 5))
}

func TestIsPolicyClose(t *testing.T) {
	for code := ws.CloseInternalError; code <= ws.CloseSuperseded; code++ {
		assert.True(t, isPolicyClose(&websocket.CloseError{Code: code}), "code %d", code)
	}

	assert.False(t, isPolicyClose(&websocket.CloseError{Code: websocket.CloseAbnormalClosure}))
	assert.False(t, isPolicyClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.False(t, isPolicyClose(errors.New("read: connection reset")))
}

func TestDispatchCallsSubscribersByType(t *testing.T) {
	c := New(Config{SessionID: "s1", Role: domain.RoleLearner})

	var got []ws.Message
	c.Subscribe(ws.MsgAnswerResult, func(msg ws.Message) { got = append(got, msg) })

	frame, err := json.Marshal(ws.Envelope{
		Type:      ws.MsgAnswerResult,
		Payload:   map[string]any{"correct": true},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	c.dispatch(frame)
	c.dispatch([]byte(`{"type":"game-paused"}`)) // no subscriber

	require.Len(t, got, 1)
	assert.Equal(t, ws.MsgAnswerResult, got[0].Type)
}

func TestDispatchCachesGameState(t *testing.T) {
	c := New(Config{SessionID: "s1", Role: domain.RoleLearner})
	require.Nil(t, c.State())

	frame, err := json.Marshal(ws.Envelope{
		Type:    ws.MsgGameState,
		Payload: map[string]any{"status": "active", "attempts": 3},
	})
	require.NoError(t, err)

	c.dispatch(frame)

	var state struct {
		Status   string `json:"status"`
		Attempts int    `json:"attempts"`
	}
	require.NoError(t, json.Unmarshal(c.State(), &state))
	assert.Equal(t, "active", state.Status)
	assert.Equal(t, 3, state.Attempts)
}

func TestDispatchIgnoresMalformedFrames(t *testing.T) {
	c := New(Config{SessionID: "s1", Role: domain.RoleLearner})

	called := false
	c.Subscribe(ws.MsgAnswerResult, func(ws.Message) { called = true })

	c.dispatch([]byte("{not json"))

	assert.False(t, called)
	assert.Nil(t, c.State())
}

func TestConfigDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, 5, c.cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, c.cfg.RetryBase)
}

func TestSendAfterCloseReturnsErrClosed(t *testing.T) {
	c := New(Config{SessionID: "s1", Role: domain.RoleLearner})
	c.Close()

	err := c.Send(ws.MsgSelectOption, map[string]string{"optionId": "p1-a"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSendWithoutConnection(t *testing.T) {
	c := New(Config{SessionID: "s1", Role: domain.RoleLearner})

	err := c.Send(ws.MsgSelectOption, map[string]string{"optionId": "p1-a"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

// Выданный сервером credential переподключения замещает одноразовую
// ссылку: все последующие dial идут уже с ним.
func TestDispatchStoresSessionCredential(t *testing.T) {
	c := New(Config{SessionID: "s1", Role: domain.RoleLearner, Token: "one-shot-link"})

	frame, err := json.Marshal(ws.Envelope{
		Type:    ws.MsgSessionCredential,
		Payload: map[string]string{"token": "rejoin-cred"},
	})
	require.NoError(t, err)

	c.dispatch(frame)

	c.mu.RLock()
	token := c.cfg.Token
	c.mu.RUnlock()
	assert.Equal(t, "rejoin-cred", token)

	// пустой payload не затирает credential
	c.dispatch([]byte(`{"type":"session-credential","payload":{}}`))
	c.mu.RLock()
	token = c.cfg.Token
	c.mu.RUnlock()
	assert.Equal(t, "rejoin-cred", token)
}
