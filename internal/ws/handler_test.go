package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"therapy_webapp/internal/domain"
	"therapy_webapp/internal/repository"
	"therapy_webapp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions struct {
	sess *domain.TherapySession
	err  error
}

func (f *fakeSessions) GetByID(ctx context.Context, id string) (*domain.TherapySession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sess != nil && f.sess.ID == id {
		return f.sess, nil
	}
	return nil, repository.ErrSessionNotFound
}

type fakeLinks struct {
	tokens  map[string]string // одноразовая ссылка -> session id
	rejoins map[string]string // credential переподключения -> session id
}

func (f *fakeLinks) Redeem(ctx context.Context, token, sessionID string) error {
	if sid, ok := f.tokens[token]; ok && sid == sessionID {
		delete(f.tokens, token)
		return nil
	}
	return service.ErrLinkTokenInvalid
}

func (f *fakeLinks) GrantRejoin(ctx context.Context, sessionID string) (string, error) {
	if f.rejoins == nil {
		f.rejoins = make(map[string]string)
	}
	token := fmt.Sprintf("rejoin-%d", len(f.rejoins)+1)
	f.rejoins[token] = sessionID
	return token, nil
}

func (f *fakeLinks) CheckRejoin(ctx context.Context, token, sessionID string) error {
	if sid, ok := f.rejoins[token]; ok && sid == sessionID {
		return nil
	}
	return service.ErrLinkTokenInvalid
}

func newTestGateway() *Gateway {
	g := NewGateway(
		NewRegistry(&fakeTrials{}, &fakeSummaries{}),
		&fakeSessions{sess: &domain.TherapySession{
			ID:           "sess-1",
			SupervisorID: 1,
			GameType:     "choice",
		}},
		&fakeLinks{tokens: map[string]string{"good-token": "sess-1"}},
	)
	g.parseToken = func(token string) (int64, error) {
		if token == "sup-1" {
			return 1, nil
		}
		if token == "sup-2" {
			return 2, nil
		}
		return 0, errors.New("invalid token")
	}
	return g
}

func newTestServer(t *testing.T, g *Gateway) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", g.Handle(""))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, query, cookie string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query

	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", SupervisorCookie+"="+cookie)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectPolicyClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, code, ce.Code)
}

// expectMsg reads frames until the wanted type arrives, skipping others.
func expectMsg(t *testing.T, conn *websocket.Conn, msgType string) Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg.Type == msgType {
			return msg
		}
	}

	t.Fatalf("timed out waiting for %q", msgType)
	return Message{}
}

func expectGameState(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	expectMsg(t, conn, MsgGameState)
}

func TestGatewayRequiresSession(t *testing.T) {
	srv := newTestServer(t, newTestGateway())
	conn := dialWS(t, srv, "role=learner", "")
	expectPolicyClose(t, conn, CloseBadSession)
}

func TestGatewayRejectsUnknownRole(t *testing.T) {
	srv := newTestServer(t, newTestGateway())
	conn := dialWS(t, srv, "session=sess-1&role=observer", "")
	expectPolicyClose(t, conn, CloseBadRole)
}

func TestGatewayRejectsUnknownSession(t *testing.T) {
	srv := newTestServer(t, newTestGateway())
	conn := dialWS(t, srv, "session=nope&role=learner&token=good-token", "")
	expectPolicyClose(t, conn, CloseBadSession)
}

func TestGatewaySupervisorNeedsCookie(t *testing.T) {
	srv := newTestServer(t, newTestGateway())

	conn := dialWS(t, srv, "session=sess-1&role=supervisor", "")
	expectPolicyClose(t, conn, CloseBadCredential)

	conn = dialWS(t, srv, "session=sess-1&role=supervisor", "garbage")
	expectPolicyClose(t, conn, CloseBadCredential)
}

func TestGatewaySupervisorMustOwnSession(t *testing.T) {
	srv := newTestServer(t, newTestGateway())
	conn := dialWS(t, srv, "session=sess-1&role=supervisor", "sup-2")
	expectPolicyClose(t, conn, CloseNotOwner)
}

func TestGatewaySupervisorHappyPath(t *testing.T) {
	srv := newTestServer(t, newTestGateway())
	conn := dialWS(t, srv, "session=sess-1&role=supervisor", "sup-1")
	expectGameState(t, conn)
}

func TestGatewayLearnerNeedsValidToken(t *testing.T) {
	srv := newTestServer(t, newTestGateway())

	conn := dialWS(t, srv, "session=sess-1&role=learner", "")
	expectPolicyClose(t, conn, CloseBadCredential)

	conn = dialWS(t, srv, "session=sess-1&role=learner&token=stolen", "")
	expectPolicyClose(t, conn, CloseBadCredential)
}

func TestGatewayLearnerTokenIsSingleUse(t *testing.T) {
	g := newTestGateway()
	srv := newTestServer(t, g)

	conn := dialWS(t, srv, "session=sess-1&role=learner&token=good-token", "")
	expectGameState(t, conn)

	// тот же токен второй раз уже погашен
	again := dialWS(t, srv, "session=sess-1&role=learner&token=good-token", "")
	expectPolicyClose(t, again, CloseBadCredential)
}

// Ученик, потерявший сеть посреди партии, возвращается по credential
// переподключения, который сервер выдал при гашении одноразовой ссылки.
func TestGatewayLearnerRejoinsAfterDrop(t *testing.T) {
	g := newTestGateway()
	srv := newTestServer(t, g)

	conn := dialWS(t, srv, "session=sess-1&role=learner&token=good-token", "")

	msg := expectMsg(t, conn, MsgSessionCredential)
	var cred struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &cred))
	require.NotEmpty(t, cred.Token)
	expectGameState(t, conn)

	conn.Close()

	// повторный вход по credential, не по погашенной ссылке
	again := dialWS(t, srv, "session=sess-1&role=learner&token="+cred.Token, "")
	expectGameState(t, again)

	// credential привязан к сессии
	require.ErrorIs(t, g.links.CheckRejoin(context.Background(), cred.Token, "sess-2"), service.ErrLinkTokenInvalid)
}

func TestGatewayLookupFailureClosesWithInternalCode(t *testing.T) {
	g := newTestGateway()
	g.sessions = &fakeSessions{err: errors.New("db down")}
	srv := newTestServer(t, g)

	conn := dialWS(t, srv, "session=sess-1&role=learner&token=good-token", "")
	expectPolicyClose(t, conn, CloseInternalError)
}
