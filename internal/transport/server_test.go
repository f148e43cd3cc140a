package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cardlab/duel-server-go/internal/cards"
	"github.com/cardlab/duel-server-go/internal/game"
	"github.com/cardlab/duel-server-go/internal/game/ability"
	"github.com/cardlab/duel-server-go/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	*httptest.Server
	srv     *Server
	manager *game.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog, err := cards.NewCatalog(&cards.Definition{
		Ref:    cards.NewRef("test", "grunt"),
		Name:   "Grunt",
		Type:   ability.CardUnit,
		Cost:   1,
		Attack: 2,
		Health: 3,
	})
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	manager := game.NewManager(catalog, nil, game.DefaultSettings(), logger)
	srv := NewServer(manager, catalog, DefaultOptions(), logger)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testServer{Server: ts, srv: srv, manager: manager}
}

func (ts *testServer) createDuel(t *testing.T) game.DuelSummary {
	t.Helper()
	resp, err := http.Post(ts.URL+"/duels", "application/json", strings.NewReader(`{"seed": 99}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary game.DuelSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	return summary
}

func (ts *testServer) dial(t *testing.T, duelID, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/duels/" + duelID + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := protocol.Decode(frame)
	require.NoError(t, err)
	return env
}

func readAs[T any](t *testing.T, conn *websocket.Conn, typ string) T {
	t.Helper()
	env := readEnvelope(t, conn)
	require.Equal(t, typ, env.Type, "payload: %s", env.Payload)
	var v T
	require.NoError(t, json.Unmarshal(env.Payload, &v))
	return v
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	frame, err := protocol.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

// mutation is the part of duelMutated the tests read back.
type mutation struct {
	Deltas    []map[string]any `json:"deltas"`
	WhoseTurn game.PlayerIndex `json:"whoseTurn"`
	Iteration int              `json:"iteration"`
}

func TestDuelOverWebSocket(t *testing.T) {
	ts := newTestServer(t)
	summary := ts.createDuel(t)
	assert.Equal(t, game.StatusAwaitingConnection, summary.Status)

	p1 := ts.dial(t, summary.ID, "?player=1")
	welcome := readAs[protocol.DuelWelcome](t, p1, protocol.MsgDuelWelcome)
	assert.Equal(t, game.P1, welcome.You)
	assert.Equal(t, game.StatusAwaitingConnection, welcome.Status)

	p2 := ts.dial(t, summary.ID, "?player=2")
	welcome = readAs[protocol.DuelWelcome](t, p2, protocol.MsgDuelWelcome)
	assert.Equal(t, game.P2, welcome.You)

	started := readAs[mutation](t, p1, protocol.MsgDuelMutated)
	assert.Equal(t, started, readAs[mutation](t, p2, protocol.MsgDuelMutated).withoutDeltas(started))
	require.NotEmpty(t, started.Deltas)

	conns := map[game.PlayerIndex]*websocket.Conn{game.P1: p1, game.P2: p2}
	active, idle := conns[started.WhoseTurn], conns[started.WhoseTurn.Other()]

	// Off-turn requests fail without a mutation.
	send(t, idle, protocol.MsgDuelEndTurn, protocol.DuelEndTurn{
		Header: protocol.RequestHeader{RequestID: 1, Iteration: started.Iteration},
	})
	failed := readAs[protocol.DuelRequestFailed](t, idle, protocol.MsgDuelRequestFailed)
	assert.Equal(t, protocol.DuelRequestFailed{RequestID: 1, Reason: "Not your turn"}, failed)

	send(t, active, protocol.MsgDuelEndTurn, protocol.DuelEndTurn{
		Header: protocol.RequestHeader{RequestID: 2, Iteration: started.Iteration},
	})
	next := readAs[mutation](t, active, protocol.MsgDuelMutated)
	assert.Equal(t, started.Iteration+1, next.Iteration)
	assert.Equal(t, started.WhoseTurn.Other(), next.WhoseTurn)
	ack := readAs[protocol.DuelRequestAck](t, active, protocol.MsgDuelRequestAck)
	assert.Equal(t, 2, ack.RequestID)
	assert.Equal(t, next.Iteration, readAs[mutation](t, idle, protocol.MsgDuelMutated).Iteration)

	// The same header again is stale.
	send(t, idle, protocol.MsgDuelEndTurn, protocol.DuelEndTurn{
		Header: protocol.RequestHeader{RequestID: 3, Iteration: started.Iteration},
	})
	failed = readAs[protocol.DuelRequestFailed](t, idle, protocol.MsgDuelRequestFailed)
	assert.Equal(t, protocol.DuelRequestFailed{RequestID: 3, Reason: "Iteration mismatch"}, failed)
}

// withoutDeltas compares everything but the deltas, which differ per seat.
func (m mutation) withoutDeltas(other mutation) mutation {
	m.Deltas = other.Deltas
	return m
}

func TestSeatCanOnlyBeTakenOnce(t *testing.T) {
	ts := newTestServer(t)
	summary := ts.createDuel(t)

	p1 := ts.dial(t, summary.ID, "?player=1")
	readAs[protocol.DuelWelcome](t, p1, protocol.MsgDuelWelcome)

	again := ts.dial(t, summary.ID, "?player=1")
	require.NoError(t, again.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := again.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestSpectatorSeesHiddenHands(t *testing.T) {
	ts := newTestServer(t)
	summary := ts.createDuel(t)

	spectator := ts.dial(t, summary.ID, "")
	welcome := readAs[protocol.DuelWelcome](t, spectator, protocol.MsgDuelWelcome)
	assert.Equal(t, game.Spectator, welcome.You)
	assert.Empty(t, welcome.Propositions.Card)

	ts.dial(t, summary.ID, "?player=1")
	ts.dial(t, summary.ID, "?player=2")

	started := readAs[mutation](t, spectator, protocol.MsgDuelMutated)
	for _, dl := range started.Deltas {
		assert.NotEqual(t, "revealCards", dl["type"])
	}
}

func TestHTTPRoutes(t *testing.T) {
	ts := newTestServer(t)
	summary := ts.createDuel(t)

	resp, err := http.Get(ts.URL + "/duels")
	require.NoError(t, err)
	var list []game.DuelSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, summary.ID, list[0].ID)

	resp, err = http.Get(ts.URL + "/duels/" + summary.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snapshot protocol.DuelWelcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	resp.Body.Close()
	assert.Len(t, snapshot.State.Players, 2)

	resp, err = http.Get(ts.URL + "/duels/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/duels/" + summary.ID + "/ws?player=3")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/duels/"+summary.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := ts.manager.GetDuel(summary.ID)
	assert.False(t, ok)
}

func TestCreateDuelRejectsUnknownCards(t *testing.T) {
	ts := newTestServer(t)
	body := fmt.Sprintf(`{"decks": [[%q], []]}`, "test:missing")
	resp, err := http.Post(ts.URL+"/duels", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
