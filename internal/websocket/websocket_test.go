package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"TrickTable/internal/game/card"
	"TrickTable/internal/game/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(hub *Hub, viewer string, buf int) *Client {
	return &Client{Session: "s", Viewer: viewer, Send: make(chan OutgoingMessage, buf), Hub: hub}
}

func recv(t *testing.T, c *Client) OutgoingMessage {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatalf("%s: no message", c.Viewer)
	}
	return OutgoingMessage{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("%s should NOT receive anything, got %+v", c.Viewer, msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubBroadcastProjectsPerViewer(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()
	defer hub.Close()

	a := newClient(hub, "A", 4)
	b := newClient(hub, "B", 4)
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	st := model.Playing{
		Players:  []string{"A", "B"},
		Turn:     "A",
		Hands:    map[string][]card.Card{"A": {card.Joker(true)}, "B": {card.Joker(false)}},
		Rankings: []string{},
	}
	hub.Publish(model.Broadcast("s", model.NewGameState{State: st}))

	ma := recv(t, a)
	mb := recv(t, b)
	assert.Equal(t, EventNewGameState, ma.Event)
	assert.Equal(t, []card.Card{card.Joker(true)}, ma.Data.(model.ClientNewGameState).State.(model.ClientPlaying).Hand)
	assert.Equal(t, []card.Card{card.Joker(false)}, mb.Data.(model.ClientNewGameState).State.(model.ClientPlaying).Hand)
}

func TestHubTargetedEvent(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()
	defer hub.Close()

	a := newClient(hub, "A", 1)
	b := newClient(hub, "B", 1)
	hub.Register(a)
	hub.Register(b)

	hub.Publish(model.To("s", "A", model.ErrorEvent{Reason: "not your turn"}))

	received := recv(t, a)
	assert.Equal(t, EventError, received.Event)
	assert.Equal(t, model.ClientError{Reason: "not your turn"}, received.Data)
	assertSilent(t, b)
}

// ✅ 同一订阅者收到的顺序等于发布顺序
func TestHubPreservesOrder(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()
	defer hub.Close()

	a := newClient(hub, "A", 64)
	hub.Register(a)
	for i := 0; i < 50; i++ {
		hub.Publish(model.Broadcast("s", model.ChatBroadcast{From: "B", Text: strings.Repeat("x", i)}))
	}
	for i := 0; i < 50; i++ {
		msg := recv(t, a)
		assert.Equal(t, strings.Repeat("x", i), msg.Data.(model.ClientChat).Message)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()
	defer hub.Close()

	slow := newClient(hub, "slow", 1)
	fast := newClient(hub, "fast", 8)
	hub.Register(slow)
	hub.Register(fast)

	for i := 0; i < 3; i++ {
		hub.Publish(model.Broadcast("s", model.ChatBroadcast{From: "x", Text: "spam"}))
	}

	<-slow.Send
	_, ok := <-slow.Send
	assert.False(t, ok, "slow subscriber should be closed, not silently skipped")
	for i := 0; i < 3; i++ {
		recv(t, fast)
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()

	c := newClient(hub, "A", 1)
	require.True(t, hub.Register(c))
	hub.Unregister(c)

	_, ok := <-c.Send
	assert.False(t, ok, "send should be closed after unregister")

	// 重复注销不应 panic
	hub.Unregister(c)

	hub.Close()
	assert.False(t, hub.Register(newClient(hub, "B", 1)))
	hub.Publish(model.Broadcast("s", model.ChatBroadcast{})) // 关闭后不阻塞
}

func TestHubCloseClosesSubscribers(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()
	c := newClient(hub, "A", 1)
	hub.Register(c)
	hub.Close()

	_, ok := <-c.Send
	assert.False(t, ok)
}

func TestDecodeAction(t *testing.T) {
	cases := []struct {
		frame string
		want  model.Action
	}{
		{`{"event":"chat_message","data":{"message":"hi"}}`, model.ChatMessage{Actor: model.Actor{SessionID: "s", PlayerID: "A"}, Text: "hi"}},
		{`{"event":"start_game"}`, model.StartGame{Actor: model.Actor{SessionID: "s", PlayerID: "A"}}},
		{`{"event":"pass_turn"}`, model.PassTurn{Actor: model.Actor{SessionID: "s", PlayerID: "A"}}},
		{`{"event":"play_card","data":{"card":{"type":"joker","red":true}}}`, model.PlayCard{Actor: model.Actor{SessionID: "s", PlayerID: "A"}, Card: card.Joker(true)}},
	}
	for _, tc := range cases {
		var msg IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(tc.frame), &msg))
		got, err := decodeAction(msg, "s", "A")
		require.NoError(t, err, tc.frame)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{
		`{"event":"fold"}`,
		`{"event":"play_card","data":{}}`,
		`{"event":"play_card","data":{"card":{"type":"normal","rank":"1","suit":"HEARTS"}}}`,
		`{"event":"chat_message"}`,
	} {
		var msg IncomingMessage
		require.NoError(t, json.Unmarshal([]byte(bad), &msg))
		_, err := decodeAction(msg, "s", "A")
		assert.Error(t, err, bad)
	}
}

func TestDecodeEnter(t *testing.T) {
	uid, err := decodeEnter(IncomingMessage{Event: EventEnter, Data: json.RawMessage(`{"uid":"A"}`)})
	require.NoError(t, err)
	assert.Equal(t, "A", uid)

	_, err = decodeEnter(IncomingMessage{Event: EventEnter, Data: json.RawMessage(`{}`)})
	assert.Error(t, err)
	_, err = decodeEnter(IncomingMessage{Event: EventStartGame})
	assert.Error(t, err)
}

// fakeRouter 记录提交的 Action，并把 PlayerEnter 回显成发给本人的状态
type fakeRouter struct {
	mu      sync.Mutex
	hub     *Hub
	actions []model.Action
}

func (r *fakeRouter) Exists(ctx context.Context, session string) (bool, error) {
	return session == "known", nil
}

func (r *fakeRouter) Hub(ctx context.Context, session string) (*Hub, error) {
	return r.hub, nil
}

func (r *fakeRouter) Submit(ctx context.Context, a model.Action) error {
	r.mu.Lock()
	r.actions = append(r.actions, a)
	r.mu.Unlock()
	if _, ok := a.(model.PlayerEnter); ok {
		r.hub.Publish(model.To(a.Session(), a.Player(), model.NewGameState{State: model.Waiting{Players: []string{a.Player()}}}))
	}
	return nil
}

func (r *fakeRouter) snapshot() []model.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Action(nil), r.actions...)
}

func newServer(t *testing.T, router Router) *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/game/:id", ServeWS(router, 8))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestServeWSUnknownSession(t *testing.T) {
	hub := NewHub("known")
	go hub.Run()
	defer hub.Close()
	srv := newServer(t, &fakeRouter{hub: hub})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeWSHandshakeAndLeave(t *testing.T) {
	hub := NewHub("known")
	go hub.Run()
	defer hub.Close()
	router := &fakeRouter{hub: hub}
	srv := newServer(t, router)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/known"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "enter", "data": map[string]string{"uid": "A"}}))

	var msg map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventNewGameState, msg["event"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "fold"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventError, msg["event"])
	assert.Equal(t, "malformed message", msg["data"].(map[string]any)["reason"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "start_game"}))
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		actions := router.snapshot()
		if len(actions) != 3 {
			return false
		}
		_, enter := actions[0].(model.PlayerEnter)
		_, start := actions[1].(model.StartGame)
		_, leave := actions[2].(model.PlayerLeave)
		return enter && start && leave
	}, time.Second, 10*time.Millisecond)
}

func dialKnown(t *testing.T, srv *httptest.Server, uid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/game/known"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "enter", "data": map[string]string{"uid": uid}}))
	var msg map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, EventNewGameState, msg["event"])
	return conn
}

func leaves(actions []model.Action) int {
	n := 0
	for _, a := range actions {
		if _, ok := a.(model.PlayerLeave); ok {
			n++
		}
	}
	return n
}

// ✅ 不是 JSON 的帧：回 malformed message，连接不断，不产生 PlayerLeave
func TestServeWSInvalidJSONKeepsConnection(t *testing.T) {
	hub := NewHub("known")
	go hub.Run()
	defer hub.Close()
	router := &fakeRouter{hub: hub}
	srv := newServer(t, router)

	conn := dialKnown(t, srv, "A")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var msg map[string]any
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventError, msg["event"])
	assert.Equal(t, "malformed message", msg["data"].(map[string]any)["reason"])

	// 连接还活着，后续动作照常提交
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "chat_message", "data": map[string]string{"message": "still here"}}))
	require.Eventually(t, func() bool {
		actions := router.snapshot()
		if len(actions) == 0 {
			return false
		}
		chat, ok := actions[len(actions)-1].(model.ChatMessage)
		return ok && chat.Text == "still here"
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, leaves(router.snapshot()))
}

func TestHubUnregisterReportsSameViewer(t *testing.T) {
	hub := NewHub("s")
	go hub.Run()

	first := newClient(hub, "A", 1)
	second := newClient(hub, "A", 1)
	other := newClient(hub, "B", 1)
	hub.Register(first)
	hub.Register(second)
	hub.Register(other)

	assert.Equal(t, 1, hub.Unregister(first))
	assert.Equal(t, 1, hub.Unregister(first), "repeat unregister still reports live connections")
	assert.Equal(t, 0, hub.Unregister(second))

	hub.Close()
	assert.Equal(t, 0, hub.Unregister(other))
}

// 同一个 uid 还有另一条连接时，断开一条不算离开
func TestServeWSLeaveOnlyAfterLastConnection(t *testing.T) {
	hub := NewHub("known")
	go hub.Run()
	defer hub.Close()
	router := &fakeRouter{hub: hub}
	srv := newServer(t, router)

	conn1 := dialKnown(t, srv, "A")
	conn2 := dialKnown(t, srv, "A")

	require.NoError(t, conn1.Close())
	assert.Never(t, func() bool { return leaves(router.snapshot()) > 0 }, 200*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, conn2.Close())
	require.Eventually(t, func() bool { return leaves(router.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, leaves(router.snapshot()))
}
