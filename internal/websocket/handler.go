package websocket

import (
	"context"
	"net/http"
	"time"

	"TrickTable/internal/game/model"
	"TrickTable/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const handshakeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /game/:id
// 未知 session 在升级之前就返回 404；第一帧必须是 enter {uid}
func ServeWS(router Router, sendBuffer int) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := c.Param("id")

		ok, err := router.Exists(c.Request.Context(), session)
		if err != nil {
			utils.Log.Error("session lookup failed", "session", session, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "game " + session + " not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
		var hello IncomingMessage
		if err := conn.ReadJSON(&hello); err != nil {
			_ = conn.Close()
			return
		}
		uid, err := decodeEnter(hello)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}

		// 请求结束后 gin 的 context 会被取消，连接生命周期用独立的 context
		ctx := context.Background()
		hub, err := router.Hub(ctx, session)
		if err != nil {
			closeWith(conn, websocket.CloseInternalServerErr, "internal error")
			return
		}

		client := &Client{
			Session: session,
			Viewer:  uid,
			Conn:    conn,
			Send:    make(chan OutgoingMessage, sendBuffer),
			Hub:     hub,
		}
		if !hub.Register(client) {
			closeWith(conn, websocket.CloseGoingAway, "session closed")
			return
		}

		go client.writePump()
		if err := router.Submit(ctx, model.PlayerEnter{Actor: model.Actor{SessionID: session, PlayerID: uid}}); err != nil {
			hub.Unregister(client)
			return
		}
		go client.readPump(router)
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	_ = conn.Close()
}
