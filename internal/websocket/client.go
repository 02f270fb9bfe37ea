package websocket

import (
	"context"
	"time"

	"TrickTable/internal/game/model"
	"TrickTable/internal/utils"

	"github.com/gorilla/websocket"
)

// Router 是连接层看到的会话协调者
type Router interface {
	Exists(ctx context.Context, session string) (bool, error)
	Hub(ctx context.Context, session string) (*Hub, error)
	Submit(ctx context.Context, a model.Action) error
}

type Client struct {
	Session string
	Viewer  string
	Conn    *websocket.Conn
	Send    chan OutgoingMessage
	Hub     *Hub
}

const (
	writeWait      = 10 * time.Second    // 单次写超时
	pongWait       = 60 * time.Second    // 读超时
	pingPeriod     = (pongWait * 9) / 10 // 心跳发送周期
	maxMessageSize = 1024 * 4            // 最大4KB
)

// 写协程
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod) // 心跳
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {

		// 有消息待发
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭Send，通知前端
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		// 定时发送 ping 维持连接健康
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// 读协程：每帧转成 Action 交给 router；连接断开时补一个 PlayerLeave
func (c *Client) readPump(router Router) {
	actor := model.Actor{SessionID: c.Session, PlayerID: c.Viewer}
	defer func() {
		left := c.Hub.Unregister(c)
		_ = c.Conn.Close()
		if left > 0 {
			// 同一个 uid 还有别的连接在线，不算离开
			return
		}
		if err := router.Submit(context.Background(), model.PlayerLeave{Actor: actor}); err != nil {
			utils.Log.Debug("leave not delivered", "session", c.Session, "viewer", c.Viewer, "err", err)
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Log.Debug("connection closed", "session", c.Session, "viewer", c.Viewer, "err", err)
			}
			return
		}

		// 坏帧只回错误给本连接，连接保持
		action, err := decodeFrame(frame, c.Session, c.Viewer)
		if err != nil {
			utils.Log.Debug("malformed message", "session", c.Session, "viewer", c.Viewer, "err", err)
			c.Hub.Publish(model.To(c.Session, c.Viewer, model.ErrorEvent{Reason: "malformed message"}))
			continue
		}
		if err := router.Submit(context.Background(), action); err != nil {
			utils.Log.Warn("submit failed", "session", c.Session, "viewer", c.Viewer, "err", err)
			return
		}
	}
}
