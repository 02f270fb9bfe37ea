package websocket

import (
	"sync"

	"TrickTable/internal/game/model"
	"TrickTable/internal/game/view"
	"TrickTable/internal/utils"
)

type unregisterReq struct {
	client *Client
	left   chan int
}

// Hub 是一个 session 的广播流：所有订阅者按发布顺序收到按自己视角投影后的事件
type Hub struct {
	session    string
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan unregisterReq
	broadcast  chan model.Event
	quit       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

func NewHub(session string) *Hub {
	return &Hub{
		session:    session,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan unregisterReq),
		broadcast:  make(chan model.Event),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	utils.Log.Debug("hub started", "session", h.session)
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			utils.Log.Info("hub.register", "session", h.session, "viewer", c.Viewer, "subscribers", len(h.clients))

		case req := <-h.unregister:
			c := req.client
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				utils.Log.Info("hub.unregister", "session", h.session, "viewer", c.Viewer, "subscribers", len(h.clients))
			}
			req.left <- h.viewerCount(c.Viewer)

		case ev := <-h.broadcast:
			for c := range h.clients {
				out, ok := view.Project(ev, c.Viewer)
				if !ok {
					continue
				}
				select {
				case c.Send <- toOutgoing(out):
				default:
					// 发送缓冲满了：断开这个订阅者，不丢消息也不乱序
					h.drop(c)
					utils.Log.Warn("hub: slow subscriber dropped", "session", h.session, "viewer", c.Viewer)
				}
			}

		case <-h.quit:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *Hub) viewerCount(viewer string) int {
	n := 0
	for c := range h.clients {
		if c.Viewer == viewer {
			n++
		}
	}
	return n
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.Send)
}

// Register 返回 false 表示 hub 已关闭
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister 返回同一 viewer 仍然在线的订阅数（hub 已关闭时为 0）
func (h *Hub) Unregister(c *Client) int {
	req := unregisterReq{client: c, left: make(chan int, 1)}
	select {
	case h.unregister <- req:
		return <-req.left
	case <-h.done:
		return 0
	}
}

// Publish 阻塞到 hub 取走事件为止，调用方的发布顺序即投递顺序
func (h *Hub) Publish(ev model.Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Close 关闭所有订阅者的 Send 并等待 Run 退出
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
	<-h.done
}
