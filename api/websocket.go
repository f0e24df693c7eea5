package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-desk-go/logs"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域由外层 CORS 中间件负责
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub 维护活跃的 WebSocket 连接并向全部客户端广播事件。
type Hub struct {
	log logs.Logger

	mu      sync.RWMutex
	clients map[*wsClient]bool

	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	stopChan   chan struct{}
	doneChan   chan struct{}

	onCount func(n int) // 连接数变化回调（指标用）
}

func NewHub(log logs.Logger) *Hub {
	if log == nil {
		log = logs.DefaultLogger
	}
	return &Hub{
		log:        log,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// SetCountCallback 注册连接数变化回调。
func (h *Hub) SetCountCallback(fn func(n int)) {
	h.mu.Lock()
	h.onCount = fn
	h.mu.Unlock()
}

// Run 主循环；Stop 之前一直运行。
func (h *Hub) Run() {
	defer close(h.doneChan)
	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			cb := h.onCount
			h.mu.Unlock()
			if cb != nil {
				cb(n)
			}
			h.log.Info("ws client connected", "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			n := len(h.clients)
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				n = len(h.clients)
			}
			cb := h.onCount
			h.mu.Unlock()
			if cb != nil {
				cb(n)
			}
			h.log.Info("ws client disconnected", "total", n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// 发送缓冲满，断开该客户端
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop 停止主循环并断开所有客户端。
func (h *Hub) Stop() {
	close(h.stopChan)
	<-h.doneChan
}

// Publish 向全部客户端广播一条事件。
func (h *Hub) Publish(eventType string, data interface{}) {
	msg, err := json.Marshal(Event{
		Type: eventType,
		Data: data,
		Ts:   time.Now().UnixMilli(),
	})
	if err != nil {
		h.log.Error("ws marshal failed", "type", eventType, "err", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// 广播队列满，丢弃事件（前端可通过 REST 重新拉取快照）
	}
}

// wsClient 单个 WebSocket 连接。
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS 处理 /ws 升级请求。
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws upgrade failed", "err", err)
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump 只消费控制帧；收到任何错误即注销。
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
