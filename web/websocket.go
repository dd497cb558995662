package web

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"footdata-service/models"
)

// WSMessage WebSocket消息结构
type WSMessage struct {
	Type      string      `json:"type"` // match_update / sync_progress
	MatchID   int64       `json:"match_id,omitempty"`
	LeagueID  int         `json:"league_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// Client WebSocket客户端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex   // 保护 leagueIDs：readPump 写入，Hub 广播循环读取
	leagueIDs map[int]bool // 联赛过滤器
}

// Hub WebSocket Hub
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WSMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub 创建新的Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Client registered. Total clients: %d", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("Client unregistered. Total clients: %d", len(h.clients))

		case message := <-h.broadcast:
			data := h.marshalMessage(message)
			h.mu.RLock()
			for client := range h.clients {
				if !client.shouldReceive(message) {
					continue
				}

				select {
				case client.send <- data:
				default:
					h.mu.RUnlock()
					h.mu.Lock()
					close(client.send)
					delete(h.clients, client)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NotifyMatchUpdate 实现 services.MatchNotifier，推送比赛更新
func (h *Hub) NotifyMatchUpdate(match models.Match) {
	h.broadcast <- &WSMessage{
		Type:      "match_update",
		MatchID:   match.ID,
		LeagueID:  match.LeagueID,
		Data:      match,
		Timestamp: time.Now().Unix(),
	}
}

// BroadcastProgress 推送同步进度
func (h *Hub) BroadcastProgress(data interface{}) {
	h.broadcast <- &WSMessage{
		Type:      "sync_progress",
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// marshalMessage 序列化消息
func (h *Hub) marshalMessage(message *WSMessage) []byte {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return []byte("{}")
	}
	return data
}

// shouldReceive 检查客户端是否应该接收消息
func (c *Client) shouldReceive(message *WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 未设置过滤器时接收所有消息
	if len(c.leagueIDs) == 0 {
		return true
	}
	if message.LeagueID == 0 {
		return true // 非比赛消息不过滤
	}
	return c.leagueIDs[message.LeagueID]
}

// readPump 读取客户端消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump 向客户端写入消息
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleMessage 处理客户端发送的消息（订阅联赛过滤器）
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type      string `json:"type"`
		LeagueIDs []int  `json:"league_ids"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Failed to unmarshal client message: %v", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		filter := make(map[int]bool, len(msg.LeagueIDs))
		for _, id := range msg.LeagueIDs {
			filter[id] = true
		}
		c.mu.Lock()
		c.leagueIDs = filter
		c.mu.Unlock()
		log.Printf("Client subscribed to leagues: %v", msg.LeagueIDs)

	case "unsubscribe":
		c.mu.Lock()
		c.leagueIDs = nil
		c.mu.Unlock()
		log.Println("Client unsubscribed")
	}
}
