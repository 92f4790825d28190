// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/VNScriptCreator/internal/models"
	"github.com/Corphon/VNScriptCreator/internal/utils"
)

// 推送消息类型
const (
	MessageConnected      = "connected"
	MessageProjectUpdated = "project_updated"
	MessageSessionClosed  = "session_closed"
)

const (
	writeWait       = 10 * time.Second
	pingPeriod      = 54 * time.Second
	pongWait        = 60 * time.Second
	cleanupInterval = 30 * time.Second
	sendBufferSize  = 32
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient 表示一个会话上的 WebSocket 连接
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	lastPing  atomic.Int64
	createdAt time.Time
}

// NewWebSocketClient 创建客户端
func NewWebSocketClient(conn WebSocketConnection, sessionID string) *WebSocketClient {
	client := &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	client.UpdatePing()
	return client
}

// Close 标记关闭；写协程负责发送关闭帧并关闭底层连接
func (client *WebSocketClient) Close() {
	client.closeOnce.Do(func() { close(client.done) })
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	select {
	case <-client.done:
		return true
	default:
		return false
	}
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// enqueue 非阻塞地放入发送队列，队列已满时返回 false
func (client *WebSocketClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

// writePump 把队列中的消息写到连接上，并定期发送 ping
func (client *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.Close()
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}

		case <-client.done:
			client.flush()
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush 关闭前写出仍在队列中的消息
func (client *WebSocketClient) flush() {
	for {
		select {
		case msg := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump 读取直到连接断开；客户端消息只用于保持连接
func (client *WebSocketClient) readPump() {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.UpdatePing()
	}
}

// ========================================
// WebSocketManager
// ========================================

// WebSocketManager 按会话管理 WebSocket 连接
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // sessionID -> clients
	mutex       sync.RWMutex
	pingTimeout time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWebSocketManager 创建管理器
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		pingTimeout: pongWait,
	}
}

// Start 启动定期清理循环
func (manager *WebSocketManager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	manager.cancel = cancel
	manager.done = make(chan struct{})
	go manager.run(ctx)
}

// Stop 关闭所有连接并等待循环退出
func (manager *WebSocketManager) Stop() {
	if manager.cancel == nil {
		return
	}
	manager.cancel()
	<-manager.done
	manager.cancel = nil
}

func (manager *WebSocketManager) run(ctx context.Context) {
	defer close(manager.done)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			manager.shutdown()
			return
		case <-ticker.C:
			manager.cleanupExpiredConnections()
		}
	}
}

// Register 注册新客户端
func (manager *WebSocketManager) Register(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}

	utils.GetLogger().Debug("WebSocket 客户端已连接", map[string]interface{}{"session_id": client.sessionID})
}

// Unregister 注销并关闭客户端
func (manager *WebSocketManager) Unregister(client *WebSocketClient) {
	manager.mutex.Lock()
	if connections, exists := manager.connections[client.sessionID]; exists {
		delete(connections, client)
		if len(connections) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}
	manager.mutex.Unlock()

	client.Close()
	utils.GetLogger().Debug("WebSocket 客户端已断开", map[string]interface{}{"session_id": client.sessionID})
}

// cleanupExpiredConnections 清理过期和已关闭的连接
func (manager *WebSocketManager) cleanupExpiredConnections() int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	removed := 0
	for sessionID, connections := range manager.connections {
		for client := range connections {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(connections, client)
				client.Close()
				removed++
			}
		}
		if len(connections) == 0 {
			delete(manager.connections, sessionID)
		}
	}
	return removed
}

// shutdown 关闭全部连接
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, connections := range manager.connections {
		for client := range connections {
			client.Close()
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
	utils.GetLogger().Info("WebSocket 管理器已关闭", nil)
}

// clients 返回会话下仍然打开的客户端
func (manager *WebSocketManager) clients(sessionID string) []*WebSocketClient {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	result := make([]*WebSocketClient, 0, len(manager.connections[sessionID]))
	for client := range manager.connections[sessionID] {
		if !client.IsClosed() {
			result = append(result, client)
		}
	}
	return result
}

// BroadcastToSession 向指定会话的所有连接推送消息；队列已满的连接会被断开
func (manager *WebSocketManager) BroadcastToSession(sessionID string, message map[string]interface{}) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		utils.GetLogger().Error("序列化推送消息失败", map[string]interface{}{"error": err})
		return
	}

	for _, client := range manager.clients(sessionID) {
		if !client.enqueue(msgBytes) {
			manager.Unregister(client)
		}
	}
}

// NotifyProjectUpdated 推送工作区概要
func (manager *WebSocketManager) NotifyProjectUpdated(sessionID string, summary models.ProjectSummary) {
	manager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":      MessageProjectUpdated,
		"summary":   summary,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// CloseSession 会话销毁时通知并断开该会话的所有连接
func (manager *WebSocketManager) CloseSession(sessionID string) {
	manager.BroadcastToSession(sessionID, map[string]interface{}{
		"type":      MessageSessionClosed,
		"timestamp": time.Now().Format(time.RFC3339),
	})

	manager.mutex.Lock()
	connections := manager.connections[sessionID]
	delete(manager.connections, sessionID)
	manager.mutex.Unlock()

	for client := range connections {
		client.Close()
	}
}

// ConnectionCount 会话上的连接数；sessionID 为空时返回总数
func (manager *WebSocketManager) ConnectionCount(sessionID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	if sessionID != "" {
		return len(manager.connections[sessionID])
	}
	total := 0
	for _, connections := range manager.connections {
		total += len(connections)
	}
	return total
}

// Serve 升级连接并阻塞到连接断开
func (manager *WebSocketManager) Serve(c *gin.Context, sessionID string, summary models.ProjectSummary) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket 升级失败", map[string]interface{}{"error": err})
		return
	}

	client := NewWebSocketClient(conn, sessionID)
	manager.Register(client)
	defer manager.Unregister(client)

	go client.writePump()

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":       MessageConnected,
		"session_id": sessionID,
		"summary":    summary,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
	client.enqueue(welcome)

	client.readPump()
}
