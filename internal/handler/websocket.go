package handler

import (
	"net/http"
	"sync"
	"time"

	"medcom_capture/internal/domain"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 16
	writeWait    = 5 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // API слушает только localhost и закрыт токеном
	},
}

type wsClient struct {
	id   uuid.UUID
	send chan domain.ScanEvent
}

// EventHub рассылает события сканера всем подписчикам WebSocket.
type EventHub struct {
	log logger.Logger

	mu      sync.Mutex
	clients map[uuid.UUID]*wsClient
}

func NewEventHub(log logger.Logger) *EventHub {
	return &EventHub{
		log:     log,
		clients: make(map[uuid.UUID]*wsClient),
	}
}

// Broadcast не блокируется: медленный клиент теряет событие, а не тормозит сканер.
func (h *EventHub) Broadcast(ev domain.ScanEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		select {
		case client.send <- ev:
		default:
			h.log.Warn("WebSocket client is too slow, dropping event", "client_id", id, "event", ev.Type)
		}
	}
}

func (h *EventHub) register() *wsClient {
	client := &wsClient{id: uuid.New(), send: make(chan domain.ScanEvent, clientBuffer)}
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	return client
}

func (h *EventHub) unregister(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client.id)
	h.mu.Unlock()
}

func (h *EventHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) HandleEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	client := h.register()
	defer h.unregister(client)
	h.log.Info("Scanner events subscriber connected", "client_id", client.id)

	// Входящие сообщения не нужны, читаем только чтобы заметить закрытие
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			h.log.Info("Scanner events subscriber disconnected", "client_id", client.id)
			return
		case ev := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Error("Failed to write message", "error", err, "client_id", client.id)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
