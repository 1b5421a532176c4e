package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	clientBuffer   = 32
)

// ErrBacklogFull - очередь рассылки переполнена, событие отброшено
var ErrBacklogFull = errors.New("broadcast backlog is full")

// client - одно websocket-подключение со своим буфером отправки
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub рассылает каждое событие всем подключенным клиентам.
// Медленный клиент, у которого переполнился буфер, отключается.
type Hub struct {
	upgrader  websocket.Upgrader
	logger    *logrus.Logger
	broadcast chan []byte

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ service.EventSink = (*Hub)(nil)

// NewHub создает хаб. Пустой allowedOrigins разрешает любые источники.
func NewHub(logger *logrus.Logger, backlog int, allowedOrigins []string) *Hub {
	if backlog <= 0 {
		backlog = 256
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // не браузер
				}
				_, ok := origins[origin]
				return ok
			},
		},
		logger:    logger,
		broadcast: make(chan []byte, backlog),
		clients:   make(map[*client]struct{}),
	}
}

// Emit сериализует конверт и ставит его в очередь рассылки без ожидания
func (h *Hub) Emit(ctx context.Context, event models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return h.Deliver(payload)
}

// Deliver ставит готовое сообщение в очередь рассылки. Используется Relay.
func (h *Hub) Deliver(payload []byte) error {
	select {
	case h.broadcast <- payload:
		return nil
	default:
		return ErrBacklogFull
	}
}

// Run раздает сообщения клиентам до отмены контекста, затем закрывает все подключения
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting realtime hub...")
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			h.logger.Info("Stopping realtime hub.")
			return
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Клиент не успевает читать
			h.logger.WithField("remote", c.conn.RemoteAddr().String()).Warn("Dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS переводит HTTP-подключение в websocket и регистрирует клиента
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Error upgrading to WebSocket")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("total", total).Info("WebSocket client connected")

	go h.writePump(c)
	h.readPump(c)
}

// unregister удаляет клиента, если его еще не удалил fanOut или shutdown
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("total", total).Info("WebSocket client disconnected")
}

// readPump держит подключение живым и замечает отключение клиента.
// Входящие сообщения клиентов игнорируются.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.WithError(err).Debug("Error writing to WebSocket client")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
