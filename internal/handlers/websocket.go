package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/services/events"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsCloseWait  = time.Second
)

// wsSubscriber adapts one websocket connection to events.Subscriber.
// gorilla connections allow a single concurrent writer, so writes share mu.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{
		id:     uuid.New().String(),
		conn:   conn,
		closed: make(chan struct{}),
	}
}

func (s *wsSubscriber) ID() string {
	return s.id
}

func (s *wsSubscriber) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Time{})
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSubscriber) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsCloseWait))
}

// Close is safe to call more than once and from any goroutine
func (s *wsSubscriber) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsCloseWait))
		err = s.conn.Close()
	})
	return err
}

// WebSocketHandler upgrades /ws connections and registers them with the hub.
// Clients only listen; inbound messages are read and discarded.
type WebSocketHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	origins  map[string]struct{}
	logger   arbor.ILogger
}

// NewWebSocketHandler accepts every origin when allowedOrigins is empty
func NewWebSocketHandler(hub *events.Hub, allowedOrigins []string, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:     hub,
		origins: make(map[string]struct{}, len(allowedOrigins)),
		logger:  logger,
	}
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/"); o != "" {
			h.origins[o] = struct{}{}
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	_, ok := h.origins[strings.ToLower(u.Scheme+"://"+u.Host)]
	if !ok {
		h.logger.Warn().Str("origin", origin).Msg("Rejected WebSocket origin")
	}
	return ok
}

// HandleWebSocket serves GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	sub := newWSSubscriber(conn)
	h.hub.Register(sub)

	defer func() {
		h.hub.Unregister(sub)
		sub.Close()
	}()

	go h.keepAlive(sub)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Str("subscriber", sub.ID()).Msg("WebSocket error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

func (h *WebSocketHandler) keepAlive(sub *wsSubscriber) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sub.closed:
			return
		case <-ticker.C:
			if err := sub.ping(); err != nil {
				sub.Close()
				return
			}
		}
	}
}
