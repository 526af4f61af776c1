package changefeed

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler streams change events for a collection over a WebSocket.
type Handler struct {
	sub      Subscriber
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewHandler builds the realtime handler. checkOrigin may be nil to accept any
// origin.
func NewHandler(sub Subscriber, checkOrigin func(*http.Request) bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		sub:      sub,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// Stream handles GET /api/realtime/{collection}.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !IsCollection(collection) {
		respond.Error(w, http.StatusNotFound, "unknown collection")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("changefeed: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	events, cancel, err := h.sub.Subscribe(ctx, collection)
	if err != nil {
		h.logger.Error("changefeed: subscribe failed", "collection", collection, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer cancel()

	closed := ReadPump(conn)
	Pump(conn, closed, events, func(evt Event) any { return evt })
}

// ReadPump drains client frames so control messages are processed, and
// returns a channel closed when the peer goes away.
func ReadPump(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

// Pump writes render(evt) for every event and pings the peer until either side
// stops.
func Pump[T any](conn *websocket.Conn, closed <-chan struct{}, events <-chan T, render func(T) any) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(render(evt)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
