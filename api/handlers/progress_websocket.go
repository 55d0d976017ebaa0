package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/hfcache-go/internal/app"
	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/internal/infrastructure"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	pollInterval = time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressWebSocketHandler pushes download records to a websocket client
// until the download finishes
type ProgressWebSocketHandler struct {
	downloadMgr *app.DownloadManager
	events      *infrastructure.Broadcaster
	logger      *zap.Logger
}

// NewProgressWebSocketHandler creates a new websocket handler
func NewProgressWebSocketHandler(downloadMgr *app.DownloadManager, events *infrastructure.Broadcaster, log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		downloadMgr: downloadMgr,
		events:      events,
		logger:      log,
	}
}

// HandleWebSocket handles GET /api/cache/download/:id/ws
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")

	// Unknown ids fail before the upgrade so the client gets a JSON 404
	if _, err := h.downloadMgr.Get(id); err != nil {
		respondError(c, err)
		return
	}

	// Subscribe before reading the current record so no update is missed
	// between the two
	updates := h.events.Subscribe()
	defer h.events.Unsubscribe(updates)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("Progress WebSocket client connected",
		zap.String("id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	current, err := h.downloadMgr.Get(id)
	if err != nil {
		h.closeWith(conn, websocket.CloseNormalClosure, domain.ErrorMessage(err))
		return
	}
	if !h.send(conn, current) {
		return
	}
	if current.IsTerminal() {
		h.closeWith(conn, websocket.CloseNormalClosure, string(current.Status))
		return
	}

	// Drain client frames so close and pong messages are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	// The broadcaster drops updates for slow subscribers, so the terminal
	// record is also picked up by polling
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case download, ok := <-updates:
			if !ok {
				return
			}
			if download.ID != id {
				continue
			}
			if !h.send(conn, download) {
				return
			}
			if download.IsTerminal() {
				h.closeWith(conn, websocket.CloseNormalClosure, string(download.Status))
				return
			}

		case <-poll.C:
			latest, err := h.downloadMgr.Get(id)
			if err != nil {
				h.closeWith(conn, websocket.CloseNormalClosure, domain.ErrorMessage(err))
				return
			}
			if latest.IsTerminal() {
				if h.send(conn, latest) {
					h.closeWith(conn, websocket.CloseNormalClosure, string(latest.Status))
				}
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}

		case <-done:
			return

		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *ProgressWebSocketHandler) send(conn *websocket.Conn, download *domain.Download) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(download); err != nil {
		h.logger.Debug("Failed to send progress update", zap.String("id", download.ID), zap.Error(err))
		return false
	}
	return true
}

func (h *ProgressWebSocketHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
