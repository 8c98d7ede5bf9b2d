package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"talentflow/internal/common"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	joinTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

type joinMessage struct {
	Action   string    `json:"action"`
	TenantID uuid.UUID `json:"tenant_id"`
}

// WSHandler upgrades clients onto the realtime channel. The client must
// send a join message naming its tenant before any events flow.
type WSHandler struct {
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, log *zap.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws.
func (h *WSHandler) Serve(c echo.Context) error {
	authTenantID, ok := common.GetTenantIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(joinTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	var join joinMessage
	if err := json.Unmarshal(raw, &join); err != nil || join.Action != "join" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected join message"),
			time.Now().Add(writeTimeout))
		return nil
	}

	session, err := h.hub.Subscribe(authTenantID, join.TenantID, uuid.NewString())
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "cannot join channel"),
			time.Now().Add(writeTimeout))
		return nil
	}
	defer h.hub.Unsubscribe(session)

	h.log.Debug("realtime session joined",
		zap.String("session_id", session.ID),
		zap.String("tenant_id", join.TenantID.String()),
	)

	go h.writePump(conn, session)
	h.readPump(conn)
	return nil
}

func (h *WSHandler) writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-session.Receive():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	// Clients only talk during the join handshake; the read loop exists to
	// notice pongs and disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
