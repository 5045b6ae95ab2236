package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"voting-platform/internal/middleware"
	"voting-platform/internal/realtime"
	"voting-platform/internal/service"
	"voting-platform/pkg/errors"
	"voting-platform/pkg/logger"
)

const readWait = 60 * time.Second

// WSHandler upgrades authenticated clients to the poll update stream
type WSHandler struct {
	auth     service.AuthService
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

func NewWSHandler(auth service.AuthService, hub *realtime.Hub, allowedOrigins []string, logger *logger.Logger) *WSHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WSHandler{
		auth: auth,
		hub:  hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
			},
		},
		logger: logger,
	}
}

// Connect handles GET /api/ws?token=
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.WriteError(w, r, errors.NewAuthenticationError("Token is required"), h.logger)
		return
	}

	identity, err := h.auth.ValidateToken(r.Context(), token)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	client := realtime.NewClient(conn, identity.UserID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	// clients only listen; reads keep the deadline fresh and detect disconnects
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
	}

	h.hub.Unregister(client)
}
