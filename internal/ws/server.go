// Package ws carries client intents and server events over gorilla/websocket.
// Each accepted connection gets an opaque uuid identity that the coordinator
// uses as the session key.
package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"chronicle-chat/backend/internal/chat"
	"chronicle-chat/backend/pkg/config"
	"chronicle-chat/backend/pkg/logger"
)

// Server upgrades HTTP requests into chat connections.
type Server struct {
	coord    *chat.Coordinator
	log      *logger.Logger
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// NewServer builds the upgrade handler. Origins are checked against the
// configured allow list; "*" disables the check.
func NewServer(coord *chat.Coordinator, log *logger.Logger, cfg *config.Config) *Server {
	allowAll := lo.Contains(cfg.Security.AllowedOrigins, "*")

	return &Server{
		coord: coord,
		log:   log,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || lo.Contains(cfg.Security.AllowedOrigins, origin)
			},
		},
	}
}

// Handle upgrades the request, registers the connection with the
// coordinator, and starts the pumps.
func (s *Server) Handle(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err.Error(), "remote", c.Request.RemoteAddr)
		return
	}

	connID := uuid.New().String()
	client := &Client{
		id:      connID,
		conn:    conn,
		send:    make(chan chat.Event, s.cfg.Chat.SendBufferSize),
		coord:   s.coord,
		log:     s.log.WithConnID(connID),
		limiter: rate.NewLimiter(rate.Limit(s.cfg.Security.RateLimit), s.cfg.Security.RateLimitBurst),
	}

	s.coord.Connect(connID, client)

	go client.WritePump()
	go client.ReadPump()
}
