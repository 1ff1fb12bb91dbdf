package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wfunc/liargame/broadcast"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/services"
)

// HeartbeatInterval is how often clients are expected to send
// MsgTypeHeartbeat. A connection silent for two intervals is dropped.
const HeartbeatInterval = 30 * time.Second

type GameServer struct {
	addr         string
	upgrader     websocket.Upgrader
	games        *services.GameService
	hub          *broadcast.Hub
	router       *mux.Router
	httpServer   *http.Server
	mutex        sync.Mutex
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

func NewGameServer(addr string, games *services.GameService, hub *broadcast.Hub) *GameServer {
	s := &GameServer{
		addr:         addr,
		games:        games,
		hub:          hub,
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}
	s.router = s.routes()
	return s
}

// Handler is the full HTTP surface, websocket included.
func (s *GameServer) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *GameServer) Start() error {
	s.mutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mutex.Unlock()

	logger.Log.Infof("Game server listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes open websocket connections and stops the HTTP server,
// waiting for in-flight requests until ctx is done.
func (s *GameServer) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	s.mutex.Lock()
	srv := s.httpServer
	s.mutex.Unlock()
	if srv == nil {
		return nil
	}
	logger.Log.Info("Stopping game server.")
	return srv.Shutdown(ctx)
}
