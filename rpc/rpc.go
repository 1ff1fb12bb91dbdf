package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/models"
	"github.com/wfunc/liargame/services"
)

// callTimeout bounds one admin call.
const callTimeout = 30 * time.Second

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer listens on addr and serves the admin methods of games.
func NewServer(addr string, games *services.GameService) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.Register(NewAdminService(games)); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      srv,
	}, nil
}

// Addr is the address actually listened on.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes session exports to operators. Methods follow the
// net/rpc signature: exported arguments, a pointer reply and an error.
type AdminService struct {
	games *services.GameService
}

func NewAdminService(games *services.GameService) *AdminService {
	return &AdminService{games: games}
}

type ExportArgs struct {
	SessionID string
}

// Event is an audit event with its payload as JSON, since gob cannot
// carry arbitrary interface values.
type Event struct {
	SessionID string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type ExportReply struct {
	Events []Event
}

type TranscriptReply struct {
	Messages []models.TranscriptMessage
}

type SessionArgs struct {
	SessionID string
	// Viewer defaults to the session's human.
	Viewer string
}

// SessionReply carries the session as presented to the viewer.
type SessionReply struct {
	View  game.View
	Phase string
	Need  string
}

// ExportEvents returns the audit trail of a session, oldest first.
func (a *AdminService) ExportEvents(args *ExportArgs, reply *ExportReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	events, err := a.games.Events(ctx, args.SessionID)
	if err != nil {
		return err
	}
	reply.Events = make([]Event, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		reply.Events = append(reply.Events, Event{
			SessionID: e.SessionID,
			Type:      e.Type,
			Payload:   payload,
			CreatedAt: e.CreatedAt,
		})
	}
	return nil
}

func (a *AdminService) Transcript(args *ExportArgs, reply *TranscriptReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	messages, err := a.games.Transcript(ctx, args.SessionID)
	if err != nil {
		return err
	}
	reply.Messages = messages
	return nil
}

func (a *AdminService) GetSession(args *SessionArgs, reply *SessionReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	res, err := a.games.View(ctx, args.SessionID, args.Viewer)
	if err != nil {
		return err
	}
	reply.View = res.View
	reply.Phase = res.View.Phase.String()
	reply.Need = res.Need
	return nil
}
