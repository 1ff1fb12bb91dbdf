package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/network"
	"github.com/wfunc/liargame/services"
)

// requestTimeout bounds one websocket request, generator calls included.
const requestTimeout = 2 * time.Minute

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(HeartbeatInterval)
	connID := uuid.NewString()

	logger.Log.Infof("New connection from %s, connection ID: %s", wsConn.RemoteAddr(), connID)

	done := make(chan struct{})
	defer func() {
		close(done)
		logger.Log.Infof("Connection closed from %s, connection ID: %s", wsConn.RemoteAddr(), connID)
		s.hub.Unsubscribe(wsConn)
		wsConn.Close()
	}()

	// Unblock ReadPacket on shutdown.
	go func() {
		select {
		case <-s.shutdownChan:
			_ = wsConn.SendClose()
			wsConn.Close()
		case <-done:
		}
	}()

	for {
		packet, err := wsConn.ReadPacket()
		if err != nil {
			return
		}
		s.handlePacket(wsConn, packet)
	}
}

func (s *GameServer) handlePacket(conn *network.WSConnection, packet *network.Packet) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var err error
	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		err = conn.Send(network.MsgTypeHeartbeat, nil)
	case network.MsgTypeStartRound:
		err = s.handleStartPacket(ctx, conn, packet)
	case network.MsgTypeWatch:
		err = s.handleWatchPacket(conn, packet)
	case network.MsgTypeStep:
		err = s.handleStepPacket(ctx, conn, packet)
	case network.MsgTypeView:
		err = s.handleViewPacket(ctx, conn, packet)
	default:
		err = fmt.Errorf("%w: unknown message type %d", services.ErrInvalidAction, packet.MsgID)
	}
	if err != nil {
		s.sendError(conn, packet.MsgID, err)
	}
}

// handleStartPacket starts a round and makes the connection watch it.
func (s *GameServer) handleStartPacket(ctx context.Context, conn *network.WSConnection, packet *network.Packet) error {
	var req services.StartRequest
	if err := decodePacket(packet, &req); err != nil {
		return err
	}
	res, err := s.games.StartRound(ctx, req)
	if err != nil {
		return err
	}
	s.hub.Subscribe(res.SessionID, conn)
	return sendJSON(conn, network.MsgTypeView, res)
}

func (s *GameServer) handleWatchPacket(conn *network.WSConnection, packet *network.Packet) error {
	var req network.WatchRequest
	if err := decodePacket(packet, &req); err != nil {
		return err
	}
	if req.SessionID == "" {
		return fmt.Errorf("%w: missing sessionId", services.ErrInvalidAction)
	}
	s.hub.Subscribe(req.SessionID, conn)
	return nil
}

// handleStepPacket replies with the step's result. Watchers, this
// connection included, also receive the messages through the hub.
func (s *GameServer) handleStepPacket(ctx context.Context, conn *network.WSConnection, packet *network.Packet) error {
	var req services.StepRequest
	if err := decodePacket(packet, &req); err != nil {
		return err
	}
	res, err := s.games.Step(ctx, req)
	if err != nil {
		return err
	}
	return sendJSON(conn, network.MsgTypeView, res)
}

func (s *GameServer) handleViewPacket(ctx context.Context, conn *network.WSConnection, packet *network.Packet) error {
	var req network.ViewRequest
	if err := decodePacket(packet, &req); err != nil {
		return err
	}
	res, err := s.games.View(ctx, req.SessionID, req.Viewer)
	if err != nil {
		return err
	}
	return sendJSON(conn, network.MsgTypeView, res)
}

func (s *GameServer) sendError(conn *network.WSConnection, inReplyTo uint16, err error) {
	logger.Log.Infof("Request %d from %s failed: %v", inReplyTo, conn.RemoteAddr(), err)
	_, msg := publicError(err)
	body := network.ErrorBody{OK: false, Error: msg, InReplyTo: inReplyTo}
	if sendErr := sendJSON(conn, network.MsgTypeError, body); sendErr != nil {
		logger.Log.Warnf("Send error to %s: %v", conn.RemoteAddr(), sendErr)
	}
}

func decodePacket(packet *network.Packet, v any) error {
	if err := json.Unmarshal(packet.Data, v); err != nil {
		return fmt.Errorf("%w: decode packet: %v", services.ErrInvalidAction, err)
	}
	return nil
}

func sendJSON(conn *network.WSConnection, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Send(msgID, data)
}
