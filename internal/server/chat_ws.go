package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 120 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleChatWS serves multi-turn chat over one websocket connection.
// The client sends a chatRequest frame per turn; the server answers with
// the turn's event stream, then waits for the next request. A single
// writer goroutine serializes all writes, including keepalive pings.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan stream.Event, s.streamBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("websocket closed")
			}
			break
		}
		if err := req.validate(); err != nil {
			if !s.pushWS(ctx, writeCh, writerDone, stream.Error(err.Error())) {
				break
			}
			continue
		}
		req.ensureSession()

		if !s.runTurnWS(ctx, &req, writeCh, writerDone) {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	}

	cancel()
	<-writerDone
}

// runTurnWS streams one turn's events into the writer channel. It
// reports false once the connection is unusable.
func (s *Server) runTurnWS(ctx context.Context, req *chatRequest, writeCh chan stream.Event, writerDone <-chan struct{}) bool {
	em := stream.NewChannelEmitter(s.streamBuffer)
	turnCtx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()

	go func() {
		defer em.Close()
		if _, err := s.conversation.Converse(turnCtx, req.turnInput(), em); err != nil {
			s.log.Debug().Err(err).Str("session_id", req.SessionID).Msg("turn ended with error")
		}
	}()

	for ev := range em.Events() {
		if !s.pushWS(ctx, writeCh, writerDone, ev) {
			return false
		}
	}
	return true
}

func (s *Server) pushWS(ctx context.Context, writeCh chan stream.Event, writerDone <-chan struct{}, ev stream.Event) bool {
	select {
	case writeCh <- ev:
		return true
	case <-writerDone:
		return false
	case <-ctx.Done():
		return false
	}
}
