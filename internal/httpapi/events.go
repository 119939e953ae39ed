package httpapi

import (
	"context"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/park285/chessbattle/internal/adapter/chesspresenter"
	"github.com/park285/chessbattle/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	eventWriteTimeout = 5 * time.Second
	pingTimeout       = 3 * time.Second
	// EventSnapshot is the first message on a stream when a game exists.
	EventSnapshot = "snapshot"
)

// events upgrades to a websocket and streams the player's events until the
// client goes away. The stream is write-only; client frames are discarded.
func (s *Server) events(c *gin.Context) {
	meta := metaFrom(c)
	conn, err := websocket.Accept(c.Writer, c.Request, s.acceptOptions())
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ch, unsubscribe := s.chess.Subscribe(meta)
	defer unsubscribe()

	ctx := conn.CloseRead(c.Request.Context())

	if state, err := s.chess.Status(ctx, meta); err == nil {
		snapshot := chessdto.Event{
			Type:        EventSnapshot,
			SessionUUID: state.SessionUUID,
			State:       chesspresenter.ToDTOState(state),
			At:          time.Now(),
		}
		if err := s.writeEvent(ctx, conn, snapshot); err != nil {
			return
		}
	}

	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := s.writeEvent(ctx, conn, s.presenter.Event(ev)); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				failures++
				if failures >= 2 {
					conn.Close(websocket.StatusGoingAway, "ping failure")
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev chessdto.Event) error {
	wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, ev)
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{CompressionMode: websocket.CompressionNoContextTakeover}
	for _, origin := range s.opts.CORSOrigins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
		} else {
			opts.OriginPatterns = append(opts.OriginPatterns, origin)
		}
	}
	return opts
}
