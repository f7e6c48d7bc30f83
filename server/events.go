package server

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/lockwatch/lockdash/surface"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// streamEvents upgrades to a WebSocket, sends the current state of every
// surface and then forwards board events until either side goes away.
func (s *Server) streamEvents(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Upgrading to websocket")
		return nil
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	ctx := c.Request().Context()
	s.streams.Add(ctx, 1)
	defer s.streams.Add(context.WithoutCancel(ctx), -1)

	log := s.logger.WithFields(map[string]any{"request_id": requestID(c)})
	log.Debug().Msg("Event stream opened")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, snap := range s.hub.Snapshots() {
		if err := writeEvent(conn, snapshotEvent(snap)); err != nil {
			return nil
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Debug().Msg("Event stream closed by client")
			return nil
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return nil
		case <-ctx.Done():
			return nil
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(conn, ev); err != nil {
				log.Debug().Err(err).Msg("Event stream write failed")
				return nil
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev surface.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func snapshotEvent(snap surface.Snapshot) surface.Event {
	return surface.Event{
		Type:     surface.EventSurface,
		Surface:  snap.ID,
		HTML:     snap.HTML,
		Version:  snap.Version,
		Controls: snap.Controls,
	}
}
