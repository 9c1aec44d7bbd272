package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/cadenza-player/cadenza/internal/app/audio"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 10 * time.Second

// handleWebSocket streams state snapshots to the client. The current
// snapshot is sent on connect, then one message per state change. Slow
// clients skip intermediate snapshots rather than stalling the feed.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := make(chan audio.State, 1)
	unsubscribe := s.svc.OnStateChange(func(st audio.State) {
		// Keep only the latest snapshot when the writer lags.
		for {
			select {
			case updates <- st:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeState(conn, s.svc.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case st := <-updates:
			if err := writeState(conn, st); err != nil {
				zlog.Debug().Err(err).Msg("websocket client dropped")
				return
			}
		case <-done:
			return
		}
	}
}

func writeState(conn *websocket.Conn, st audio.State) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(st)
}
