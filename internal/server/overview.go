package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardkiosk/internal/models"
)

const (
	overviewPushInterval = 60 * time.Second
	overviewWriteTimeout = 5 * time.Second

	messageSnapshot   = "snapshot"
	messageTransition = "transition"
)

var overviewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type overviewMessage struct {
	Type        string               `json:"type"`
	GeneratedAt time.Time            `json:"generated_at"`
	Boards      []models.BoardStatus `json:"boards,omitempty"`
	Transition  *models.Transition   `json:"transition,omitempty"`
}

func (s *Server) handleOverviewWS(w http.ResponseWriter, r *http.Request) {
	conn, err := overviewUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveOverviewConnection(conn)
}

func (s *Server) serveOverviewConnection(conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	events := s.mergeTransitions(done)
	defer close(done)

	if err := writeOverviewPayload(conn, s.snapshotMessage()); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			msg := overviewMessage{
				Type:        messageTransition,
				GeneratedAt: s.now(),
				Boards:      s.snapshot(),
				Transition:  &event,
			}
			if err := writeOverviewPayload(conn, msg); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := writeOverviewPayload(conn, s.snapshotMessage()); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// mergeTransitions subscribes to every board and fans the transitions into one channel
// until done is closed.
func (s *Server) mergeTransitions(done <-chan struct{}) <-chan models.Transition {
	out := make(chan models.Transition)
	for _, b := range s.boards {
		ch, release := b.Supervisor.Subscribe()
		go func() {
			defer release()
			for {
				select {
				case <-done:
					return
				case event, ok := <-ch:
					if !ok {
						return
					}
					select {
					case out <- event:
					case <-done:
						return
					}
				}
			}
		}()
	}
	return out
}

func (s *Server) snapshotMessage() overviewMessage {
	return overviewMessage{
		Type:        messageSnapshot,
		GeneratedAt: s.now(),
		Boards:      s.snapshot(),
	}
}

func writeOverviewPayload(conn *websocket.Conn, payload overviewMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(overviewWriteTimeout))
	return conn.WriteJSON(payload)
}
