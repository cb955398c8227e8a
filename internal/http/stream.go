package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is token-authenticated; origin checks add nothing here.
	CheckOrigin: func(*stdhttp.Request) bool { return true },
}

// streamHandler upgrades the connection and forwards live notification
// payloads until the client disconnects. Browsers cannot set headers on
// websocket dials, so the token also rides in the query string.
func (s *Server) streamHandler(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	user, err := s.auth.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		stdhttp.Error(w, "authentication required", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.recordError(r.Context(), err, "upgrading notification stream", logrus.Fields{"user": user.Username})
		return
	}
	defer conn.Close()

	payloads, unsubscribe := s.hub.Subscribe(user.ID)
	defer unsubscribe()

	// Reads are discarded; the read pump only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case payload, ok := <-payloads:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
