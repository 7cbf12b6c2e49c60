package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
)

// WSHandler streams score events over a websocket. With a username query
// parameter the feed is filtered to that user; without it every event is
// forwarded.
type WSHandler struct {
	feed     app.ScoreFeed
	upgrader websocket.Upgrader
}

func NewWSHandler(feed app.ScoreFeed) *WSHandler {
	return &WSHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string            `json:"type"`
	Payload domain.ScoreEvent `json:"payload"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel, err := h.feed.Subscribe(r.Context())
	if err != nil {
		log.Printf("ws subscribe failed: %v", err)
		return
	}
	defer cancel()

	// Drain the read side so close frames are processed; inbound payloads
	// are ignored.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if username != "" && ev.Username != username {
				continue
			}
			if err := conn.WriteJSON(outboundMessage{Type: "score", Payload: ev}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
