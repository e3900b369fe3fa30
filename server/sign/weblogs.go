package serversign

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robert-nix/ansihtml"
)

// every open page gets its own subscription to the log broadcaster
// logs are fine to be lost while a page is not connected, the terminal still
// has all of them

const (
	logBuffer  = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// only same host pages may watch
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
}

func (h *signHandler) loggingWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		http.Error(w, "log streaming is not enabled", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Info("Could not upgrade")
		return
	}

	id, entries := h.broadcaster.Subscribe(logBuffer)
	done := make(chan struct{})
	go h.readPump(conn, done)
	go func() {
		defer h.broadcaster.Unsubscribe(id)
		h.writePump(conn, entries, done)
	}()
}

// the page never sends anything, reading only notices the close
func (h *signHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				h.logger.WithError(err).Info("Log websocket closed")
			}
			return
		}
	}
}

func (h *signHandler) writePump(conn *websocket.Conn, entries <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case entry, ok := <-entries:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			formattedLog := ansihtml.ConvertToHTML(entry)
			if err := conn.WriteMessage(websocket.TextMessage, formattedLog); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
