package rpc

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skalenetwork/portal-sub000/portal/models"
)

const (
	streamBuffer     = 64
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 54 * time.Second
	streamMaxMessage = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

// stream pushes progress events as JSON text frames. With ?address= only events of that
// address are sent. Clients never send anything but control frames.
func (a *api) stream(w http.ResponseWriter, r *http.Request) {
	if a.svc.Bus == nil {
		writeError(w, http.StatusNotFound, "progress stream is not configured")
		return
	}
	// subscribed before the handshake completes, so nothing emitted after it is missed
	events, unsubscribe := a.svc.Bus.Subscribe(streamBuffer)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		Logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	address := r.URL.Query().Get("address")

	streamClients.Inc()
	defer streamClients.Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(streamMaxMessage)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					Logger.Debug().Err(err).Msg("Websocket closed unexpectedly")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-a.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if !matches(e, address) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				Logger.Debug().Err(err).Msg("Failed to write progress event")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func matches(e models.ProgressEvent, address string) bool {
	return address == "" || strings.EqualFold(e.Address, address)
}
