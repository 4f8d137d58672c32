package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request to a websocket and streams hub events to it
// as JSON text frames until either side goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sub, err := h.Subscribe()
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.Unsubscribe(sub.ID)

	h.logger.Info("spirit medium connected", "subscriber", sub.ID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// client messages are logged and otherwise ignored
	go func() {
		defer cancel()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			h.logger.Debug("websocket message received", "subscriber", sub.ID, "bytes", len(data))
		}
	}()

	err = h.writeLoop(ctx, conn, sub)
	switch {
	case err == nil:
		conn.Close(websocket.StatusGoingAway, "hub closed")
	case errors.Is(err, context.Canceled), websocket.CloseStatus(err) != -1:
		conn.CloseNow()
	default:
		h.logger.Warn("websocket write failed", "subscriber", sub.ID, "error", err)
		conn.CloseNow()
	}
	h.logger.Info("spirit medium disconnected", "subscriber", sub.ID)
}

// writeLoop returns nil when the subscription channel is closed.
func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.C:
			if !ok {
				return nil
			}
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("encode event failed", "type", evt.Type, "error", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}
