package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bnema/captioner/internal/domain"
	"github.com/bnema/captioner/internal/infrastructure/logger"
	"github.com/bnema/captioner/internal/service"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// wsMessage is one frame of the JSON update stream. The first frame is a
// snapshot with every segment; later frames carry the changed segment, if any.
type wsMessage struct {
	Type     string            `json:"type"`
	Session  *domain.Session   `json:"session"`
	Segments []*domain.Segment `json:"segments,omitempty"`
	Segment  *domain.Segment   `json:"segment,omitempty"`
}

// WSHandler streams session updates as JSON to API clients that prefer a
// websocket over SSE. The stream closes normally once the session is terminal.
type WSHandler struct {
	eventBus   *service.EventBus
	pipeline   Pipeline
	upgrader   websocket.Upgrader
	pingPeriod time.Duration
}

func NewWSHandler(eventBus *service.EventBus, pipeline Pipeline) *WSHandler {
	return &WSHandler{
		eventBus:   eventBus,
		pipeline:   pipeline,
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		pingPeriod: wsPongWait * 9 / 10,
	}
}

func (h *WSHandler) Stream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ctx := r.Context()

		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		sess, err := h.pipeline.Session(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}
		segs, err := h.pipeline.Segments(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn.Printf("websocket upgrade failed for session %s: %v", id, err)
			return
		}
		defer conn.Close() //nolint:errcheck

		closed := make(chan struct{})
		go readPump(conn, closed)

		if err := writeFrame(conn, wsMessage{Type: "snapshot", Session: sess, Segments: segs}); err != nil {
			return
		}
		if sess.IsTerminal() {
			closeStream(conn, closed, websocket.CloseNormalClosure, "session finished")
			return
		}

		ping := time.NewTicker(h.pingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				closeStream(conn, closed, websocket.CloseGoingAway, "server shutting down")
				return
			case <-closed:
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			case u, ok := <-ch:
				if !ok {
					return
				}
				if err := writeFrame(conn, wsMessage{Type: "update", Session: u.Session, Segment: u.Segment}); err != nil {
					logger.Debug.Printf("websocket write for session %s: %v", id, err)
					return
				}
				if u.Session != nil && u.Session.IsTerminal() {
					closeStream(conn, closed, websocket.CloseNormalClosure, "session finished")
					return
				}
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg wsMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

// readPump discards client frames and keeps the read deadline alive on pongs.
// closed is closed once the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug.Printf("websocket read: %v", err)
			}
			return
		}
	}
}

// closeStream sends a close frame and waits briefly for the peer to answer.
func closeStream(conn *websocket.Conn, closed <-chan struct{}, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait)); err != nil {
		return
	}
	select {
	case <-closed:
	case <-time.After(wsWriteWait):
	}
}
