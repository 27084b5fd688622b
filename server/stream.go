package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/session"
)

// EncodeSSE writes ev as one server-sent event. Sequenced events carry their
// seq as the event id.
func EncodeSSE(w io.Writer, ev core.Event) error {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if ev.Seq > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", ev.Seq); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind(), data)
	return err
}

// Frame is the JSON message sent over the WebSocket stream.
type Frame struct {
	Type core.EventKind  `json:"type"`
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data"`
}

// NewFrame wraps ev for the WebSocket stream.
func NewFrame(ev core.Event) (Frame, error) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encode event: %w", err)
	}
	return Frame{Type: ev.Kind(), Seq: ev.Seq, Data: data}, nil
}

// Event decodes the frame back into an event.
func (f Frame) Event() (core.Event, error) {
	p, err := core.DecodePayload(f.Type, f.Data)
	if err != nil {
		return core.Event{}, err
	}
	return core.Event{Seq: f.Seq, Payload: p}, nil
}

// drained returns the events still queued in sink without blocking.
func drained(sink *session.Sink) []core.Event {
	var out []core.Event
	for {
		select {
		case ev, ok := <-sink.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, msgStreamFailure, http.StatusInternalServerError)
		return
	}

	sink := st.Subscribe()
	defer st.Unsubscribe(sink)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := EncodeSSE(w, core.NewStatusEvent(core.StatusConnected)); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(s.opts.Keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sink.Events():
			if !ok {
				return
			}
			if err := EncodeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
			keepalive.Reset(s.opts.Keepalive)
		case <-keepalive.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-st.Done():
			for _, ev := range drained(sink) {
				if err := EncodeSSE(w, ev); err != nil {
					return
				}
			}
			flusher.Flush()
			s.logSinkDrops(st, sink)
			return
		}
	}
}

const wsWriteWait = 10 * time.Second

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	st, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "simulation_id", st.ID(), "error", err)
		return
	}
	defer conn.Close()

	sink := st.Subscribe()
	defer st.Unsubscribe(sink)

	// The read loop only notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev core.Event) error {
		frame, err := NewFrame(ev)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(frame)
	}

	if err := send(core.NewStatusEvent(core.StatusConnected)); err != nil {
		return
	}

	keepalive := time.NewTicker(s.opts.Keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-sink.Events():
			if !ok {
				return
			}
			if err := send(ev); err != nil {
				return
			}
		case <-keepalive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-st.Done():
			for _, ev := range drained(sink) {
				if err := send(ev); err != nil {
					return
				}
			}
			s.logSinkDrops(st, sink)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulation complete")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (s *Server) logSinkDrops(st *session.State, sink *session.Sink) {
	if n := sink.Dropped(); n > 0 {
		s.logger.Warn("subscriber dropped events", "simulation_id", st.ID(), "dropped", n)
	}
}
