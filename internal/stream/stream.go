// Package stream broadcasts render snapshots to websocket viewers.
//
// A Hub observes the shared model. Every published snapshot is encoded
// once and handed to each subscriber's single-slot outbox; a slow viewer
// only ever sees the newest frame and never stalls the worker.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/san-kum/atomsim/internal/model"
	"github.com/san-kum/atomsim/internal/render"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 2 * time.Second
)

// Frame is the wire form of a snapshot.
type Frame struct {
	Type      string       `json:"type"`
	Time      float64      `json:"time"`
	Timestep  int64        `json:"timestep"`
	Positions [][3]float32 `json:"positions"`
	Types     []int        `json:"types"`
	Colors    []string     `json:"colors"`
	Scales    []float32    `json:"scales"`
}

func NewFrame(s *render.Snapshot) Frame {
	f := Frame{
		Type:      "snapshot",
		Positions: make([][3]float32, s.Len()),
		Types:     make([]int, s.Len()),
		Colors:    make([]string, s.Len()),
		Scales:    make([]float32, s.Len()),
	}
	if s == nil {
		return f
	}
	f.Time, f.Timestep = s.Time, s.Timestep
	for i := range s.Positions {
		f.Positions[i] = s.Positions[i]
		f.Types[i] = s.TypeIDs[i]
		f.Colors[i] = s.Colors[i].Hex()
		f.Scales[i] = s.Scales[i]
	}
	return f
}

// faultMessage is sent once per fault.
type faultMessage struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	sim      *model.Model
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub(sim *model.Model, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		sim:    sim,
		logger: logger.With("component", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subs: make(map[*subscriber]struct{}),
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Observe is registered with model.Model.Observe.
func (h *Hub) Observe(c model.Change) {
	var payload any
	switch c.Field {
	case model.FieldSnapshot:
		s, _ := c.Value.(*render.Snapshot)
		payload = NewFrame(s)
	case model.FieldFault:
		st := h.sim.Status()
		payload = faultMessage{Type: "fault", Location: st.FaultLocation, Message: st.FaultMessage, Line: st.FaultLine}
	case model.FieldReset:
		payload = map[string]string{"type": "reset"}
	default:
		return
	}
	if h.Subscribers() == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding frame", "err", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		offer(s.send, data)
	}
}

// offer replaces whatever is waiting in the single-slot outbox.
func offer(ch chan []byte, data []byte) {
	select {
	case ch <- data:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- data:
	default:
	}
}

// register seeds the outbox with first, if any. It returns nil once the hub
// has shut down.
func (h *Hub) register(conn *websocket.Conn, first []byte) *subscriber {
	s := &subscriber{conn: conn, send: make(chan []byte, 1)}
	if first != nil {
		s.send <- first
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Info("viewer connected", "remote", conn.RemoteAddr(), "viewers", n)
	return s
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Info("viewer disconnected", "remote", s.conn.RemoteAddr(), "viewers", n)
}

// HandleWS upgrades the request and streams frames until the viewer leaves.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	var first []byte
	if snap := h.sim.Snapshot(); snap != nil {
		if data, err := json.Marshal(NewFrame(snap)); err == nil {
			first = data
		}
	}
	s := h.register(conn, first)
	if s == nil {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		for data := range s.send {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("write failed", "err", err)
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// viewers do not send anything; reading only detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(s)
	<-done
}

// HandleStatus writes the latest status as JSON.
func (h *Hub) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.sim.Status()); err != nil {
		h.logger.Warn("writing status", "err", err)
	}
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/status", h.HandleStatus)
	return mux
}

// Serve listens on addr until ctx is done.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	h.logger.Info("streaming", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// closeAll ends every write loop, which closes the connections.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
