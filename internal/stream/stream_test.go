package stream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	. "github.com/onsi/gomega"

	"github.com/san-kum/atomsim/internal/engine"
	"github.com/san-kum/atomsim/internal/model"
	"github.com/san-kum/atomsim/internal/render"
)

func snapshot(ts int64) *render.Snapshot {
	return &render.Snapshot{
		Positions: []render.Vec3{{1, 2, 3}, {-1, 0, 0.5}},
		Scales:    []float32{1, 0.5},
		Colors:    []render.Color{{R: 255, G: 0, B: 0}, {R: 0, G: 0, B: 255}},
		TypeIDs:   []int{1, 2},
		Time:      float64(ts) * 0.005,
		Timestep:  ts,
	}
}

func setup(t *testing.T) (*model.Model, *Hub, *httptest.Server) {
	t.Helper()
	sim := model.New()
	hub := NewHub(sim, log.New(io.Discard))
	sim.Observe(hub.Observe)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return sim, hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestNewFrame(t *testing.T) {
	g := NewWithT(t)
	f := NewFrame(snapshot(10))
	g.Expect(f.Type).To(Equal("snapshot"))
	g.Expect(f.Timestep).To(Equal(int64(10)))
	g.Expect(f.Positions).To(Equal([][3]float32{{1, 2, 3}, {-1, 0, 0.5}}))
	g.Expect(f.Colors).To(Equal([]string{"#ff0000", "#0000ff"}))
	g.Expect(f.Types).To(Equal([]int{1, 2}))

	empty := NewFrame(nil)
	g.Expect(empty.Positions).To(BeEmpty())
	data, err := json.Marshal(empty)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring(`"positions":[]`))
}

func TestNewViewerGetsLatestSnapshot(t *testing.T) {
	g := NewWithT(t)
	sim, _, srv := setup(t)
	sim.PublishSnapshot(snapshot(40))

	conn := dial(t, srv)
	msg := read(t, conn)
	g.Expect(msg["type"]).To(Equal("snapshot"))
	g.Expect(msg["timestep"]).To(BeNumerically("==", 40))
	g.Expect(msg["positions"]).To(HaveLen(2))
}

func TestBroadcast(t *testing.T) {
	g := NewWithT(t)
	sim, hub, srv := setup(t)
	a := dial(t, srv)
	b := dial(t, srv)
	g.Eventually(hub.Subscribers).Should(Equal(2))

	sim.PublishSnapshot(snapshot(7))
	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		g.Expect(msg["timestep"]).To(BeNumerically("==", 7))
	}

	sim.PublishStatus(&model.Status{Crashed: true, FaultLocation: "fix", FaultMessage: "bad", FaultLine: 3})
	sim.ReportFault(engine.NewFault(&engine.Error{Location: "fix", Message: "bad"}, "fix", 3))
	msg := read(t, a)
	g.Expect(msg["type"]).To(Equal("fault"))
	g.Expect(msg["location"]).To(Equal("fix"))
}

func TestViewerLeaving(t *testing.T) {
	g := NewWithT(t)
	_, hub, srv := setup(t)
	conn := dial(t, srv)
	g.Eventually(hub.Subscribers).Should(Equal(1))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	g.Eventually(hub.Subscribers).Should(BeZero())
}

func TestOfferKeepsNewest(t *testing.T) {
	ch := make(chan []byte, 1)
	offer(ch, []byte("a"))
	offer(ch, []byte("b"))
	if got := string(<-ch); got != "b" {
		t.Errorf("got %q, want b", got)
	}
}

func TestStatusEndpoint(t *testing.T) {
	g := NewWithT(t)
	sim, _, srv := setup(t)
	sim.PublishStatus(&model.Status{Timestep: 12, NumberOfAtoms: 40, Speed: 3})

	resp, err := http.Get(srv.URL + "/status")
	g.Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()
	g.Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

	var st model.Status
	g.Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
	g.Expect(st.Timestep).To(Equal(int64(12)))
	g.Expect(st.NumberOfAtoms).To(Equal(40))
	g.Expect(st.Speed).To(Equal(3))
}

func TestServeStopsOnCancel(t *testing.T) {
	sim := model.New()
	hub := NewHub(sim, log.New(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestViewerRefusedAfterShutdown(t *testing.T) {
	g := NewWithT(t)
	sim, hub, srv := setup(t)
	sim.PublishSnapshot(snapshot(3))
	live := dial(t, srv)
	g.Eventually(hub.Subscribers).Should(Equal(1))
	read(t, live)

	hub.closeAll()
	g.Expect(hub.Subscribers()).To(BeZero())

	late := dial(t, srv)
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := late.ReadMessage()
	g.Expect(websocket.IsCloseError(err, websocket.CloseGoingAway)).To(BeTrue(), "got %v", err)
	g.Consistently(hub.Subscribers).Should(BeZero())
}

func TestConnectDuringShutdown(t *testing.T) {
	g := NewWithT(t)
	sim, hub, srv := setup(t)
	sim.PublishSnapshot(snapshot(5))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				if resp != nil {
					resp.Body.Close()
				}
				return
			}
			defer conn.Close()
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
	hub.closeAll()
	for i := 0; i < 8; i++ {
		<-done
	}
	g.Expect(hub.Subscribers()).To(BeZero())
}
