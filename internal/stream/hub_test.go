package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

type hubEnv struct {
	hub *Hub
	url string
}

func newHubEnv(t *testing.T, cfg Config, metrics Metrics) *hubEnv {
	t.Helper()

	epoch := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	eng, err := engine.New(engine.WithEpoch(epoch))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		eng.Run(ctx, timectrl.NewTimeController(epoch, time.Millisecond, timectrl.RealTime))
	}()

	hub := NewHub(eng, logging.Noop(), metrics, cfg)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
		cancel()
		<-runDone
	})
	return &hubEnv{hub: hub, url: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (e *hubEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
	t.Fatalf("no matching message before deadline")
	return Message{}
}

func byRef(ref string) func(Message) bool {
	return func(m Message) bool { return m.Type != TypeFrame && m.Ref == ref }
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamSendsFrames(t *testing.T) {
	env := newHubEnv(t, Config{}, nil)
	conn := env.dial(t)

	msg := readUntil(t, conn, func(m Message) bool { return m.Type == TypeFrame })
	bodies, ok := msg.Frame["bodies"].([]any)
	if !ok || len(bodies) != 31 {
		t.Fatalf("frame bodies = %T len %d, want 31", msg.Frame["bodies"], len(bodies))
	}
	if _, ok := msg.Frame["camera"].(map[string]any); !ok {
		t.Fatalf("frame missing camera: %v", msg.Frame)
	}
}

func TestStreamNavigateAck(t *testing.T) {
	env := newHubEnv(t, Config{}, nil)
	conn := env.dial(t)

	if err := conn.WriteJSON(Command{Op: "navigate", ID: model.SectionPortfolio, Ref: "n1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	ack := readUntil(t, conn, byRef("n1"))
	if ack.Type != TypeAck || ack.Op != "navigate" {
		t.Fatalf("reply = %+v, want navigate ack", ack)
	}
	if got := ack.State["tracked_id"]; got != model.SectionPortfolio {
		t.Fatalf("tracked_id = %v, want portfolio", got)
	}

	if err := conn.WriteJSON(Command{Op: "overview", Ref: "o1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	ack = readUntil(t, conn, byRef("o1"))
	if ack.Type != TypeAck || ack.State["is_tracking"] != false {
		t.Fatalf("overview reply = %+v", ack)
	}
}

func TestStreamCommandErrors(t *testing.T) {
	env := newHubEnv(t, Config{}, nil)
	conn := env.dial(t)

	cases := []struct {
		cmd  Command
		want string
	}{
		{Command{Op: "click", ID: "nope", Ref: "c1"}, "unknown body"},
		{Command{Op: "warp", Ref: "c2"}, "unknown op"},
		{Command{Op: "navigate", Ref: "c3"}, "invalid request"},
	}
	for _, tc := range cases {
		if err := conn.WriteJSON(tc.cmd); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		reply := readUntil(t, conn, byRef(tc.cmd.Ref))
		if reply.Type != TypeError || !strings.Contains(reply.Error, tc.want) {
			t.Fatalf("%s reply = %+v, want error containing %q", tc.cmd.Op, reply, tc.want)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	reply := readUntil(t, conn, func(m Message) bool { return m.Type == TypeError && m.Ref == "" })
	if reply.Error != "malformed command" {
		t.Fatalf("malformed reply = %+v", reply)
	}
}

func TestStreamCommandRateLimit(t *testing.T) {
	env := newHubEnv(t, Config{CommandRate: 0.001, CommandBurst: 1}, nil)
	conn := env.dial(t)

	for _, ref := range []string{"r1", "r2"} {
		if err := conn.WriteJSON(Command{Op: "stop", Ref: ref}); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}
	if first := readUntil(t, conn, byRef("r1")); first.Type != TypeAck {
		t.Fatalf("first reply = %+v, want ack", first)
	}
	if second := readUntil(t, conn, byRef("r2")); second.Type != TypeError || second.Error != ErrRateLimited.Error() {
		t.Fatalf("second reply = %+v, want rate limited", second)
	}
}

func TestStreamPerIPLimit(t *testing.T) {
	m, err := observability.NewRPCCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	env := newHubEnv(t, Config{MaxConnsPerIP: 1}, m)
	env.dial(t)

	_, resp, err := websocket.DefaultDialer.Dial(env.url, nil)
	if err == nil {
		t.Fatalf("second connection from the same address was accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second dial response = %v, want 429", resp)
	}
	if got := testutil.ToFloat64(m.StreamRejected.WithLabelValues("per_ip_limit")); got != 1 {
		t.Fatalf("orrery_stream_rejected_total{per_ip_limit} = %v, want 1", got)
	}
}

func TestStreamClientMetrics(t *testing.T) {
	m, err := observability.NewRPCCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewRPCCollector: %v", err)
	}
	env := newHubEnv(t, Config{}, m)
	conn := env.dial(t)

	waitFor(t, "client gauge", func() bool { return testutil.ToFloat64(m.StreamClients) == 1 })
	readUntil(t, conn, func(m Message) bool { return m.Type == TypeFrame })
	if got := testutil.ToFloat64(m.StreamMessages.WithLabelValues("out", TypeFrame)); got < 1 {
		t.Fatalf("orrery_stream_messages_total{out,frame} = %v, want >= 1", got)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitFor(t, "client disconnect", func() bool {
		return testutil.ToFloat64(m.StreamClients) == 0 && env.hub.Clients() == 0
	})
}
