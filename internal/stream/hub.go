// Package stream serves the frame feed over websockets and accepts
// navigation commands from connected viewers.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/orrery/internal/engine"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/navsvc"
)

// Defaults for Config fields left at zero.
const (
	DefaultFrameRate     = 15
	DefaultCommandRate   = 5
	DefaultCommandBurst  = 10
	DefaultMaxConnsPerIP = 4
	DefaultWriteTimeout  = 5 * time.Second
	DefaultPongWait      = 60 * time.Second
	DefaultCommandWait   = 2 * time.Second

	maxMessageSize = 4096
)

// Config tunes a Hub.
type Config struct {
	// FrameRate caps frames per second sent to each client.
	FrameRate float64
	// CommandRate and CommandBurst bound inbound commands per client.
	CommandRate  float64
	CommandBurst int
	// MaxConnsPerIP caps concurrent connections from one remote address.
	MaxConnsPerIP int
	WriteTimeout  time.Duration
	PongWait      time.Duration
	// CommandWait bounds how long a command waits for the frame loop.
	CommandWait time.Duration
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(*http.Request) bool
}

func (c Config) withDefaults() Config {
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.CommandRate <= 0 {
		c.CommandRate = DefaultCommandRate
	}
	if c.CommandBurst <= 0 {
		c.CommandBurst = DefaultCommandBurst
	}
	if c.MaxConnsPerIP <= 0 {
		c.MaxConnsPerIP = DefaultMaxConnsPerIP
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.CommandWait <= 0 {
		c.CommandWait = DefaultCommandWait
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(*http.Request) bool { return true }
	}
	return c
}

// Metrics receives connection and message counts.
// *observability.RPCCollector satisfies it.
type Metrics interface {
	StreamClientConnected()
	StreamClientDisconnected()
	ObserveStreamMessage(direction, outcome string)
	ObserveStreamRejected(reason string)
}

type noopMetrics struct{}

func (noopMetrics) StreamClientConnected()             {}
func (noopMetrics) StreamClientDisconnected()          {}
func (noopMetrics) ObserveStreamMessage(string, string) {}
func (noopMetrics) ObserveStreamRejected(string)        {}

// Command is an inbound client message.
type Command struct {
	Op  string `json:"op"`
	ID  string `json:"id,omitempty"`
	Ref string `json:"ref,omitempty"`
}

// Message is an outbound server message: a frame, a command ack or an
// error.
type Message struct {
	Type  string         `json:"type"`
	Ref   string         `json:"ref,omitempty"`
	Op    string         `json:"op,omitempty"`
	Error string         `json:"error,omitempty"`
	State map[string]any `json:"state,omitempty"`
	Frame map[string]any `json:"frame,omitempty"`
}

// Message types.
const (
	TypeFrame = "frame"
	TypeAck   = "ack"
	TypeError = "error"
)

var (
	// ErrUnknownOp is reported for commands with an unrecognised op.
	ErrUnknownOp = errors.New("unknown op")
	// ErrRateLimited is reported when a client sends commands too fast.
	ErrRateLimited = errors.New("rate limited")
)

// Hub upgrades /ws requests and fans frames out to every client.
type Hub struct {
	eng      *engine.Engine
	log      logging.Logger
	metrics  Metrics
	cfg      Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	perIP   map[string]int
	clients map[string]*websocket.Conn
	closed  bool
}

// NewHub builds a hub over eng. metrics may be nil.
func NewHub(eng *engine.Engine, log logging.Logger, metrics Metrics, cfg Config) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	cfg = cfg.withDefaults()
	return &Hub{
		eng:     eng,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		perIP:   make(map[string]int),
		clients: make(map[string]*websocket.Conn),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		_ = c.Close()
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := remoteIP(r)
	if reason := h.acquire(ip); reason != "" {
		h.metrics.ObserveStreamRejected(reason)
		h.log.Warn(r.Context(), "stream connection rejected",
			logging.String("remote_ip", ip),
			logging.String("reason", reason),
		)
		http.Error(w, reason, http.StatusTooManyRequests)
		return
	}
	defer h.release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.ObserveStreamRejected("upgrade")
		h.log.Debug(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	id := logging.NewID()
	ctx, cancel := context.WithCancel(logging.ContextWithRequestID(context.Background(), id))
	defer cancel()
	log := h.log.With(logging.String("conn_id", id), logging.String("remote_ip", ip))

	if !h.track(id, conn) {
		_ = conn.Close()
		return
	}
	defer h.untrack(id)
	h.metrics.StreamClientConnected()
	defer h.metrics.StreamClientDisconnected()
	log.Info(ctx, "stream client connected")

	c := &client{
		hub:     h,
		conn:    conn,
		log:     log,
		replies: make(chan Message, 8),
		frames:  make(chan engine.Frame, 1),
		done:    make(chan struct{}),
	}
	remove := h.eng.AddFrameListener(c.offer)
	defer remove()

	go func() {
		defer close(c.done)
		c.writeLoop(ctx)
		// Unblocks the reader once the writer gives up.
		_ = conn.Close()
	}()

	err = c.readLoop(ctx)
	cancel()
	<-c.done

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug(ctx, "stream client read ended", logging.Err(err))
	}
	log.Info(ctx, "stream client disconnected")
}

func (h *Hub) acquire(ip string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return "shutting_down"
	}
	if h.perIP[ip] >= h.cfg.MaxConnsPerIP {
		return "per_ip_limit"
	}
	h.perIP[ip]++
	return ""
}

func (h *Hub) release(ip string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.perIP[ip] <= 1 {
		delete(h.perIP, ip)
		return
	}
	h.perIP[ip]--
}

func (h *Hub) track(id string, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[id] = conn
	return true
}

func (h *Hub) untrack(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type client struct {
	hub     *Hub
	conn    *websocket.Conn
	log     logging.Logger
	replies chan Message
	frames  chan engine.Frame
	done    chan struct{}
}

// offer runs on the engine loop and never blocks; a slow client sees the
// newest frame it has room for.
func (c *client) offer(f engine.Frame) {
	select {
	case c.frames <- f:
	default:
		c.hub.metrics.ObserveStreamMessage("out", "dropped")
	}
}

func (c *client) writeLoop(ctx context.Context) {
	cfg := c.hub.cfg
	limiter := rate.NewLimiter(rate.Limit(cfg.FrameRate), 1)
	ping := time.NewTicker(cfg.PongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.hub.eng.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine stopped"),
				time.Now().Add(cfg.WriteTimeout))
			return
		case msg := <-c.replies:
			if !c.write(msg) {
				return
			}
		case f := <-c.frames:
			if !limiter.Allow() {
				c.hub.metrics.ObserveStreamMessage("out", "throttled")
				continue
			}
			if !c.write(Message{Type: TypeFrame, Frame: navsvc.FrameFields(f)}) {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *client) write(msg Message) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.hub.metrics.ObserveStreamMessage("out", "error")
		return false
	}
	c.hub.metrics.ObserveStreamMessage("out", msg.Type)
	return true
}

func (c *client) readLoop(ctx context.Context) error {
	cfg := c.hub.cfg
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.CommandRate), cfg.CommandBurst)
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.hub.metrics.ObserveStreamMessage("in", "malformed")
				c.reply(ctx, Message{Type: TypeError, Error: "malformed command"})
				continue
			}
			return err
		}

		if !limiter.Allow() {
			c.hub.metrics.ObserveStreamMessage("in", "rate_limited")
			c.reply(ctx, Message{Type: TypeError, Ref: cmd.Ref, Op: cmd.Op, Error: ErrRateLimited.Error()})
			continue
		}

		state, err := c.apply(ctx, cmd)
		if err != nil {
			c.hub.metrics.ObserveStreamMessage("in", "rejected")
			c.log.Debug(ctx, "stream command rejected", logging.String("op", cmd.Op), logging.Err(err))
			c.reply(ctx, Message{Type: TypeError, Ref: cmd.Ref, Op: cmd.Op, Error: err.Error()})
			continue
		}
		c.hub.metrics.ObserveStreamMessage("in", "ok")
		c.reply(ctx, Message{Type: TypeAck, Ref: cmd.Ref, Op: cmd.Op, State: state})
	}
}

func (c *client) reply(ctx context.Context, msg Message) {
	select {
	case c.replies <- msg:
	case <-c.done:
	case <-ctx.Done():
	}
}

func (c *client) apply(ctx context.Context, cmd Command) (map[string]any, error) {
	var run func(*engine.Engine) error
	switch cmd.Op {
	case "navigate", "click":
		id, err := navsvc.ValidateBodyID(cmd.ID)
		if err != nil {
			return nil, err
		}
		if cmd.Op == "navigate" {
			run = func(e *engine.Engine) error { e.NavigateTo(id); return nil }
		} else {
			run = func(e *engine.Engine) error { _, err := e.Click(id); return err }
		}
	case "stop":
		run = func(e *engine.Engine) error { e.StopTracking(); return nil }
	case "overview":
		run = func(e *engine.Engine) error { e.ReturnToOverview(); return nil }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, cmd.Op)
	}

	ctx, cancel := context.WithTimeout(ctx, c.hub.cfg.CommandWait)
	defer cancel()

	var (
		state  map[string]any
		runErr error
	)
	err := c.hub.eng.Do(ctx, func(e *engine.Engine) {
		runErr = run(e)
		state = navsvc.StateFields(e.Snapshot(), e.Phase())
	})
	if err != nil {
		return nil, err
	}
	return state, runErr
}
