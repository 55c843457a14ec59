// Package preview streams filtered JPEG frames of the live camera to
// WebSocket viewers and accepts media-session style transport controls
// (play, pause, stop) from them.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"camcapture/internal/core/domain"
	"camcapture/internal/core/ports"
	"camcapture/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sendBuffer   = 16
	maxReadBytes = 4096
)

// Source exposes what the hub samples on every frame tick.
type Source interface {
	Stream() ports.Stream
	Filter() domain.DisplayFilter
}

// Transport drives the session on behalf of viewers.
type Transport interface {
	Play(ctx context.Context) error
	Pause()
	Stop()
	Paused() bool
	Status() domain.SessionStatus
}

// Encoder turns a frame into a preview image.
type Encoder interface {
	RenderPreview(img image.Image, filter domain.DisplayFilter, maxWidth, quality int) ([]byte, error)
}

type Metrics interface {
	RecordPreviewClients(n int)
	RecordPreviewFrame()
}

type Config struct {
	FrameRate    float64
	MaxWidth     int
	JPEGQuality  int
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxClients caps concurrent viewers; zero means unlimited.
	MaxClients int
}

func (c *Config) applyDefaults() {
	if c.FrameRate <= 0 {
		c.FrameRate = 10
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = 75
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// Message is the JSON envelope exchanged with viewers. Frames travel as
// binary messages and are not wrapped.
type Message struct {
	Type    string                `json:"type"`
	Paused  *bool                 `json:"paused,omitempty"`
	Status  *domain.SessionStatus `json:"status,omitempty"`
	Event   *domain.SessionEvent  `json:"event,omitempty"`
	Message string                `json:"message,omitempty"`
}

type outbound struct {
	kind int
	data []byte
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan outbound
}

type Hub struct {
	cfg       Config
	source    Source
	grabber   ports.FrameGrabber
	encoder   Encoder
	transport Transport
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	metrics Metrics
	logger  *zap.SugaredLogger
}

func NewHub(cfg Config, source Source, grabber ports.FrameGrabber, encoder Encoder, transport Transport, logger *zap.SugaredLogger) *Hub {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		cfg:       cfg,
		source:    source,
		grabber:   grabber,
		encoder:   encoder,
		transport: transport,
		upgrader: websocket.Upgrader{
			// the control API only listens locally
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 64 << 10,
		},
		clients: make(map[string]*client),
		metrics: noopMetrics{},
		logger:  logger,
	}
}

func (h *Hub) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	h.metrics = m
}

// Run paces frame broadcasts and relays session events until ctx is done.
// events may be nil.
func (h *Hub) Run(ctx context.Context, events <-chan *domain.SessionEvent) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.relayEvents(ctx, events)
	}()

	h.frameLoop(ctx)
	wg.Wait()
	h.closeAll()
}

func (h *Hub) frameLoop(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Limit(h.cfg.FrameRate), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if h.ClientCount() == 0 || h.transport.Paused() {
			continue
		}
		if err := h.broadcastFrame(ctx); err != nil {
			h.logger.Debugw("preview frame skipped", "error", err)
		}
	}
}

func (h *Hub) broadcastFrame(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("preview render panicked: %v", r)
		}
	}()

	stream := h.source.Stream()
	if stream == nil {
		return domain.ErrNoActiveStream
	}
	img, err := h.grabber.GrabFrame(ctx, stream)
	if err != nil {
		return err
	}
	data, err := h.encoder.RenderPreview(img, h.source.Filter(), h.cfg.MaxWidth, h.cfg.JPEGQuality)
	if err != nil {
		return err
	}
	h.broadcast(outbound{kind: websocket.BinaryMessage, data: data})
	h.metrics.RecordPreviewFrame()
	return nil
}

func (h *Hub) relayEvents(ctx context.Context, events <-chan *domain.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			h.broadcastJSON(Message{Type: "event", Event: e})
		}
	}
}

// ServeHTTP upgrades the request and serves one viewer until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.MaxClients > 0 && h.ClientCount() >= h.cfg.MaxClients {
		http.Error(w, "too many preview clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan outbound, sendBuffer),
	}
	h.register(c)
	defer h.unregister(c)

	go h.writePump(c)
	h.sendJSON(c, h.statusMessage())
	h.readPump(r.Context(), c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.RecordPreviewClients(n)
	h.logger.Infow("preview client connected", "client_id", c.id, "clients", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.RecordPreviewClients(n)
	h.logger.Infow("preview client disconnected", "client_id", c.id, "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxReadBytes)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("error reading from preview client", "client_id", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))

		if err := h.handleMessage(ctx, c, msg); err != nil {
			h.logger.Infow("preview control failed", "client_id", c.id, "type", msg.Type, "error", err)
			h.sendJSON(c, Message{Type: "error", Message: err.Error()})
		}
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *client, msg Message) error {
	ctx, span := tracing.TraceWebSocketMessage(ctx, msg.Type, c.id)
	defer span.End()

	switch msg.Type {
	case "play":
		if err := h.transport.Play(ctx); err != nil {
			tracing.RecordError(ctx, err)
			return err
		}
	case "pause":
		h.transport.Pause()
	case "stop":
		h.transport.Stop()
	case "status":
		h.sendJSON(c, h.statusMessage())
		return nil
	case "":
		return errors.New("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}

	h.broadcastJSON(h.statusMessage())
	return nil
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				h.logger.Debugw("preview write failed", "client_id", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debugw("error sending ping", "client_id", c.id, "error", err)
				return
			}
		}
	}
}

func (h *Hub) statusMessage() Message {
	status := h.transport.Status()
	paused := h.transport.Paused()
	return Message{Type: "status", Paused: &paused, Status: &status}
}

func (h *Hub) sendJSON(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("failed to encode preview message", "type", msg.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	h.enqueue(c, outbound{kind: websocket.TextMessage, data: data})
}

func (h *Hub) broadcastJSON(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorw("failed to encode preview message", "type", msg.Type, "error", err)
		return
	}
	h.broadcast(outbound{kind: websocket.TextMessage, data: data})
}

func (h *Hub) broadcast(msg outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.enqueue(c, msg)
	}
}

// enqueue must be called with h.mu held. A viewer that cannot keep up loses
// messages rather than stalling the others.
func (h *Hub) enqueue(c *client, msg outbound) {
	select {
	case c.send <- msg:
	default:
		h.logger.Debugw("dropping preview message for slow client", "client_id", c.id)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type noopMetrics struct{}

func (noopMetrics) RecordPreviewClients(int) {}
func (noopMetrics) RecordPreviewFrame()      {}
