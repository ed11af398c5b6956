package link

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Poster accepts events from the link. device.Runtime implements it.
type Poster interface {
	Post(ctx context.Context, ev device.Event) error
}

// ErrDetached is reported to clients writing while no runtime is attached
var ErrDetached = errors.New("device restarting")

type client struct {
	conn   *websocket.Conn
	remote string
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
}

func (c *client) send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}

// Server is a gatt.Peripheral reachable over WebSocket
type Server struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	poster Poster
	client *client
	values map[uuid.UUID][]byte
	active []uuid.UUID
}

// NewServer creates a link server with no runtime attached
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		values: make(map[uuid.UUID][]byte),
	}
}

// Handler returns an http.Handler serving the link on Path
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	return mux
}

// Attach routes link events to p. An already connected client is announced
// to the new runtime.
func (s *Server) Attach(p Poster) {
	s.mu.Lock()
	s.poster = p
	c := s.client
	s.mu.Unlock()

	if c != nil {
		_ = s.post(c, device.ClientConnected{Remote: c.remote})
	}
}

// Detach stops routing events, drops the client and forgets cached values
func (s *Server) Detach() {
	s.mu.Lock()
	s.poster = nil
	s.values = make(map[uuid.UUID][]byte)
	s.active = nil
	s.mu.Unlock()

	s.Disconnect()
}

// Disconnect closes the current client connection, if any
func (s *Server) Disconnect() {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return
	}

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.cancel()
	_ = c.conn.Close()
}

// Connected reports whether a client is attached
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// Notify implements gatt.Peripheral
func (s *Server) Notify(char uuid.UUID, value []byte) error {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	logging.LogCharacteristic("notify", gatt.Name(char), value)
	return c.send(Frame{Op: OpNotify, Char: char.String(), Data: value})
}

// SetValue implements gatt.Peripheral
func (s *Server) SetValue(char uuid.UUID, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[char] = append([]byte(nil), value...)
}

// SetActiveServices implements gatt.Peripheral
func (s *Server) SetActiveServices(services []uuid.UUID) {
	s.mu.Lock()
	s.active = append([]uuid.UUID(nil), services...)
	c := s.client
	s.mu.Unlock()

	if c != nil {
		if err := c.send(servicesFrame(services)); err != nil {
			logging.Debug("Failed to send services frame", zap.Error(err))
		}
	}
}

func (s *Server) isActive(service uuid.UUID) bool {
	for _, a := range s.active {
		if a == service {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and runs the client session
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	busy := s.client != nil
	attached := s.poster != nil
	s.mu.Unlock()
	if !attached {
		logging.LogLink(r.RemoteAddr, "refused_detached")
		http.Error(w, "peripheral restarting", http.StatusServiceUnavailable)
		return
	}
	if busy {
		logging.LogLink(r.RemoteAddr, "refused_busy")
		http.Error(w, "peripheral already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{conn: conn, remote: r.RemoteAddr, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "peripheral already connected"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	s.client = c
	active := append([]uuid.UUID(nil), s.active...)
	s.mu.Unlock()

	defer func() {
		_ = s.post(c, device.ClientDisconnected{Remote: c.remote})
		s.mu.Lock()
		if s.client == c {
			s.client = nil
		}
		s.mu.Unlock()
		cancel()
		_ = conn.Close()
	}()

	if err := c.send(servicesFrame(active)); err != nil {
		return
	}
	_ = s.post(c, device.ClientConnected{Remote: c.remote})

	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("Link read ended",
					zap.String("remote_addr", c.remote),
					zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			s.reply(c, Frame{Op: OpError, Error: "text frames only"})
			continue
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			s.reply(c, Frame{Op: OpError, Error: err.Error()})
			continue
		}
		s.handleFrame(c, frame)
	}
}

func (s *Server) handleFrame(c *client, f *Frame) {
	char, err := f.CharUUID()
	if err != nil {
		s.reply(c, Frame{Op: OpError, Char: f.Char, Error: err.Error()})
		return
	}
	svc, ch, ok := gatt.Lookup(char)
	if !ok {
		s.reply(c, Frame{Op: OpError, Char: f.Char, Error: "unknown characteristic"})
		return
	}

	s.mu.Lock()
	active := s.isActive(svc.UUID)
	value := append([]byte(nil), s.values[char]...)
	s.mu.Unlock()

	if !active {
		s.reply(c, Frame{Op: OpError, Char: f.Char, Error: "service not active"})
		return
	}

	switch f.Op {
	case OpWrite:
		if !ch.Properties.Has(gatt.PropWrite) && !ch.Properties.Has(gatt.PropWriteNoResponse) {
			s.reply(c, Frame{Op: OpError, Char: f.Char, Error: "characteristic not writable"})
			return
		}
		if err := s.post(c, device.Write{Char: char, Value: f.Data}); err != nil {
			s.reply(c, Frame{Op: OpError, Char: f.Char, Error: err.Error()})
		}

	case OpRead:
		if !ch.Properties.Has(gatt.PropRead) {
			s.reply(c, Frame{Op: OpError, Char: f.Char, Error: "characteristic not readable"})
			return
		}
		s.reply(c, Frame{Op: OpValue, Char: f.Char, Data: value})

	default:
		s.reply(c, Frame{Op: OpError, Char: f.Char, Error: "unsupported op " + f.Op})
	}
}

func (s *Server) reply(c *client, f Frame) {
	if err := c.send(f); err != nil {
		logging.Debug("Failed to send reply",
			zap.String("remote_addr", c.remote),
			zap.String("op", f.Op),
			zap.Error(err))
	}
}

func (s *Server) post(c *client, ev device.Event) error {
	s.mu.Lock()
	p := s.poster
	s.mu.Unlock()
	if p == nil {
		return ErrDetached
	}
	return p.Post(c.ctx, ev)
}
