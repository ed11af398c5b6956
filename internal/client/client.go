// Package client is the installer side of the link: it connects to a
// device, provisions credentials, sends diagnostic commands, follows the
// log stream and uploads firmware.
package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/link"
	"github.com/muurk/fieldlink/internal/logging"
)

const (
	// DefaultDialTimeout bounds a single connection attempt
	DefaultDialTimeout = 5 * time.Second

	// DefaultDialRetries is the number of extra connection attempts
	DefaultDialRetries = 3

	// DefaultReadTimeout bounds a characteristic read
	DefaultReadTimeout = 5 * time.Second

	notificationBuffer = 1024
)

// Notification is a value pushed by the device
type Notification struct {
	Char  uuid.UUID
	Value []byte
}

// Client is a connection to one device
type Client struct {
	addr string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu           sync.Mutex
	services     []uuid.UUID
	servicesSeen chan struct{}

	notifications chan Notification
	replies       chan link.Frame
	done          chan struct{}
	readErr       error
}

// URL returns the link endpoint for a host:port address
func URL(addr string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: link.Path}
	return u.String()
}

// Dial connects to the device at host:port, retrying transient failures
// with exponential backoff.
func Dial(ctx context.Context, addr string) (*Client, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: DefaultDialTimeout}

	var (
		conn      *websocket.Conn
		permanent error
	)
	operation := func() error {
		c, resp, err := dialer.DialContext(ctx, URL(addr), nil)
		if err == nil {
			conn = c
			return nil
		}
		if ctx.Err() != nil {
			permanent = ctx.Err()
			return nil
		}
		devErr := classifyDialError(err, resp, addr)
		if !IsRetryable(devErr) {
			permanent = devErr
			return nil
		}
		logging.Debug("Dial attempt failed", zap.String("addr", addr), zap.Error(err))
		return devErr
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 0
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, DefaultDialRetries), ctx))
	if permanent != nil {
		return nil, permanent
	}
	if err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return nil, err
		}
		return nil, ClassifyNetworkError(err, addr)
	}

	return newClient(addr, conn), nil
}

// classifyDialError maps a failed handshake. A device that is restarting
// answers 503 and is worth retrying, a second client gets 409, and any other
// HTTP answer means the address is not a fieldlink device.
func classifyDialError(err error, resp *http.Response, addr string) *DeviceError {
	if resp == nil {
		return ClassifyNetworkError(err, addr)
	}
	switch resp.StatusCode {
	case http.StatusConflict:
		return &DeviceError{Type: ErrTypeBusy, Message: "device already has a client", Err: err, Addr: addr}
	case http.StatusServiceUnavailable:
		return &DeviceError{Type: ErrTypeNetwork, Message: "device is restarting", Err: err, Addr: addr, Retryable: true}
	default:
		return &DeviceError{Type: ErrTypeProtocol, Message: "unexpected handshake response " + resp.Status, Err: err, Addr: addr}
	}
}

func newClient(addr string, conn *websocket.Conn) *Client {
	c := &Client{
		addr:          addr,
		conn:          conn,
		servicesSeen:  make(chan struct{}),
		notifications: make(chan Notification, notificationBuffer),
		replies:       make(chan link.Frame, 16),
		done:          make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Addr returns the device address
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the connection
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Done is closed when the device drops the connection
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, once Done is closed
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

// Notifications streams values pushed by the device
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Services returns the active services announced by the device. It waits
// for the first announcement.
func (c *Client) Services(ctx context.Context) ([]uuid.UUID, error) {
	select {
	case <-c.servicesSeen:
	case <-c.done:
		return nil, c.closedError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uuid.UUID(nil), c.services...), nil
}

func (c *Client) hasService(ctx context.Context, id uuid.UUID) (bool, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range services {
		if s == id {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.notifications)

	seen := false
	for {
		var f link.Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.readErr = err
			return
		}

		switch f.Op {
		case link.OpServices:
			c.mu.Lock()
			c.services = f.ServiceUUIDs()
			c.mu.Unlock()
			if !seen {
				seen = true
				close(c.servicesSeen)
			}

		case link.OpNotify:
			id, err := f.CharUUID()
			if err != nil {
				continue
			}
			select {
			case c.notifications <- Notification{Char: id, Value: f.Data}:
			default:
				logging.Warn("Dropping notification, consumer too slow", zap.String("char", gatt.Name(id)))
			}

		case link.OpValue, link.OpError:
			select {
			case c.replies <- f:
			default:
				logging.Debug("Dropping unsolicited reply", zap.String("op", f.Op), zap.String("error", f.Error))
			}
		}
	}
}

func (c *Client) closedError() error {
	return &DeviceError{Type: ErrTypeNetwork, Message: "device closed the connection", Err: c.readErr, Addr: c.addr}
}

func (c *Client) send(f link.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(DefaultDialTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(f); err != nil {
		return ClassifyNetworkError(err, c.addr)
	}
	return nil
}

// Write writes value to a characteristic. Writes are unacknowledged; a
// rejection arrives later as a protocol error reply.
func (c *Client) Write(char uuid.UUID, value []byte) error {
	logging.LogCharacteristic("write", gatt.Name(char), value)
	return c.send(link.Frame{Op: link.OpWrite, Char: char.String(), Data: value})
}

// Read reads the current value of a characteristic
func (c *Client) Read(ctx context.Context, char uuid.UUID) ([]byte, error) {
	c.drainReplies()
	if err := c.send(link.Frame{Op: link.OpRead, Char: char.String()}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultReadTimeout)
	defer cancel()

	want := char.String()
	for {
		select {
		case f := <-c.replies:
			if f.Char != want {
				continue
			}
			if f.Op == link.OpError {
				return nil, &DeviceError{Type: ErrTypeProtocol, Message: f.Error, Addr: c.addr}
			}
			return f.Data, nil
		case <-c.done:
			return nil, c.closedError()
		case <-ctx.Done():
			return nil, ClassifyNetworkError(ctx.Err(), c.addr)
		}
	}
}

func (c *Client) drainReplies() {
	for {
		select {
		case <-c.replies:
		default:
			return
		}
	}
}

// pendingError returns a queued protocol error for char, if any
func (c *Client) pendingError(char uuid.UUID) error {
	want := char.String()
	for {
		select {
		case f := <-c.replies:
			if f.Op == link.OpError && (f.Char == want || f.Char == "") {
				return &DeviceError{Type: ErrTypeProtocol, Message: f.Error, Addr: c.addr}
			}
		default:
			return nil
		}
	}
}

// Command sends a diagnostic command
func (c *Client) Command(cmd string) error {
	return c.Write(gatt.DiagCommandIn, []byte(cmd))
}

// Provision sends network credentials. The device must be advertising its
// provisioning service.
func (c *Client) Provision(ctx context.Context, ssid, password string) error {
	cred, err := device.NewCredential(ssid, password)
	if err != nil {
		return &DeviceError{Type: ErrTypeValidation, Message: err.Error(), Err: err}
	}

	ok, err := c.hasService(ctx, gatt.ProvisioningService)
	if err != nil {
		return err
	}
	if !ok {
		return &DeviceError{Type: ErrTypeNotProvisioning, Message: "provisioning service not active", Addr: c.addr}
	}

	payload := []byte(cred.SSID() + "\n" + cred.Password())
	return c.Write(gatt.ProvCredentialIn, payload)
}

// Status reads and parses the diagnostic status record
func (c *Client) Status(ctx context.Context) (StatusRecord, error) {
	raw, err := c.Read(ctx, gatt.DiagStatusOut)
	if err != nil {
		return StatusRecord{}, err
	}
	return ParseStatusRecord(string(raw))
}

// Monitor calls fn for every notification until ctx ends or the device
// disconnects. A disconnect is returned as an error.
func (c *Client) Monitor(ctx context.Context, fn func(Notification)) error {
	for {
		select {
		case n, ok := <-c.notifications:
			if !ok {
				return c.closedError()
			}
			fn(n)
		case <-ctx.Done():
			return nil
		}
	}
}
