package link

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fieldlink/internal/device"
	"github.com/muurk/fieldlink/internal/gatt"
)

type chanPoster struct {
	events chan device.Event
}

func newChanPoster() *chanPoster {
	return &chanPoster{events: make(chan device.Event, 16)}
}

func (p *chanPoster) Post(ctx context.Context, ev device.Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chanPoster) next(t *testing.T) device.Event {
	t.Helper()
	select {
	case ev := <-p.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event posted")
		return nil
	}
}

func startServer(t *testing.T) (*Server, *chanPoster, string) {
	t.Helper()
	srv := NewServer()
	poster := newChanPoster()
	srv.Attach(poster)
	srv.SetActiveServices([]uuid.UUID{gatt.DiagnosticService, gatt.FirmwareService})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, poster, "ws" + strings.TrimPrefix(ts.URL, "http") + Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServerSession(t *testing.T) {
	srv, poster, url := startServer(t)
	conn := dial(t, url)

	hello := readFrame(t, conn)
	assert.Equal(t, OpServices, hello.Op)
	assert.Equal(t, []uuid.UUID{gatt.DiagnosticService, gatt.FirmwareService}, hello.ServiceUUIDs())

	connected, ok := poster.next(t).(device.ClientConnected)
	require.True(t, ok)
	assert.NotEmpty(t, connected.Remote)
	assert.True(t, srv.Connected())

	// Write is forwarded to the runtime
	require.NoError(t, conn.WriteJSON(Frame{Op: OpWrite, Char: gatt.FwControlIn.String(), Data: []byte("START:10")}))
	w, ok := poster.next(t).(device.Write)
	require.True(t, ok)
	assert.Equal(t, gatt.FwControlIn, w.Char)
	assert.Equal(t, "START:10", string(w.Value))

	// Notifications reach the client
	require.NoError(t, srv.Notify(gatt.FwStatusOut, []byte("READY")))
	n := readFrame(t, conn)
	assert.Equal(t, OpNotify, n.Op)
	assert.Equal(t, gatt.FwStatusOut.String(), n.Char)
	assert.Equal(t, "READY", string(n.Data))

	// Reads come from the value cache
	srv.SetValue(gatt.FwStatusOut, []byte("IDLE"))
	require.NoError(t, conn.WriteJSON(Frame{Op: OpRead, Char: gatt.FwStatusOut.String()}))
	v := readFrame(t, conn)
	assert.Equal(t, OpValue, v.Op)
	assert.Equal(t, "IDLE", string(v.Data))
}

func TestServerGatesInactiveServices(t *testing.T) {
	srv, poster, url := startServer(t)
	conn := dial(t, url)
	readFrame(t, conn)
	poster.next(t)

	require.NoError(t, conn.WriteJSON(Frame{Op: OpWrite, Char: gatt.ProvCredentialIn.String(), Data: []byte("Net\npw")}))
	e := readFrame(t, conn)
	assert.Equal(t, OpError, e.Op)
	assert.Equal(t, "service not active", e.Error)

	// Activating the service announces it and lets writes through
	srv.SetActiveServices([]uuid.UUID{gatt.DiagnosticService, gatt.FirmwareService, gatt.ProvisioningService})
	s := readFrame(t, conn)
	assert.Equal(t, OpServices, s.Op)
	assert.Len(t, s.Services, 3)

	require.NoError(t, conn.WriteJSON(Frame{Op: OpWrite, Char: gatt.ProvCredentialIn.String(), Data: []byte("Net\npw")}))
	w, ok := poster.next(t).(device.Write)
	require.True(t, ok)
	assert.Equal(t, gatt.ProvCredentialIn, w.Char)
}

func TestServerRejectsBadFrames(t *testing.T) {
	_, poster, url := startServer(t)
	conn := dial(t, url)
	readFrame(t, conn)
	poster.next(t)

	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"bad uuid", Frame{Op: OpWrite, Char: "nope"}, "invalid characteristic"},
		{"unknown characteristic", Frame{Op: OpWrite, Char: "00000000-0000-0000-0000-000000000001"}, "unknown characteristic"},
		{"write to notify-only", Frame{Op: OpWrite, Char: gatt.DiagLogOut.String()}, "not writable"},
		{"read write-only", Frame{Op: OpRead, Char: gatt.DiagCommandIn.String()}, "not readable"},
		{"unknown op", Frame{Op: "subscribe", Char: gatt.DiagLogOut.String()}, "unsupported op"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteJSON(tt.frame))
			e := readFrame(t, conn)
			assert.Equal(t, OpError, e.Op)
			assert.Contains(t, e.Error, tt.want)
		})
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	e := readFrame(t, conn)
	assert.Contains(t, e.Error, "malformed frame")
}

func TestServerSingleClient(t *testing.T) {
	_, poster, url := startServer(t)
	conn := dial(t, url)
	readFrame(t, conn)
	poster.next(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServerDetachDropsClient(t *testing.T) {
	srv, poster, url := startServer(t)
	conn := dial(t, url)
	readFrame(t, conn)
	poster.next(t)

	srv.Detach()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	assert.Eventually(t, func() bool { return !srv.Connected() }, 2*time.Second, 10*time.Millisecond)

	// A new client can attach and is announced to the next runtime
	next := newChanPoster()
	srv.Attach(next)
	srv.SetActiveServices([]uuid.UUID{gatt.DiagnosticService})
	conn2 := dial(t, url)
	f := readFrame(t, conn2)
	assert.Equal(t, OpServices, f.Op)
	_, ok := next.next(t).(device.ClientConnected)
	assert.True(t, ok)
}

func TestServerRefusesWhileDetached(t *testing.T) {
	srv := NewServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNotifyWithoutClient(t *testing.T) {
	srv := NewServer()
	assert.NoError(t, srv.Notify(gatt.DiagLogOut, []byte("nobody listening")))
}

func TestDecodeFrame(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"op":"write","char":"7f3f0003-6b7c-4f2e-9b8a-1a2b3c4d5e6f","data":"U1RBVFVT"}`))
	require.NoError(t, err)
	assert.Equal(t, OpWrite, f.Op)
	assert.Equal(t, "STATUS", string(f.Data))
	id, err := f.CharUUID()
	require.NoError(t, err)
	assert.Equal(t, gatt.DiagCommandIn, id)

	_, err = DecodeFrame([]byte(`{"char":"x"}`))
	assert.Error(t, err)
}
