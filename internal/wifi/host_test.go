package wifi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/fieldlink/internal/device"
)

type slicePoster struct {
	mu     sync.Mutex
	events []device.Event
}

func (p *slicePoster) Post(_ context.Context, ev device.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *slicePoster) all() []device.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]device.Event(nil), p.events...)
}

func fast(opts Options) Options {
	opts.AssociateDelay = time.Millisecond
	opts.AddressDelay = time.Millisecond
	return opts
}

func TestHostConnectStaticAddress(t *testing.T) {
	poster := &slicePoster{}
	h := NewHost(context.Background(), poster, fast(Options{StaticAddress: "192.168.50.7"}))

	require.NoError(t, h.Connect("HomeNet", "secret"))
	h.Wait()

	assert.Equal(t, []device.Event{
		device.LinkConnected{},
		device.AddressAcquired{Address: "192.168.50.7"},
	}, poster.all())
}

func TestHostConnectRejected(t *testing.T) {
	poster := &slicePoster{}
	h := NewHost(context.Background(), poster, fast(Options{RejectSSIDs: []string{"BadNet"}}))

	require.NoError(t, h.Connect("BadNet", "pw"))
	h.Wait()

	events := poster.all()
	require.Len(t, events, 1)
	d, ok := events[0].(device.LinkDisconnected)
	require.True(t, ok)
	assert.Contains(t, d.Reason, "BadNet")
}

func TestHostConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	poster := &slicePoster{}
	h := NewHost(ctx, poster, Options{AssociateDelay: time.Hour})

	require.NoError(t, h.Connect("HomeNet", "pw"))
	cancel()
	h.Wait()
	assert.Empty(t, poster.all())

	assert.Error(t, h.Connect("HomeNet", "pw"))
}
