package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/gatt"
	"github.com/muurk/fieldlink/internal/logging"
)

// ErrRestart is returned by Run when a handler scheduled a restart
var ErrRestart = errors.New("device restart")

// DefaultQueueSize is the capacity of the event queue
const DefaultQueueSize = 64

// WriteHandler processes one characteristic write
type WriteHandler func(ctx context.Context, value []byte)

// ConnectionHandler is told about client connects and disconnects
type ConnectionHandler func(connected bool, remote string)

// Restarter is implemented by the runtime. Services use it to end the boot.
type Restarter interface {
	ScheduleRestart(reason string, grace time.Duration)
}

type periodic struct {
	interval time.Duration
	fn       func(ctx context.Context)
}

type restartRequest struct {
	reason string
	grace  time.Duration
}

// Runtime drains the event queue on a single goroutine. Handlers are
// registered before Run and never change afterwards.
type Runtime struct {
	state   *State
	network *Network
	queue   chan Event

	writes      map[uuid.UUID]WriteHandler
	connections []ConnectionHandler
	periodics   []periodic

	restart *restartRequest
	running sync.Once
}

// NewRuntime creates a runtime for one boot. network may be nil when no
// network driver is attached.
func NewRuntime(state *State, network *Network) *Runtime {
	return &Runtime{
		state:   state,
		network: network,
		queue:   make(chan Event, DefaultQueueSize),
		writes:  make(map[uuid.UUID]WriteHandler),
	}
}

// SetNetwork attaches the connection manager that handles link-layer
// events. It must be called before Run.
func (r *Runtime) SetNetwork(n *Network) {
	r.network = n
}

// State returns the context object the runtime dispatches against
func (r *Runtime) State() *State {
	return r.state
}

// HandleWrite registers the handler for writes to char
func (r *Runtime) HandleWrite(char uuid.UUID, h WriteHandler) {
	r.writes[char] = h
}

// OnConnection registers a client connect/disconnect handler
func (r *Runtime) OnConnection(h ConnectionHandler) {
	r.connections = append(r.connections, h)
}

// Every runs fn on the handler goroutine once per interval
func (r *Runtime) Every(interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	r.periodics = append(r.periodics, periodic{interval: interval, fn: fn})
}

// Post enqueues an event. It blocks while the queue is full.
func (r *Runtime) Post(ctx context.Context, ev Event) error {
	select {
	case r.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScheduleRestart ends the boot after the current event. Only the first
// request counts.
func (r *Runtime) ScheduleRestart(reason string, grace time.Duration) {
	if r.restart != nil {
		return
	}
	r.restart = &restartRequest{reason: reason, grace: grace}
}

// Run dispatches events until ctx is cancelled or a restart is scheduled.
// A restart waits out its grace period and returns an error wrapping
// ErrRestart. Run may only be called once.
func (r *Runtime) Run(ctx context.Context) error {
	started := false
	r.running.Do(func() { started = true })
	if !started {
		return fmt.Errorf("runtime already ran")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, p := range r.periodics {
		wg.Add(1)
		go r.tickLoop(runCtx, &wg, p)
	}
	defer wg.Wait()

	logging.Debug("Runtime started", zap.Stringer("lifecycle", r.state.Lifecycle()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.queue:
			r.dispatch(runCtx, ev)
		}

		if r.restart != nil {
			cancel()
			return r.awaitRestart(ctx)
		}
	}
}

func (r *Runtime) awaitRestart(ctx context.Context) error {
	req := r.restart
	logging.Info("Restart scheduled",
		zap.String("reason", req.reason),
		zap.Duration("grace", req.grace))

	if req.grace > 0 {
		timer := time.NewTimer(req.grace)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %s", ErrRestart, req.reason)
}

func (r *Runtime) tickLoop(ctx context.Context, wg *sync.WaitGroup, p periodic) {
	defer wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drop the tick rather than block when the queue is busy
			select {
			case r.queue <- tick{fn: p.fn}:
			default:
			}
		}
	}
}

func (r *Runtime) dispatch(ctx context.Context, ev Event) {
	switch e := ev.(type) {
	case ClientConnected:
		logging.LogLink(e.Remote, "connected")
		for _, h := range r.connections {
			h(true, e.Remote)
		}

	case ClientDisconnected:
		logging.LogLink(e.Remote, "disconnected")
		for _, h := range r.connections {
			h(false, e.Remote)
		}

	case Write:
		logging.LogCharacteristic("write", gatt.Name(e.Char), e.Value)
		h, ok := r.writes[e.Char]
		if !ok {
			logging.Warn("Write to characteristic with no handler", zap.String("char", e.Char.String()))
			return
		}
		h(ctx, e.Value)

	case LinkConnected:
		if r.network != nil {
			r.network.HandleLinkConnected()
		}

	case AddressAcquired:
		if r.network != nil {
			r.network.HandleAddressAcquired(e.Address)
		}

	case LinkDisconnected:
		if r.network != nil {
			r.network.HandleLinkDisconnected(e.Reason)
		}

	case tick:
		e.fn(ctx)

	default:
		logging.Warn("Unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}
