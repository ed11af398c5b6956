package device

import "fmt"

// Lifecycle is the device's high-level phase
type Lifecycle int

const (
	FactoryResetPending Lifecycle = iota
	Provisioning
	AppRunning
)

func (l Lifecycle) String() string {
	switch l {
	case FactoryResetPending:
		return "FactoryResetPending"
	case Provisioning:
		return "Provisioning"
	case AppRunning:
		return "AppRunning"
	default:
		return fmt.Sprintf("Lifecycle(%d)", int(l))
	}
}

// Code is the numeric form reported on the diagnostic channel
func (l Lifecycle) Code() int { return int(l) }

// NetworkState tracks a single connection attempt
type NetworkState int

const (
	NetIdle NetworkState = iota
	NetConnecting
	NetConnected
	NetFailed
)

func (n NetworkState) String() string {
	switch n {
	case NetIdle:
		return "Idle"
	case NetConnecting:
		return "Connecting"
	case NetConnected:
		return "Connected"
	case NetFailed:
		return "Failed"
	default:
		return fmt.Sprintf("NetworkState(%d)", int(n))
	}
}

// Code is the numeric form reported on the diagnostic channel
func (n NetworkState) Code() int { return int(n) }

// LifecycleListener is told about every lifecycle change
type LifecycleListener func(from, to Lifecycle)

// State is the per-boot device context. It is only touched from the
// runtime's handler goroutine.
type State struct {
	lifecycle Lifecycle
	listeners []LifecycleListener

	Network         NetworkState
	Address         string
	ClientConnected bool
	TransferMode    bool
}

// NewState creates the context for a boot that resolved to lifecycle
func NewState(lifecycle Lifecycle) *State {
	return &State{lifecycle: lifecycle, Network: NetIdle}
}

// Lifecycle returns the current lifecycle state
func (s *State) Lifecycle() Lifecycle {
	return s.lifecycle
}

// SetLifecycle moves to a new lifecycle state and notifies listeners when it
// actually changed.
func (s *State) SetLifecycle(to Lifecycle) {
	from := s.lifecycle
	s.lifecycle = to
	if from == to {
		return
	}
	for _, l := range s.listeners {
		l(from, to)
	}
}

// OnLifecycleChange registers a listener
func (s *State) OnLifecycleChange(l LifecycleListener) {
	s.listeners = append(s.listeners, l)
}
