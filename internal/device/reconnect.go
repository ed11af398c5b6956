package device

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/fieldlink/internal/logging"
)

// DefaultReconnectCheck is how often the Reconnector looks at the network state
const DefaultReconnectCheck = time.Second

// Reconnector re-invokes Network.Connect on an exponential schedule while the
// device is running and the link has failed. It does nothing while a
// firmware transfer has the device in transfer mode.
type Reconnector struct {
	state   *State
	network *Network
	policy  *backoff.ExponentialBackOff
	now     func() time.Time

	next time.Time
}

// NewReconnector creates a reconnect policy. The backoff never gives up.
func NewReconnector(state *State, network *Network) *Reconnector {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 2 * time.Minute
	policy.MaxElapsedTime = 0
	policy.Reset()

	return &Reconnector{
		state:   state,
		network: network,
		policy:  policy,
		now:     time.Now,
	}
}

// Attach registers the reconnect check on the runtime
func (rc *Reconnector) Attach(r *Runtime, interval time.Duration) {
	r.Every(interval, rc.Check)
}

// Check is called periodically on the handler goroutine
func (rc *Reconnector) Check(_ context.Context) {
	if rc.state.Network == NetConnected {
		if !rc.next.IsZero() {
			rc.policy.Reset()
			rc.next = time.Time{}
		}
		return
	}
	if rc.state.TransferMode || rc.state.Lifecycle() != AppRunning || rc.state.Network != NetFailed {
		return
	}

	now := rc.now()
	if rc.next.IsZero() {
		rc.next = now.Add(rc.policy.NextBackOff())
		return
	}
	if now.Before(rc.next) {
		return
	}

	wait := rc.policy.NextBackOff()
	rc.next = now.Add(wait)
	logging.Debug("Reconnecting to network", zap.Duration("next_retry", wait))
	if err := rc.network.Connect(); err != nil {
		logging.Debug("Reconnect attempt failed", zap.Error(err))
	}
}
