// Package device holds the device's lifecycle state machine, the network
// connection manager and the runtime that drives every service.
//
// # State
//
// State is the single owned context object for one boot. It carries the
// lifecycle state, the network state, the acquired address and two flags
// (client connected, transfer mode). It is created by the daemon after Boot
// and handed explicitly to every service; nothing here is a package-level
// singleton.
//
// # Runtime
//
// All inbound activity becomes an Event on one queue:
//
//	WebSocket reader ──┐
//	network driver   ──┼──> Runtime.Post ──> queue ──> Runtime.Run (one goroutine)
//	tickers          ──┘
//
// Run dispatches events one at a time, so State needs no locking. A handler
// that must reboot the device calls ScheduleRestart; Run stops consuming
// events, waits out the grace period and returns ErrRestart.
//
// # Lifecycle
//
//	FactoryResetPending ──(flag set)──> clear store, restart
//	        │
//	        ├──(provisioned)──> AppRunning
//	        └──(not provisioned)──> Provisioning ──(address acquired)──> AppRunning
package device
