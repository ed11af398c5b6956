// Package server hosts the device daemon.
//
// A Server owns everything that outlives a single boot of the device: the
// link endpoint clients connect to, the configuration store, the firmware
// flasher and the mDNS advertiser. Inside it, the boot loop builds a fresh
// device runtime with its services for every boot:
//
//	Boot ──► build state, network, services ──► link.Attach ──► Runtime.Run
//	  ▲                                                             │
//	  └──────────── link.Detach ◄──── ErrRestart ◄──────────────────┘
//
// A factory reset found at boot ends that boot immediately and loops once
// more. A storage failure during boot stops the daemon.
//
// # Shutdown
//
// Start installs SIGINT/SIGTERM handling. Cancelling the context passed to
// Serve stops the runtime, closes the link client, shuts the HTTP listener
// down and withdraws the mDNS advertisement.
package server
