// Package store is the device's durable configuration store.
//
// The store holds two isolated namespaces, "credentials" and "system", each a
// small key/value map whose values are strings or small integers. Every
// operation is synchronous: it either completes or fails with a
// fault.StorageError, and a failed Put or Clear leaves the previous contents
// in place.
//
// Two backends are provided:
//   - Memory: map-backed, used by tests and by the daemon's --ephemeral mode
//   - File: a YAML document rewritten atomically (temp file + rename) on every
//     mutation, standing in for the device's non-volatile storage
//
// Settings layers typed accessors for the persisted layout on top of any
// Store:
//
//	credentials: {ssid: string, password: string, provisioned: 0|1}
//	system:      {factoryResetRequested: 0|1}
package store
