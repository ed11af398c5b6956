// Package link emulates the device's GATT peripheral over a WebSocket.
//
// One client may be attached at a time, like a BLE central. Every message is
// a JSON text frame (see Frame). Binary payloads travel base64-encoded in
// the "data" field.
//
//	client → device   {"op":"write","char":"<uuid>","data":"<base64>"}
//	                  {"op":"read","char":"<uuid>"}
//	device → client   {"op":"notify","char":"<uuid>","data":"<base64>"}
//	                  {"op":"value","char":"<uuid>","data":"<base64>"}
//	                  {"op":"error","char":"<uuid>","error":"..."}
//	                  {"op":"services","services":["<uuid>", ...]}
//
// The Server outlives a single boot: the daemon attaches each boot's runtime
// and detaches it again on restart, which drops the client the same way a
// rebooting radio would.
package link
