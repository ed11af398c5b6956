// Package diag implements the diagnostic service: a log relay to the
// connected client, a periodic status record and a small command channel.
//
// The Service is also the device's Journal. Every line goes to the zap
// transcript in full; when a client is connected it is additionally
// notified on LogOut, prefixed with its level ("[I] ", "[W] ", "[E] ") and
// truncated to MaxLineLen bytes.
//
// Commands written to CommandIn are trimmed and matched case-sensitively:
//
//	RESET_NVS, FACTORY_RESET  clear the store and restart
//	STATUS                    log the full status line
//	OTA_MODE                  set the transfer-mode flag
package diag
