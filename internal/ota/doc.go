// Package ota implements the chunked firmware transfer service.
//
// The client drives a small state machine through ControlIn and DataIn and
// follows it on StatusOut:
//
//	Idle ──START:<n>──> Ready ──chunk──> InProgress ──END──> SUCCESS, restart
//	  ^                   │                  │
//	  └────── ABORT, write failure, END failure ┘
//
// At most one write target is open at a time. The flash primitive is
// abstracted as a Flasher; FileFlasher stages the image on disk and
// atomically renames it into place on commit.
package ota
