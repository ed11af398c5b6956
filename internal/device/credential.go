package device

import (
	"unicode/utf8"

	"github.com/muurk/fieldlink/internal/fault"
)

const (
	// MaxSSIDLen is the longest SSID accepted, in bytes
	MaxSSIDLen = 32
	// MaxPasswordLen is the longest password accepted, in bytes
	MaxPasswordLen = 64
)

// Credential is a validated network credential. The zero value is not valid;
// build one with NewCredential.
type Credential struct {
	ssid     string
	password string
}

// NewCredential checks the length contract: ssid 1..32 bytes, password
// 0..64 bytes. Both must be valid UTF-8.
func NewCredential(ssid, password string) (Credential, error) {
	if !utf8.ValidString(ssid) {
		return Credential{}, fault.NewValidationError("SSID is not valid UTF-8")
	}
	if !utf8.ValidString(password) {
		return Credential{}, fault.NewValidationError("password is not valid UTF-8")
	}
	if len(ssid) == 0 || len(ssid) > MaxSSIDLen {
		return Credential{}, fault.NewValidationError("invalid SSID length: %d bytes (want 1-%d)", len(ssid), MaxSSIDLen)
	}
	if len(password) > MaxPasswordLen {
		return Credential{}, fault.NewValidationError("invalid password length: %d bytes (want 0-%d)", len(password), MaxPasswordLen)
	}
	return Credential{ssid: ssid, password: password}, nil
}

// SSID returns the network name
func (c Credential) SSID() string { return c.ssid }

// Password returns the network password
func (c Credential) Password() string { return c.password }
