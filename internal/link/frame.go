package link

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Frame operations
const (
	OpWrite    = "write"
	OpRead     = "read"
	OpNotify   = "notify"
	OpValue    = "value"
	OpError    = "error"
	OpServices = "services"
)

// Path is the HTTP path the link server listens on
const Path = "/link"

// Frame is one message on the link
type Frame struct {
	Op       string   `json:"op"`
	Char     string   `json:"char,omitempty"`
	Data     []byte   `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
	Services []string `json:"services,omitempty"`
}

// CharUUID parses the characteristic identifier
func (f *Frame) CharUUID() (uuid.UUID, error) {
	id, err := uuid.Parse(f.Char)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid characteristic %q: %w", f.Char, err)
	}
	return id, nil
}

// ServiceUUIDs parses the services list, skipping malformed entries
func (f *Frame) ServiceUUIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(f.Services))
	for _, s := range f.Services {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// DecodeFrame parses a JSON text frame
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if f.Op == "" {
		return nil, fmt.Errorf("malformed frame: missing op")
	}
	return &f, nil
}

func servicesFrame(services []uuid.UUID) Frame {
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.String()
	}
	return Frame{Op: OpServices, Services: names}
}
