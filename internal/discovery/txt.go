package discovery

import (
	"strings"

	"github.com/google/uuid"
)

// TXT record keys
const (
	TXTName    = "name"
	TXTService = "svc"
)

// TXTRecords encodes a device name and its active services
func TXTRecords(name string, services []uuid.UUID) []string {
	txt := make([]string, 0, len(services)+1)
	txt = append(txt, TXTName+"="+name)
	for _, s := range services {
		txt = append(txt, TXTService+"="+s.String())
	}
	return txt
}

// ParseTXT decodes TXT records. Unknown keys land in metadata; malformed
// service identifiers are skipped.
func ParseTXT(records []string) (name string, services []uuid.UUID, metadata map[string]string) {
	metadata = make(map[string]string)
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		switch key {
		case TXTName:
			name = value
		case TXTService:
			if id, err := uuid.Parse(value); err == nil {
				services = append(services, id)
			}
		default:
			metadata[key] = value
		}
	}
	return name, services, metadata
}
