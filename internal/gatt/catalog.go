package gatt

import (
	"strings"

	"github.com/google/uuid"
)

// Property is a bitmask of characteristic access rights
type Property uint8

const (
	PropRead Property = 1 << iota
	PropWrite
	PropWriteNoResponse
	PropNotify
)

// Has reports whether all bits of q are set
func (p Property) Has(q Property) bool {
	return p&q == q
}

func (p Property) String() string {
	var parts []string
	if p.Has(PropRead) {
		parts = append(parts, "read")
	}
	if p.Has(PropWrite) {
		parts = append(parts, "write")
	}
	if p.Has(PropWriteNoResponse) {
		parts = append(parts, "write-nr")
	}
	if p.Has(PropNotify) {
		parts = append(parts, "notify")
	}
	return strings.Join(parts, "|")
}

// Characteristic describes one addressable endpoint of a service
type Characteristic struct {
	UUID       uuid.UUID
	Name       string
	Properties Property
}

// Service groups characteristics under one advertised identifier
type Service struct {
	UUID            uuid.UUID
	Name            string
	Characteristics []Characteristic
}

const writable = PropWrite | PropWriteNoResponse

// Services is the full catalog, in advertising order
var Services = []Service{
	{
		UUID: DiagnosticService,
		Name: "Diagnostic",
		Characteristics: []Characteristic{
			{UUID: DiagLogOut, Name: "LogOut", Properties: PropNotify},
			{UUID: DiagCommandIn, Name: "CommandIn", Properties: writable},
			{UUID: DiagStatusOut, Name: "StatusOut", Properties: PropRead | PropNotify},
		},
	},
	{
		UUID: FirmwareService,
		Name: "FirmwareTransfer",
		Characteristics: []Characteristic{
			{UUID: FwControlIn, Name: "ControlIn", Properties: writable},
			{UUID: FwDataIn, Name: "DataIn", Properties: writable},
			{UUID: FwStatusOut, Name: "StatusOut", Properties: PropRead | PropNotify},
		},
	},
	{
		UUID: ProvisioningService,
		Name: "Provisioning",
		Characteristics: []Characteristic{
			{UUID: ProvCredentialIn, Name: "CredentialIn", Properties: writable},
		},
	},
}

// Lookup finds a characteristic and its owning service
func Lookup(char uuid.UUID) (Service, Characteristic, bool) {
	for _, svc := range Services {
		for _, c := range svc.Characteristics {
			if c.UUID == char {
				return svc, c, true
			}
		}
	}
	return Service{}, Characteristic{}, false
}

// ServiceByUUID finds a service in the catalog
func ServiceByUUID(id uuid.UUID) (Service, bool) {
	for _, svc := range Services {
		if svc.UUID == id {
			return svc, true
		}
	}
	return Service{}, false
}

// Name returns a short name for a characteristic or service UUID, falling
// back to the UUID string.
func Name(id uuid.UUID) string {
	if svc, ok := ServiceByUUID(id); ok {
		return svc.Name
	}
	if svc, c, ok := Lookup(id); ok {
		return svc.Name + "." + c.Name
	}
	return id.String()
}
