// Package gatt catalogs the device's wireless services and characteristics.
//
// The identifiers are fixed 128-bit UUIDs shared with installer clients. The
// package also defines Peripheral, the narrow interface services use to push
// notifications and publish readable values through whatever radio stack
// carries them.
package gatt

import "github.com/google/uuid"

// Diagnostic service
var (
	DiagnosticService = uuid.MustParse("7f3f0001-6b7c-4f2e-9b8a-1a2b3c4d5e6f")
	DiagLogOut        = uuid.MustParse("7f3f0002-6b7c-4f2e-9b8a-1a2b3c4d5e6f")
	DiagCommandIn     = uuid.MustParse("7f3f0003-6b7c-4f2e-9b8a-1a2b3c4d5e6f")
	DiagStatusOut     = uuid.MustParse("7f3f0005-6b7c-4f2e-9b8a-1a2b3c4d5e6f")
)

// Provisioning service
var (
	ProvisioningService = uuid.MustParse("8f4f0001-7c8d-5f3e-ac9b-2b3c4d5e6f70")
	ProvCredentialIn    = uuid.MustParse("8f4f0002-7c8d-5f3e-ac9b-2b3c4d5e6f70")
)

// Firmware transfer service
var (
	FirmwareService = uuid.MustParse("9f5f0001-8d9e-6f4e-bd0c-3c4d5e6f7180")
	FwControlIn     = uuid.MustParse("9f5f0002-8d9e-6f4e-bd0c-3c4d5e6f7180")
	FwDataIn        = uuid.MustParse("9f5f0003-8d9e-6f4e-bd0c-3c4d5e6f7180")
	FwStatusOut     = uuid.MustParse("9f5f0004-8d9e-6f4e-bd0c-3c4d5e6f7180")
)
