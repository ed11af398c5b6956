// Package discovery finds fieldlink devices on the local network over mDNS.
//
// Devices advertise the "_fieldlink._tcp" service type. The TXT record
// carries the device name and one entry per active GATT service:
//
//	name=fieldlink-7f3f
//	svc=7f3f0001-6b7c-4f2e-9b8a-1a2b3c4d5e6f
//	svc=9f5f0001-8d9e-6f4e-bd0c-3c4d5e6f7180
//
// The same encoding is used by the device side (TXTRecords) and the
// installer side (Scanner), so a device that is still provisioning can be
// told apart by its advertised Provisioning service.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(5 * time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d)
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
