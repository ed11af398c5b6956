package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/fieldlink/internal/device"
)

// StatusRecord is the parsed diagnostic status record
// ("STATE:BLE=1,WIFI=2,OTA_MODE=0,IP=192.168.1.20")
type StatusRecord struct {
	ClientConnected bool
	Network         device.NetworkState
	TransferMode    bool
	Address         string
}

// ParseStatusRecord parses the StatusOut value
func ParseStatusRecord(s string) (StatusRecord, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), "STATE:")
	if !ok {
		return StatusRecord{}, fmt.Errorf("unexpected status record %q", s)
	}

	var rec StatusRecord
	for _, part := range strings.Split(body, ",") {
		key, value, _ := strings.Cut(part, "=")
		switch key {
		case "BLE":
			rec.ClientConnected = value == "1"
		case "WIFI":
			n, err := strconv.Atoi(value)
			if err != nil {
				return StatusRecord{}, fmt.Errorf("invalid WIFI field %q", value)
			}
			rec.Network = device.NetworkState(n)
		case "OTA_MODE":
			rec.TransferMode = value == "1"
		case "IP":
			rec.Address = value
		}
	}
	return rec, nil
}

// String renders the record for humans
func (r StatusRecord) String() string {
	return fmt.Sprintf("network=%s address=%s transfer_mode=%t client=%t",
		r.Network, r.Address, r.TransferMode, r.ClientConnected)
}
