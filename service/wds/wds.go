// Package wds implements the Wireless Data Service's current-settings
// response decoder: the packet-data session's negotiated IPv4 address,
// among other TLVs the modem may or may not include depending on
// firmware and requested settings mask.
package wds

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/behrlich/go-qmux/internal/tlv"
)

const (
	ServiceID = 0x01

	messageGetCurrentSettings = 0x002D

	tlvIPv4Address = 0x1E
)

// CurrentSettings is the subset of get_current_settings fields this codec
// extracts. IPv4Address is nil when the response carries no IPv4 TLV
// (e.g. an IPv6-only session).
type CurrentSettings struct {
	IPv4Address net.IP
}

// DecodeGetCurrentSettings parses a get_current_settings response. Any TLV
// it does not recognize — including ones placed between TLVs it does
// recognize — is skipped without affecting the fields it does extract,
// per the TLV kernel's unknown-tag tolerance.
func DecodeGetCurrentSettings(message []byte) (any, error) {
	records, err := tlv.Iter(message)
	if err != nil {
		return nil, fmt.Errorf("wds: decode current settings: %w", err)
	}

	var settings CurrentSettings

	for _, rec := range records {
		switch rec.Tag {
		case tlvIPv4Address:
			if len(rec.Value) != 4 {
				return nil, fmt.Errorf("wds: IPv4 address TLV has length %d, want 4", len(rec.Value))
			}
			addr := binary.BigEndian.Uint32(rec.Value)
			settings.IPv4Address = net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
		default:
			// unrecognized TLV (e.g. a firmware-specific extension): skipped.
		}
	}

	return settings, nil
}

// GetCurrentSettingsMessageID is exported for callers building the
// request side of this call with a generic TLV builder; this package only
// implements the response decoder.
const GetCurrentSettingsMessageID = messageGetCurrentSettings
