// Package control implements the Control-service (service id 0) client-id
// bootstrap: the one-shot request every other service's calls depend on,
// described as contract-only by the transport (the reactor neither knows
// nor cares what a client id means, only that it belongs in the header).
package control

import (
	"encoding/binary"
	"fmt"

	"github.com/behrlich/go-qmux/internal/constants"
	"github.com/behrlich/go-qmux/internal/tlv"
	"github.com/behrlich/go-qmux/qmux"
)

const (
	messageGetClientID = 0x0022

	tlvServiceID = 0x01
)

// GetClientID builds the request that obtains a client id for serviceID.
// Submit it with clientID 0, since no client id has been allocated yet.
func GetClientID(serviceID uint8) qmux.Request {
	payload := buildPayload(messageGetClientID, tlv.BuildAll([]tlv.TLV{
		{Tag: tlvServiceID, Value: []byte{serviceID}},
	}))

	return qmux.Request{
		ServiceID: constants.ControlServiceID,
		Name:      "control.get_client_id",
		Payload:   payload,
		Decode:    decodeClientID,
	}
}

// ClientIDResult is the decoded response to GetClientID.
type ClientIDResult struct {
	ServiceID uint8
	ClientID  uint8
}

func decodeClientID(message []byte) (any, error) {
	records, err := tlv.Iter(message)
	if err != nil {
		return nil, fmt.Errorf("control: decode client id: %w", err)
	}

	rec, ok := tlv.Find(records, tlvServiceID)
	if !ok {
		return nil, fmt.Errorf("control: response missing service/client id TLV")
	}
	if len(rec.Value) != 2 {
		return nil, fmt.Errorf("control: service/client id TLV has length %d, want 2", len(rec.Value))
	}

	return ClientIDResult{ServiceID: rec.Value[0], ClientID: rec.Value[1]}, nil
}

func buildPayload(messageID uint16, tlvArea []byte) []byte {
	payload := make([]byte, 4+len(tlvArea))
	binary.LittleEndian.PutUint16(payload[0:2], messageID)
	binary.LittleEndian.PutUint16(payload[2:4], uint16(len(tlvArea)))
	copy(payload[4:], tlvArea)
	return payload
}
