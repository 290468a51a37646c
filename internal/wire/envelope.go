// Package wire implements the outer QMUX envelope: encode/decode of the
// sentinel-length-flags-service-client-transaction header, buffering of
// partial reads across channel deliveries, and extraction of the inner
// message id / TLV-area length / result TLV.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/behrlich/go-qmux/internal/constants"
	"github.com/behrlich/go-qmux/internal/tlv"
)

// Envelope is a fully decoded QMUX frame: outer header plus inner message
// id and TLV-area length, with the result TLV (if present) already pulled
// out.
type Envelope struct {
	Indication    bool
	ServiceID     uint8
	ClientID      uint8
	TransactionID uint16
	MessageID     uint16

	// QMIResult and QMIError are only meaningful when HasResult is true.
	HasResult bool
	QMIResult uint16
	QMIError  uint16

	// Message is the TLV area following the result TLV, i.e. the bytes a
	// per-request decoder consumes. For an indication this is the entire
	// TLV area since there is no result TLV.
	Message []byte
}

// transactionWidth returns the width, in bytes, of the transaction id
// field for the given service id.
func transactionWidth(serviceID uint8) int {
	if serviceID == constants.ControlServiceID {
		return constants.ControlTransactionIDWidth
	}
	return constants.ServiceTransactionIDWidth
}

// Encode produces the full outbound QMUX frame: outer header followed by
// payload, where payload already carries the inner message id, TLV-area
// length, and TLV body (per the request/response contract; the transport
// does not interpret it).
func Encode(serviceID, clientID uint8, transactionID uint16, payload []byte) ([]byte, error) {
	width := transactionWidth(serviceID)
	if width == constants.ControlTransactionIDWidth && transactionID > 0xFF {
		return nil, fmt.Errorf("wire: control transaction id %d does not fit in 1 byte", transactionID)
	}

	// header_after_length = flags + service_id + client_id + request_type + transaction_id + payload
	headerAfterLength := 1 + 1 + 1 + 1 + width + len(payload)
	length := headerAfterLength + 2

	buf := make([]byte, 0, 1+2+headerAfterLength)
	buf = append(buf, constants.Sentinel)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(length))
	buf = append(buf, lenBytes...)
	buf = append(buf, 0x00) // flags
	buf = append(buf, serviceID)
	buf = append(buf, clientID)
	buf = append(buf, 0x00) // request_type

	if width == 1 {
		buf = append(buf, byte(transactionID))
	} else {
		tidBytes := make([]byte, 2)
		binary.LittleEndian.PutUint16(tidBytes, transactionID)
		buf = append(buf, tidBytes...)
	}

	buf = append(buf, payload...)
	return buf, nil
}

// decodeOne parses a single complete QMUX frame (sentinel through the end
// of its declared length) into an Envelope.
func decodeOne(frame []byte) (Envelope, error) {
	if len(frame) < constants.EnvelopeHeaderSize {
		return Envelope{}, fmt.Errorf("wire: frame shorter than envelope header: %d bytes", len(frame))
	}
	if frame[0] != constants.Sentinel {
		return Envelope{}, fmt.Errorf("wire: bad sentinel 0x%02x", frame[0])
	}

	flags := frame[3]
	serviceID := frame[4]
	clientID := frame[5]
	// frame[6] is request_type; ignored on decode.

	width := transactionWidth(serviceID)
	tidStart := constants.EnvelopeHeaderSize + 1
	if len(frame) < tidStart+width {
		return Envelope{}, fmt.Errorf("wire: frame too short for %d-byte transaction id", width)
	}

	var transactionID uint16
	if width == 1 {
		transactionID = uint16(frame[tidStart])
	} else {
		transactionID = binary.LittleEndian.Uint16(frame[tidStart : tidStart+2])
	}

	body := frame[tidStart+width:]
	if len(body) < 4 {
		return Envelope{}, fmt.Errorf("wire: frame body too short for message header: %d bytes", len(body))
	}
	messageID := binary.LittleEndian.Uint16(body[0:2])
	tlvAreaLen := binary.LittleEndian.Uint16(body[2:4])
	tlvArea := body[4:]
	if int(tlvAreaLen) != len(tlvArea) {
		return Envelope{}, fmt.Errorf("wire: declared TLV-area length %d does not match actual %d bytes", tlvAreaLen, len(tlvArea))
	}

	env := Envelope{
		Indication:    flags&constants.IndicationFlagMask != 0,
		ServiceID:     serviceID,
		ClientID:      clientID,
		TransactionID: transactionID,
		MessageID:     messageID,
	}

	records, err := tlv.Iter(tlvArea)
	if err != nil {
		return Envelope{}, fmt.Errorf("wire: %w", err)
	}

	if len(records) > 0 && records[0].Tag == constants.ResultTLVTag {
		if len(records[0].Value) != 4 {
			return Envelope{}, fmt.Errorf("wire: result TLV has length %d, want 4", len(records[0].Value))
		}
		env.HasResult = true
		env.QMIResult = binary.LittleEndian.Uint16(records[0].Value[0:2])
		env.QMIError = binary.LittleEndian.Uint16(records[0].Value[2:4])
		env.Message = tlvArea[7:] // 3-byte TLV header + 4-byte result value
	} else {
		env.Message = tlvArea
	}

	return env, nil
}
