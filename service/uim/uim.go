// Package uim implements the UIM (SIM/USIM) service's transparent-read
// request and response codec, grounded on the request/response contract
// (qmux.Request) the transport defines and nothing else — it is tested
// entirely by feeding bytes to its decoder, without a transport mock.
package uim

import (
	"encoding/binary"
	"fmt"

	"github.com/behrlich/go-qmux/internal/tlv"
	"github.com/behrlich/go-qmux/qmux"
)

const (
	ServiceID = 0x0B

	messageReadTransparent = 0x0020

	tlvSessionInfo  = 0x01
	tlvFileID       = 0x02
	tlvReadResult   = 0x11
	tlvResponseCard = 0x10
)

// SessionType selects which UIM session a request runs against.
type SessionType uint8

const (
	SessionPrimaryGWProvisioning SessionType = 0x00
	SessionPrimary1XProvisioning SessionType = 0x01
	SessionCardSlot1             SessionType = 0x06
)

// ReadTransparentRequest builds a transparent-read request against fileID
// at path (a sequence of path component ids, outermost first), for the
// given session.
func ReadTransparentRequest(session SessionType, fileID uint16, path []uint16) qmux.Request {
	sessionInfo := []byte{byte(session), 0x00} // session_type, aid_length=0 (no AID)

	fileInfo := make([]byte, 2+1+2*len(path))
	binary.LittleEndian.PutUint16(fileInfo[0:2], fileID)
	fileInfo[2] = byte(len(path))
	for i, component := range path {
		binary.LittleEndian.PutUint16(fileInfo[3+2*i:5+2*i], component)
	}

	tlvArea := tlv.BuildAll([]tlv.TLV{
		{Tag: tlvSessionInfo, Value: sessionInfo},
		{Tag: tlvFileID, Value: fileInfo},
	})

	payload := make([]byte, 4+len(tlvArea))
	binary.LittleEndian.PutUint16(payload[0:2], messageReadTransparent)
	binary.LittleEndian.PutUint16(payload[2:4], uint16(len(tlvArea)))
	copy(payload[4:], tlvArea)

	return qmux.Request{
		ServiceID: ServiceID,
		Name:      "uim.read_transparent",
		Payload:   payload,
		Decode:    decodeReadTransparent,
	}
}

// ReadTransparentResponse is the decoded result of a transparent read.
// SW1/SW2 are nil when the response carries no card-status TLV, which is
// normal for a successful read.
type ReadTransparentResponse struct {
	ReadResult []byte
	SW1        *uint8
	SW2        *uint8
}

func decodeReadTransparent(message []byte) (any, error) {
	records, err := tlv.Iter(message)
	if err != nil {
		return nil, fmt.Errorf("uim: decode transparent read: %w", err)
	}

	resp := ReadTransparentResponse{}

	for _, rec := range records {
		switch rec.Tag {
		case tlvReadResult:
			resp.ReadResult = rec.Value
		case tlvResponseCard:
			if len(rec.Value) != 2 {
				return nil, fmt.Errorf("uim: card status TLV has length %d, want 2", len(rec.Value))
			}
			sw1, sw2 := rec.Value[0], rec.Value[1]
			resp.SW1, resp.SW2 = &sw1, &sw2
		default:
			// unrecognized TLV: skipped, per the codec kernel's compatibility rule.
		}
	}

	if resp.ReadResult == nil {
		return nil, fmt.Errorf("uim: response missing read result TLV")
	}

	return resp, nil
}

// ICCID applies the BCD-swapped-nibble decoding every ICCID read result
// uses: each byte's low nibble is the first decimal digit, its high
// nibble the second.
func ICCID(readResult []byte) string {
	digits := make([]byte, 0, len(readResult)*2)
	for _, b := range readResult {
		digits = append(digits, '0'+(b&0x0F), '0'+(b>>4))
	}
	return string(digits)
}
