// Package tlv implements the generic Type-Length-Value codec shared by
// every QMI service payload: build, concatenate, and iterate (tag uint8,
// length uint16 LE, value []byte) records. Unknown-tag tolerance is a
// property of how callers use Iter, not of Iter itself: a decoder that
// switches on tag and ignores the default case gets skip-unknown for free.
package tlv

import (
	"encoding/binary"
	"fmt"
)

// TLV is a single decoded Type-Length-Value record.
type TLV struct {
	Tag   uint8
	Value []byte
}

// Build encodes a single TLV: tag, 16-bit LE length, then value.
func Build(tag uint8, value []byte) []byte {
	buf := make([]byte, 3+len(value))
	buf[0] = tag
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(value)))
	copy(buf[3:], value)
	return buf
}

// BuildAll concatenates a sequence of TLVs in order, as the outbound TLV
// area of a QMI message.
func BuildAll(tlvs []TLV) []byte {
	size := 0
	for _, t := range tlvs {
		size += 3 + len(t.Value)
	}
	out := make([]byte, 0, size)
	for _, t := range tlvs {
		out = append(out, Build(t.Tag, t.Value)...)
	}
	return out
}

// Iter walks a TLV area and returns every record in order. It terminates
// cleanly at the end of the buffer. A truncated trailing record (not
// enough bytes left for the declared length) is a decode error — the
// caller dropped bytes somewhere upstream.
func Iter(data []byte) ([]TLV, error) {
	var out []TLV
	for off := 0; off < len(data); {
		if off+3 > len(data) {
			return nil, fmt.Errorf("tlv: truncated header at offset %d", off)
		}
		tag := data[off]
		length := binary.LittleEndian.Uint16(data[off+1 : off+3])
		start := off + 3
		end := start + int(length)
		if end > len(data) {
			return nil, fmt.Errorf("tlv: tag 0x%02x declares length %d past end of buffer", tag, length)
		}
		value := make([]byte, length)
		copy(value, data[start:end])
		out = append(out, TLV{Tag: tag, Value: value})
		off = end
	}
	return out, nil
}

// Find returns the first TLV with the given tag, if present.
func Find(tlvs []TLV, tag uint8) (TLV, bool) {
	for _, t := range tlvs {
		if t.Tag == tag {
			return t, true
		}
	}
	return TLV{}, false
}
