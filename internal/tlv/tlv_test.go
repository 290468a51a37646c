package tlv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndIterRoundTrip(t *testing.T) {
	in := []TLV{
		{Tag: 0x02, Value: []byte{0x00, 0x00, 0x00, 0x00}},
		{Tag: 0x10, Value: []byte{0x01}},
		{Tag: 0x11, Value: []byte{0x64, 0x73, 0x03, 0x04, 0x00, 0x00, 0x10, 0x52, 0x70, 0x20}},
	}

	out, err := Iter(BuildAll(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestIterEmptyBuffer(t *testing.T) {
	out, err := Iter(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestIterTruncatedHeader(t *testing.T) {
	_, err := Iter([]byte{0x11, 0x02})
	assert.Error(t, err)
}

func TestIterTruncatedValue(t *testing.T) {
	_, err := Iter([]byte{0x11, 0x04, 0x00, 0xAA, 0xBB})
	assert.Error(t, err)
}

func TestUnknownTagSkipIsLeftIdentity(t *testing.T) {
	known := []TLV{{Tag: 0x1E, Value: []byte{0x0A, 0x0A, 0x0A, 0x01}}}

	decode := func(tlvs []TLV) ([]byte, bool) {
		for _, tl := range tlvs {
			switch tl.Tag {
			case 0x1E:
				return tl.Value, true
			}
		}
		return nil, false
	}

	withoutUnknown, ok := decode(known)
	require.True(t, ok)

	withUnknown := append([]TLV{{Tag: 0xAA, Value: []byte{0x01, 0x02}}}, known...)
	result, ok := decode(withUnknown)
	require.True(t, ok)
	assert.Equal(t, withoutUnknown, result)
}

func TestFind(t *testing.T) {
	tlvs := []TLV{{Tag: 0x01, Value: []byte{0x01}}, {Tag: 0x02, Value: []byte{0x02}}}

	found, ok := Find(tlvs, 0x02)
	require.True(t, ok)
	assert.Equal(t, byte(0x02), found.Value[0])

	_, ok = Find(tlvs, 0x99)
	assert.False(t, ok)
}
