package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-qmux/internal/tlv"
)

func TestEncodeDecodeRoundTripService(t *testing.T) {
	payload := buildInnerMessage(t, 0x0020, nil)

	frame, err := Encode(0x0B, 0x01, 300, payload)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), frame[0])

	env, err := decodeOne(frame)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x0B), env.ServiceID)
	assert.Equal(t, uint8(0x01), env.ClientID)
	assert.Equal(t, uint16(300), env.TransactionID)
	assert.Equal(t, uint16(0x0020), env.MessageID)
	assert.False(t, env.Indication)
}

func TestEncodeDecodeRoundTripControl(t *testing.T) {
	payload := buildInnerMessage(t, 0x0022, nil)

	frame, err := Encode(0x00, 0x00, 5, payload)
	require.NoError(t, err)

	env, err := decodeOne(frame)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x00), env.ServiceID)
	assert.Equal(t, uint16(5), env.TransactionID)
}

func TestEncodeControlTransactionIDOverflow(t *testing.T) {
	_, err := Encode(0x00, 0x00, 300, nil)
	assert.Error(t, err)
}

func TestDecodeResultTLV(t *testing.T) {
	result := tlv.Build(0x02, []byte{0x01, 0x00, 0x0C, 0x00}) // failure, qmi_error=0x000C
	payload := buildInnerMessage(t, 0x0020, result)

	frame, err := Encode(0x0B, 0x01, 256, payload)
	require.NoError(t, err)

	env, err := decodeOne(frame)
	require.NoError(t, err)
	require.True(t, env.HasResult)
	assert.Equal(t, uint16(1), env.QMIResult)
	assert.Equal(t, uint16(0x000C), env.QMIError)
	assert.Empty(t, env.Message)
}

func TestDecodeIndicationFlag(t *testing.T) {
	payload := buildInnerMessage(t, 0x0001, nil)
	frame, err := Encode(0x0B, 0x01, 256, payload)
	require.NoError(t, err)
	frame[3] = 0x80 // set indication bit

	env, err := decodeOne(frame)
	require.NoError(t, err)
	assert.True(t, env.Indication)
}

func TestFramerBuffersPartialReads(t *testing.T) {
	payload := buildInnerMessage(t, 0x0020, nil)
	frame, err := Encode(0x0B, 0x01, 256, payload)
	require.NoError(t, err)

	f := NewFramer()
	f.Append(frame[:3])
	env, ok, err := f.Next()
	require.NoError(t, err)
	require.False(t, ok)
	assert.Equal(t, uint16(0), env.TransactionID)

	f.Append(frame[3:])
	env, ok, err = f.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(256), env.TransactionID)
}

func TestFramerExtractsMultipleFrames(t *testing.T) {
	p1 := buildInnerMessage(t, 0x0020, nil)
	p2 := buildInnerMessage(t, 0x0021, nil)
	f1, err := Encode(0x0B, 0x01, 256, p1)
	require.NoError(t, err)
	f2, err := Encode(0x0B, 0x01, 257, p2)
	require.NoError(t, err)

	f := NewFramer()
	f.Append(append(append([]byte{}, f1...), f2...))

	env1, ok, err := f.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(256), env1.TransactionID)

	env2, ok, err := f.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(257), env2.TransactionID)

	_, ok, err = f.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFramerZeroLengthIsDecodeError(t *testing.T) {
	f := NewFramer()
	f.Append([]byte{0x01, 0x00, 0x00})
	_, ok, err := f.Next()
	assert.False(t, ok)
	assert.Error(t, err)
}

// buildInnerMessage assembles message_id + tlv-area-length + tlv-area, the
// payload shape a request descriptor already carries per the request/
// response contract.
func buildInnerMessage(t *testing.T, messageID uint16, extra []byte) []byte {
	t.Helper()
	area := append([]byte{}, extra...)
	buf := make([]byte, 4+len(area))
	buf[0] = byte(messageID)
	buf[1] = byte(messageID >> 8)
	buf[2] = byte(len(area))
	buf[3] = byte(len(area) >> 8)
	copy(buf[4:], area)
	return buf
}
