package uim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-qmux/internal/tlv"
)

func TestDecodeReadTransparentAndICCID(t *testing.T) {
	readResult := []byte{0x64, 0x73, 0x03, 0x04, 0x00, 0x00, 0x10, 0x52, 0x70, 0x20}
	message := tlv.Build(tlvReadResult, readResult)

	value, err := decodeReadTransparent(message)
	require.NoError(t, err)

	resp, ok := value.(ReadTransparentResponse)
	require.True(t, ok)
	assert.Equal(t, readResult, resp.ReadResult)
	assert.Nil(t, resp.SW1)
	assert.Nil(t, resp.SW2)

	assert.Equal(t, "46373040000001250702", ICCID(resp.ReadResult))
}

func TestDecodeReadTransparentWithCardStatus(t *testing.T) {
	readResult := []byte{0x01, 0x02}
	message := tlv.BuildAll([]tlv.TLV{
		{Tag: tlvReadResult, Value: readResult},
		{Tag: tlvResponseCard, Value: []byte{0x90, 0x00}},
	})

	value, err := decodeReadTransparent(message)
	require.NoError(t, err)

	resp := value.(ReadTransparentResponse)
	require.NotNil(t, resp.SW1)
	require.NotNil(t, resp.SW2)
	assert.Equal(t, uint8(0x90), *resp.SW1)
	assert.Equal(t, uint8(0x00), *resp.SW2)
}

func TestDecodeReadTransparentMissingResult(t *testing.T) {
	_, err := decodeReadTransparent(nil)
	assert.Error(t, err)
}

func TestReadTransparentRequestShape(t *testing.T) {
	req := ReadTransparentRequest(SessionCardSlot1, 0x2FE2, []uint16{0x3F00, 0x7FFF})
	assert.Equal(t, uint8(ServiceID), req.ServiceID)

	records, err := tlv.Iter(req.Payload[4:])
	require.NoError(t, err)

	sessionRec, ok := tlv.Find(records, tlvSessionInfo)
	require.True(t, ok)
	assert.Equal(t, byte(SessionCardSlot1), sessionRec.Value[0])

	fileRec, ok := tlv.Find(records, tlvFileID)
	require.True(t, ok)
	assert.Equal(t, byte(2), fileRec.Value[2])
}
