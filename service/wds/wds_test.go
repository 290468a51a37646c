package wds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/go-qmux/internal/tlv"
)

func TestDecodeGetCurrentSettingsToleratesUnknownTLV(t *testing.T) {
	message := tlv.BuildAll([]tlv.TLV{
		{Tag: 0x15, Value: []byte{0x01}}, // known-in-principle but unhandled here (PDN type)
		{Tag: 0xAA, Value: []byte{0xDE, 0xAD}},
		{Tag: tlvIPv4Address, Value: []byte{192, 0, 2, 15}},
	})

	value, err := DecodeGetCurrentSettings(message)
	require.NoError(t, err)

	settings, ok := value.(CurrentSettings)
	require.True(t, ok)
	require.NotNil(t, settings.IPv4Address)
	assert.Equal(t, "192.0.2.15", settings.IPv4Address.String())
}

func TestDecodeGetCurrentSettingsNoIPv4(t *testing.T) {
	message := tlv.Build(0xAA, []byte{0x00})
	value, err := DecodeGetCurrentSettings(message)
	require.NoError(t, err)

	settings := value.(CurrentSettings)
	assert.Nil(t, settings.IPv4Address)
}

func TestDecodeGetCurrentSettingsMalformedIPv4(t *testing.T) {
	message := tlv.Build(tlvIPv4Address, []byte{1, 2, 3})
	_, err := DecodeGetCurrentSettings(message)
	assert.Error(t, err)
}
