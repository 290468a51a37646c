// Package constants holds default sizes and timings shared by the reactor,
// the device channel, and the framer.
package constants

import "time"

// Protocol-level constants
const (
	// Sentinel is the first byte of every QMUX frame.
	Sentinel byte = 0x01

	// ControlServiceID is the reserved service id for the QMI Control service.
	ControlServiceID uint8 = 0

	// EnvelopeHeaderSize is the number of bytes from the sentinel through
	// client_id. The 1-byte request_type follows, then the variable-width
	// transaction id.
	EnvelopeHeaderSize = 6

	// ControlTransactionIDWidth is the width, in bytes, of the transaction
	// id field for control-service (service id 0) frames.
	ControlTransactionIDWidth = 1

	// ServiceTransactionIDWidth is the width, in bytes, of the transaction
	// id field for all non-control service frames.
	ServiceTransactionIDWidth = 2

	// ResultTLVTag is the TLV tag carrying (qmi_result, qmi_error) on a response.
	ResultTLVTag uint8 = 0x02

	// IndicationFlagMask isolates the indication bit within the QMUX flags byte.
	IndicationFlagMask byte = 0x80
)

// Transaction id ranges
const (
	// MinControlTransactionID and MaxControlTransactionID bound the 8-bit
	// control transaction id counter; 0 is reserved/invalid.
	MinControlTransactionID uint16 = 1
	MaxControlTransactionID uint16 = 255

	// MinServiceTransactionID and MaxServiceTransactionID bound the 16-bit
	// service transaction id counter; values <= 255 are reserved for control.
	MinServiceTransactionID uint16 = 256
	MaxServiceTransactionID uint16 = 65535
)

// Timing constants
const (
	// DefaultCallTimeout is the default per-call deadline.
	DefaultCallTimeout = 5 * time.Second

	// OuterWaitMultiplier guarantees the reactor's own timeout path wins
	// a race against the caller's wait.
	OuterWaitMultiplier = 2

	// ReopenRetryInterval is how often the reactor retries opening the
	// device after a closed event, while the device node is missing.
	ReopenRetryInterval = 200 * time.Millisecond
)

// Buffer sizing
const (
	// ReadBufferSize is the size of each chunk read from the device channel.
	ReadBufferSize = 4096

	// MaxFrameSize bounds a single QMUX frame to guard against a corrupt
	// length field forcing unbounded buffering.
	MaxFrameSize = 1 << 16
)
