package qmux

import (
	"fmt"

	"github.com/behrlich/go-qmux/internal/schema"
)

// QMIErrorCode is the numeric qmi_error value carried in a failure
// response's result TLV. The named constants below cover the codes the
// bundled service decoders and reactor tests reference by name; String()
// consults the full published table in internal/schema for every other
// recognized code, and falls back to a numeric form for anything neither
// knows about.
type QMIErrorCode uint16

const (
	QMIErrNone                   QMIErrorCode = 0x0000
	QMIErrMalformedMsg           QMIErrorCode = 0x0001
	QMIErrNoMemory               QMIErrorCode = 0x0002
	QMIErrInternal               QMIErrorCode = 0x0003
	QMIErrAborted                QMIErrorCode = 0x0004
	QMIErrClientIDsExhausted     QMIErrorCode = 0x0005
	QMIErrUnabortableTransaction QMIErrorCode = 0x0006
	QMIErrInvalidClientID        QMIErrorCode = 0x0007
	QMIErrNoThresholdsProvided   QMIErrorCode = 0x0008
	QMIErrInvalidHandle          QMIErrorCode = 0x0009
	QMIErrInvalidProfile         QMIErrorCode = 0x000A
	QMIErrInvalidPinID           QMIErrorCode = 0x000B
	QMIErrIncorrectPin           QMIErrorCode = 0x000C
	QMIErrNoNetworkFound         QMIErrorCode = 0x000D
	QMIErrInvalidArg             QMIErrorCode = 0x0021
	// QMIErrExtendedInternal is used by service-layer list iterators as an
	// end-of-list sentinel.
	QMIErrExtendedInternal QMIErrorCode = 0x0051
)

// String returns the symbolic name for a known code, falling back to a
// numeric representation for codes the table does not recognize — an
// unrecognized code is a modem detail, not a decode failure.
func (c QMIErrorCode) String() string {
	if sym := schema.ErrorSymbol(uint16(c)); sym != "" {
		return sym
	}
	return fmt.Sprintf("qmi_error_0x%04x", uint16(c))
}

// Label returns the exported-identifier form of the code's symbolic name
// (e.g. "NoMemory"), for log lines that prefer CamelCase over snake_case.
func (c QMIErrorCode) Label() string {
	if label := schema.ErrorLabel(uint16(c)); label != "" {
		return label
	}
	return c.String()
}

// FromUint16 converts a raw qmi_error value into a QMIErrorCode. The
// conversion never fails; an unrecognized value simply stringifies
// numerically.
func FromUint16(raw uint16) QMIErrorCode {
	return QMIErrorCode(raw)
}
