package qmux

import (
	"time"

	"github.com/behrlich/go-qmux/internal/constants"
)

// Re-exported timing and protocol constants, for callers that want to
// reference them without importing internal/constants directly.
const (
	ControlServiceID = constants.ControlServiceID
	DefaultCallTimeout time.Duration = constants.DefaultCallTimeout
)
