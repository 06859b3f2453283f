package models

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput    = errors.New("broker: malformed input")
	ErrBrokerClosed      = errors.New("broker: closed")
	ErrUnsupportedScheme = fmt.Errorf("%w: unsupported callback scheme", ErrMalformedInput)
)

// ErrDeliveryFailed marks an outbound attempt that did not reach the
// subscriber. The broker logs and drops it.
var ErrDeliveryFailed = errors.New("broker: delivery failed")
