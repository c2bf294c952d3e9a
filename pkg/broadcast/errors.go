package broadcast

import "errors"

var (
	// ErrClosed is returned when broadcasting on a closed broadcaster
	ErrClosed = errors.New("broadcast: broadcaster is closed")
)
