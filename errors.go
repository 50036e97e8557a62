package realtime

import "errors"

var (
	// ErrResponseInProgress rejects a response request while another one is
	// requested or still generating.
	ErrResponseInProgress = errors.New("response already in progress")
	// ErrNotConnected is returned by commands issued before Connect.
	ErrNotConnected = errors.New("not connected")
	// ErrSessionTimeout is returned by Connect when the server does not
	// confirm the session configuration in time.
	ErrSessionTimeout = errors.New("timeout waiting for session update")
)
