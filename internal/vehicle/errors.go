package vehicle

import "errors"

var (
	// ErrConnection wraps every failure to establish a session.
	ErrConnection = errors.New("vehicle connection failed")

	// ErrNotConnected is returned by commands issued without a session.
	ErrNotConnected = errors.New("vehicle not connected")

	// ErrAlreadyConnected is returned by Connect on a live or connecting link.
	ErrAlreadyConnected = errors.New("vehicle already connected")

	// ErrAckTimeout reports a command that received no matching acknowledgement.
	ErrAckTimeout = errors.New("command acknowledgement timed out")

	// ErrUnknownMode is returned for mode names outside the ArduSub table.
	ErrUnknownMode = errors.New("unknown flight mode")

	// ErrInvalidPWM is returned for control values outside the PWM range.
	ErrInvalidPWM = errors.New("pwm value out of range")

	// ErrInvalidLevel is returned for light levels outside 0-100.
	ErrInvalidLevel = errors.New("light level out of range")
)
