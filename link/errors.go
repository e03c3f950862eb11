package link

import "errors"

var (
	// ErrLinkUnavailable is returned when the host radio is absent or disabled.
	ErrLinkUnavailable = errors.New("link unavailable: no usable bluetooth radio")

	// ErrNoDeviceSelected is returned when no matching hub was selected
	// before the scan ended.
	ErrNoDeviceSelected = errors.New("no device selected")

	// ErrWriteUnsupported is returned when the control characteristic
	// offers neither write-with-response nor a generic write.
	ErrWriteUnsupported = errors.New("control characteristic does not support writes")

	// ErrLinkLost is returned by operations on a connection that was
	// dropped by the remote end or closed locally.
	ErrLinkLost = errors.New("link lost")

	// ErrAlreadyConnected is returned by Connect when a connection is
	// already established or in progress.
	ErrAlreadyConnected = errors.New("already connected")
)
