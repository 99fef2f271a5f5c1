package frames

import "github.com/cockroachdb/errors"

var (
	// ErrTimeout marks a blocking wait that exceeded its timeout. It is fatal.
	ErrTimeout = errors.New("wait timed out")

	// ErrSurfaceClosed marks a window that closed while the engine waited on it.
	ErrSurfaceClosed = errors.New("surface closed")

	// ErrDeviceLost marks an unexpected result from the graphics driver.
	ErrDeviceLost = errors.New("unexpected device result")
)
