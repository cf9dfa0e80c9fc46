package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry rejects odd frame dimensions before any backend
	// is consulted. Hardware encoders operate on 4:2:0 surfaces and cannot
	// represent odd extents.
	ErrInvalidGeometry = errors.New("codec: width and height must be even")

	// ErrBackendRejected means the backend's construct call returned no
	// handle for the requested configuration.
	ErrBackendRejected = errors.New("codec: backend rejected encoder configuration")

	// ErrEncoderClosed is returned for calls on a destroyed encoder.
	ErrEncoderClosed = errors.New("codec: encoder closed")
)

// EncodeError carries a backend status code verbatim; this layer never
// interprets it.
type EncodeError struct {
	Code int32
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: backend status %d", e.Code)
}
