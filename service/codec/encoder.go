package codec

import (
	"github.com/kataras/golog"
)

var logger = golog.Child("[codec]")

// Encoder wraps one backend encoder handle together with the frame
// accumulation buffer its encode callback writes into.
//
// An Encoder may be handed across goroutines, but calls on a single instance
// must be serialized by the caller; concurrent Encode/SetBitrate/SetFramerate
// on the same instance are not supported.
type Encoder struct {
	table  encodeTable
	handle backendHandle

	// frames is the accumulation buffer. Cleared on entry to every Encode
	// call and returned by reference afterwards; the caller must drain it
	// before the next call.
	frames []EncodeFrame

	Ctx EncodeContext
}

// NewEncoder constructs an encoder for the given context. Odd width or height
// fails with ErrInvalidGeometry before any backend is consulted; a backend
// refusing the configuration fails with ErrBackendRejected.
func NewEncoder(ctx EncodeContext) (*Encoder, error) {
	if ctx.Dynamic.Width%2 == 1 || ctx.Dynamic.Height%2 == 1 {
		return nil, ErrInvalidGeometry
	}
	table := lookupTable(ctx.Feature.Backend)
	if table == nil {
		return nil, ErrBackendRejected
	}
	handle, err := table.New(encodeParams{
		Device:    ctx.Dynamic.Device,
		LUID:      ctx.Feature.LUID,
		API:       ctx.Feature.API,
		Format:    ctx.Feature.Format,
		Width:     ctx.Dynamic.Width,
		Height:    ctx.Dynamic.Height,
		KBitrate:  ctx.Dynamic.KBitrate,
		Framerate: ctx.Dynamic.Framerate,
		GOP:       ctx.Dynamic.GOP,
	})
	if err != nil || handle == nil {
		return nil, ErrBackendRejected
	}
	return &Encoder{
		table:  table,
		handle: handle,
		frames: make([]EncodeFrame, 0, 4),
		Ctx:    ctx,
	}, nil
}

// Encode submits one input frame and returns every output frame the backend
// produced during the call, zero or more, in callback order. The returned
// slice aliases the encoder's accumulation buffer: it is valid until the next
// Encode call, which clears it again.
//
// timeoutMS is forwarded to the backend; enforcement is the backend's
// responsibility.
func (e *Encoder) Encode(frame InputFrame, timeoutMS int64) ([]EncodeFrame, error) {
	if e == nil || e.handle == nil {
		return nil, ErrEncoderClosed
	}
	e.frames = e.frames[:0]
	status := e.table.Encode(e.handle, frame, e.accumulate, timeoutMS)
	if status != 0 {
		return nil, &EncodeError{Code: status}
	}
	return e.frames, nil
}

// accumulate is the encode callback target. It runs synchronously inside the
// backend's encode call; the payload is only valid for this invocation, so it
// is copied into an independently owned buffer before the frame is recorded.
func (e *Encoder) accumulate(data []byte, key bool, pts int64) {
	e.frames = append(e.frames, EncodeFrame{
		Data: append([]byte(nil), data...),
		PTS:  pts,
		Key:  key,
	})
}

// SetBitrate forwards the new target bitrate to the backend. The backend's
// verdict is surfaced verbatim; no local validation beyond the int32 domain.
func (e *Encoder) SetBitrate(kbps int32) error {
	if e == nil || e.handle == nil {
		return ErrEncoderClosed
	}
	if status := e.table.SetBitrate(e.handle, kbps); status != 0 {
		return &EncodeError{Code: status}
	}
	return nil
}

// SetFramerate forwards the new framerate to the backend.
func (e *Encoder) SetFramerate(fps int32) error {
	if e == nil || e.handle == nil {
		return ErrEncoderClosed
	}
	if status := e.table.SetFramerate(e.handle, fps); status != 0 {
		return &EncodeError{Code: status}
	}
	return nil
}

// Close releases the backend handle. Safe to call more than once; the handle
// is nilled before the destroy call returns control, so a double close never
// reaches the backend twice.
func (e *Encoder) Close() error {
	if e == nil || e.handle == nil {
		return nil
	}
	handle := e.handle
	e.handle = nil
	e.table.Destroy(handle)
	e.frames = nil
	logger.Debugf("encoder released backend=%s", e.Ctx.Feature.Backend)
	return nil
}
