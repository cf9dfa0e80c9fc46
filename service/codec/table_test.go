package codec

import (
	"testing"
)

// fakeTable is a scriptable capability table for prober and encoder tests.
type fakeTable struct {
	kind       BackendKind
	candidates []probeCandidate
	serialized bool

	newFn          func(p encodeParams) (backendHandle, error)
	encodeFn       func(h backendHandle, frame InputFrame, sink frameSink, timeoutMS int64) int32
	destroyFn      func(h backendHandle)
	setBitrateFn   func(h backendHandle, kbps int32) int32
	setFramerateFn func(h backendHandle, fps int32) int32
	testFn         func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32)
}

func (f *fakeTable) Kind() BackendKind            { return f.kind }
func (f *fakeTable) Candidates() []probeCandidate { return f.candidates }
func (f *fakeTable) SerializedProbe() bool        { return f.serialized }

func (f *fakeTable) New(p encodeParams) (backendHandle, error) {
	if f.newFn == nil {
		return struct{}{}, nil
	}
	return f.newFn(p)
}

func (f *fakeTable) Encode(h backendHandle, frame InputFrame, sink frameSink, timeoutMS int64) int32 {
	if f.encodeFn == nil {
		return 0
	}
	return f.encodeFn(h, frame, sink, timeoutMS)
}

func (f *fakeTable) Destroy(h backendHandle) {
	if f.destroyFn != nil {
		f.destroyFn(h)
	}
}

func (f *fakeTable) SetBitrate(h backendHandle, kbps int32) int32 {
	if f.setBitrateFn == nil {
		return 0
	}
	return f.setBitrateFn(h, kbps)
}

func (f *fakeTable) SetFramerate(h backendHandle, fps int32) int32 {
	if f.setFramerateFn == nil {
		return 0
	}
	return f.setFramerateFn(h, fps)
}

func (f *fakeTable) Test(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
	if f.testFn == nil {
		return 0, -1
	}
	return f.testFn(descs, luidFilter, p)
}

// stubTables swaps the backend dispatch for the duration of a test. Kinds
// missing from the map resolve to nil, i.e. no such backend.
func stubTables(t *testing.T, tables map[BackendKind]encodeTable) {
	t.Helper()
	prev := lookupTable
	lookupTable = func(kind BackendKind) encodeTable {
		return tables[kind]
	}
	t.Cleanup(func() {
		lookupTable = prev
	})
}

// testBaseline is the standard probe configuration used across tests.
var testBaseline = DynamicContext{
	Width:     1920,
	Height:    1080,
	KBitrate:  5000,
	Framerate: 30,
	GOP:       60,
}
