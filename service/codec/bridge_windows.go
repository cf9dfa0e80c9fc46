//go:build windows

package codec

import (
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// The vendor encoders live in a companion native library built from the
// vendor SDKs. Each vendor exports the same table shape under its own symbol
// prefix:
//
//	<p>_encode_driver_support() -> int32            (0 == linked and usable)
//	<p>_new_encoder(device, luid, api, dataFormat,
//	                width, height, kbitrate, framerate, gop) -> handle|null
//	<p>_encode(handle, texture, callback, obj, ms) -> int32
//	<p>_destroy_encoder(handle)
//	<p>_set_bitrate(handle, kbs) -> int32
//	<p>_set_framerate(handle, framerate) -> int32
//	<p>_test_encode(outLuids, outVendors, maxDescNum, &descNum,
//	                luidFilter, filterLen, api, dataFormat,
//	                width, height, kbitrate, framerate, gop) -> int32
//
// The library is loaded lazily so the agent still runs (software-only) on
// machines without it.
var modBridge = windows.NewLazyDLL("prism-codec.dll")

// encodeSinks maps the opaque context id handed to native code back to the
// Go sink for the encode call currently on the stack. Native callbacks fire
// only on the calling thread while that call is in flight, so an entry lives
// exactly for the duration of one bridgeTable.Encode.
var encodeSinks struct {
	sync.Mutex
	next  uintptr
	sinks map[uintptr]frameSink
}

func registerSink(sink frameSink) uintptr {
	encodeSinks.Lock()
	defer encodeSinks.Unlock()
	if encodeSinks.sinks == nil {
		encodeSinks.sinks = make(map[uintptr]frameSink)
	}
	encodeSinks.next++
	id := encodeSinks.next
	encodeSinks.sinks[id] = sink
	return id
}

func releaseSink(id uintptr) {
	encodeSinks.Lock()
	delete(encodeSinks.sinks, id)
	encodeSinks.Unlock()
}

func sinkFor(id uintptr) frameSink {
	encodeSinks.Lock()
	defer encodeSinks.Unlock()
	return encodeSinks.sinks[id]
}

// encodeCallbackPtr is the single C-callable trampoline shared by every
// vendor table: (data, size, key, obj, pts). The payload pointer is only
// valid until the trampoline returns, so the slice view is copied by the
// sink before native code regains control.
var encodeCallbackPtr = syscall.NewCallback(func(data uintptr, size uintptr, key uintptr, obj uintptr, pts uintptr) uintptr {
	sink := sinkFor(obj)
	if sink == nil || data == 0 || int32(size) <= 0 {
		return 0
	}
	payload := unsafe.Slice((*byte)(unsafe.Pointer(data)), int32(size))
	sink(payload, int32(key) != 0, int64(pts))
	return 0
})

// bridgeTable adapts one vendor's exported symbol set to the encodeTable
// interface.
type bridgeTable struct {
	kind       BackendKind
	serialized bool

	driverSupport *windows.LazyProc
	newEncoder    *windows.LazyProc
	encode        *windows.LazyProc
	destroy       *windows.LazyProc
	setBitrate    *windows.LazyProc
	setFramerate  *windows.LazyProc
	test          *windows.LazyProc
}

func newBridgeTable(kind BackendKind, prefix string, serialized bool) *bridgeTable {
	return &bridgeTable{
		kind:          kind,
		serialized:    serialized,
		driverSupport: modBridge.NewProc(prefix + "_encode_driver_support"),
		newEncoder:    modBridge.NewProc(prefix + "_new_encoder"),
		encode:        modBridge.NewProc(prefix + "_encode"),
		destroy:       modBridge.NewProc(prefix + "_destroy_encoder"),
		setBitrate:    modBridge.NewProc(prefix + "_set_bitrate"),
		setFramerate:  modBridge.NewProc(prefix + "_set_framerate"),
		test:          modBridge.NewProc(prefix + "_test_encode"),
	}
}

func (t *bridgeTable) Kind() BackendKind { return t.kind }

func (t *bridgeTable) SerializedProbe() bool { return t.serialized }

// Candidates reports the formats the linked driver claims to support. This is
// a static link/driver check, never a hardware probe.
func (t *bridgeTable) Candidates() []probeCandidate {
	if t.driverSupport.Find() != nil {
		return nil
	}
	supported, _, _ := t.driverSupport.Call()
	if int32(supported) != 0 {
		return nil
	}
	return []probeCandidate{
		{API: apiDX11, Format: FormatH264},
		{API: apiDX11, Format: FormatHEVC},
	}
}

type bridgeHandle uintptr

func (t *bridgeTable) New(p encodeParams) (backendHandle, error) {
	if t.newEncoder.Find() != nil {
		return nil, ErrBackendRejected
	}
	handle, _, _ := t.newEncoder.Call(
		p.Device,
		uintptr(p.LUID),
		uintptr(p.API),
		uintptr(p.Format),
		uintptr(p.Width),
		uintptr(p.Height),
		uintptr(p.KBitrate),
		uintptr(p.Framerate),
		uintptr(p.GOP),
	)
	if handle == 0 {
		return nil, ErrBackendRejected
	}
	return bridgeHandle(handle), nil
}

func (t *bridgeTable) Encode(h backendHandle, frame InputFrame, sink frameSink, timeoutMS int64) int32 {
	handle, ok := h.(bridgeHandle)
	if !ok || handle == 0 {
		return -1
	}
	if t.encode.Find() != nil {
		return -1
	}
	id := registerSink(sink)
	defer releaseSink(id)
	status, _, _ := t.encode.Call(
		uintptr(handle),
		frame.Texture,
		encodeCallbackPtr,
		id,
		uintptr(timeoutMS),
	)
	return int32(status)
}

func (t *bridgeTable) Destroy(h backendHandle) {
	handle, ok := h.(bridgeHandle)
	if !ok || handle == 0 {
		return
	}
	if t.destroy.Find() != nil {
		return
	}
	t.destroy.Call(uintptr(handle))
}

func (t *bridgeTable) SetBitrate(h backendHandle, kbps int32) int32 {
	handle, ok := h.(bridgeHandle)
	if !ok || handle == 0 {
		return -1
	}
	if t.setBitrate.Find() != nil {
		return -1
	}
	status, _, _ := t.setBitrate.Call(uintptr(handle), uintptr(kbps))
	return int32(status)
}

func (t *bridgeTable) SetFramerate(h backendHandle, fps int32) int32 {
	handle, ok := h.(bridgeHandle)
	if !ok || handle == 0 {
		return -1
	}
	if t.setFramerate.Find() != nil {
		return -1
	}
	status, _, _ := t.setFramerate.Call(uintptr(handle), uintptr(fps))
	return int32(status)
}

func (t *bridgeTable) Test(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
	if t.test.Find() != nil {
		return 0, -1
	}
	if len(descs) == 0 {
		return 0, -1
	}
	luids := make([]int64, len(descs))
	vendors := make([]int32, len(descs))
	var count int32
	var filterPtr unsafe.Pointer
	if len(luidFilter) > 0 {
		filterPtr = unsafe.Pointer(&luidFilter[0])
	}
	status, _, _ := t.test.Call(
		uintptr(unsafe.Pointer(&luids[0])),
		uintptr(unsafe.Pointer(&vendors[0])),
		uintptr(int32(len(descs))),
		uintptr(unsafe.Pointer(&count)),
		uintptr(filterPtr),
		uintptr(int32(len(luidFilter))),
		uintptr(p.API),
		uintptr(p.Format),
		uintptr(p.Width),
		uintptr(p.Height),
		uintptr(p.KBitrate),
		uintptr(p.Framerate),
		uintptr(p.GOP),
	)
	filled := count
	if filled > int32(len(descs)) {
		filled = int32(len(descs))
	}
	for i := int32(0); i < filled; i++ {
		descs[i] = AdapterDesc{LUID: luids[i], Vendor: uint32(vendors[i])}
	}
	return count, int32(status)
}
