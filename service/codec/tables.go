package codec

// The backend boundary. Each backend exposes the same fixed table of
// operations: construct, encode, destroy, set-bitrate, set-framerate and a
// hardware test. The core never sees backend internals, only this shape.

// backendHandle is an opaque per-backend encoder state handle.
type backendHandle interface{}

// frameSink receives one complete encoded frame per invocation, synchronously
// while the table's Encode call is still on the stack. The payload slice is
// only valid for the duration of the call; implementations hand the sink an
// independent copy or the sink copies before returning.
type frameSink func(data []byte, key bool, pts int64)

// encodeParams is the full construction/test parameter set, flattened the way
// the native boundary takes it.
type encodeParams struct {
	Device    uintptr
	LUID      int64
	API       int32
	Format    CodecFormat
	Width     int32
	Height    int32
	KBitrate  int32
	Framerate int32
	GOP       int32
}

// probeCandidate is one (api-variant, format) combination a backend is
// plausibly built to support. Static link/build capability only; no hardware
// is touched while collecting candidates.
type probeCandidate struct {
	API    int32
	Format CodecFormat
}

// encodeTable is the fixed five-operation-plus-test capability table every
// backend implements. Status codes are backend-defined; zero means success.
type encodeTable interface {
	Kind() BackendKind
	Candidates() []probeCandidate
	// SerializedProbe marks backends whose native test call must not run
	// concurrently with another serialized backend's test call.
	SerializedProbe() bool
	New(p encodeParams) (backendHandle, error)
	Encode(h backendHandle, frame InputFrame, sink frameSink, timeoutMS int64) int32
	Destroy(h backendHandle)
	SetBitrate(h backendHandle, kbps int32) int32
	SetFramerate(h backendHandle, fps int32) int32
	// Test fills descs with every adapter that accepted the configuration,
	// honouring luidFilter when non-empty, and returns the adapter count
	// (which may exceed len(descs)) alongside the status code.
	Test(descs []AdapterDesc, luidFilter []int64, p encodeParams) (count int32, status int32)
}

func defaultTableFor(kind BackendKind) encodeTable {
	switch kind {
	case BackendNVENC:
		return nvencTable()
	case BackendAMF:
		return amfTable()
	case BackendQSV:
		return qsvTable()
	case BackendSoftware:
		return softwareTable()
	}
	return nil
}

// lookupTable resolves a BackendKind to its capability table. Package
// variable so tests can substitute instrumented tables; production code never
// reassigns it.
var lookupTable = defaultTableFor

// hardwareBackends are probed first and unrestricted; the software fallback
// is probed afterwards against the adapters they resolved.
var hardwareBackends = []BackendKind{BackendNVENC, BackendAMF, BackendQSV}
