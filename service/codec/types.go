// Package codec discovers which GPU encode backends work on this machine and
// drives frame-by-frame encoding through one uniform interface. Discovery
// probes every backend/format combination concurrently and returns the
// adapter-resolved feature contexts that passed a live test; an Encoder is
// then constructed from one such context plus the dynamic parameters.
package codec

import "fmt"

// BackendKind identifies one encode backend. The set is closed: every
// kind ships with its own capability table and nothing registers at runtime.
type BackendKind int32

const (
	BackendNVENC BackendKind = iota
	BackendAMF
	BackendQSV
	// BackendSoftware is the CPU fallback; it is never probed against the
	// whole machine, only against adapters the hardware backends accepted.
	BackendSoftware
)

func (k BackendKind) String() string {
	switch k {
	case BackendNVENC:
		return "nvenc"
	case BackendAMF:
		return "amf"
	case BackendQSV:
		return "qsv"
	case BackendSoftware:
		return "software"
	}
	return fmt.Sprintf("backend(%d)", int32(k))
}

// CodecFormat is the output bitstream format. Closed set.
type CodecFormat int32

const (
	FormatH264 CodecFormat = iota
	FormatHEVC
)

func (f CodecFormat) String() string {
	switch f {
	case FormatH264:
		return "h264"
	case FormatHEVC:
		return "hevc"
	}
	return fmt.Sprintf("format(%d)", int32(f))
}

// formats lists every CodecFormat, in the order the fallback pass walks them.
var formats = []CodecFormat{FormatH264, FormatHEVC}

// API variant tags carried through to backend construction. Only the
// D3D11 texture path exists today.
const apiDX11 int32 = 0

// FeatureContext is the static identity of one testable backend/format/adapter
// combination. LUID stays 0 until a probe resolves it; Discover never returns
// an unresolved context.
type FeatureContext struct {
	Backend BackendKind `json:"backend"`
	API     int32       `json:"api"`
	Format  CodecFormat `json:"format"`
	LUID    int64       `json:"luid"`
}

// DynamicContext holds the configurable encode parameters. Width, Height and
// GOP are fixed for an encoder's lifetime; KBitrate and Framerate may change
// afterwards through the dedicated setters.
type DynamicContext struct {
	Width     int32 `json:"width"`
	Height    int32 `json:"height"`
	KBitrate  int32 `json:"kbitrate"`
	Framerate int32 `json:"framerate"`
	GOP       int32 `json:"gop"`
	// Device is an optional caller-owned device handle (e.g. an
	// ID3D11Device). Borrowed, never released here; it must outlive the
	// encoder it is passed to.
	Device uintptr `json:"-"`
	// LUIDHint optionally pins probing/construction to one adapter.
	LUIDHint int64 `json:"-"`
}

// EncodeContext pairs a resolved FeatureContext with the dynamic parameters;
// it is the complete construction input for an Encoder. Plain value, cheap
// to copy.
type EncodeContext struct {
	Feature FeatureContext `json:"feature"`
	Dynamic DynamicContext `json:"dynamic"`
}

// EncodeFrame is one encoded output frame. Data is an independent copy;
// ownership transfers fully to the caller when the encode call returns.
type EncodeFrame struct {
	Data []byte
	PTS  int64
	Key  bool
}

func (f EncodeFrame) String() string {
	return fmt.Sprintf("encode len:%d, key:%v", len(f.Data), f.Key)
}

// InputFrame is the per-call encode input. Hardware tables consume Texture
// (a GPU surface owned by the caller); the software table consumes Data
// (tightly packed RGBA at the encoder's configured dimensions).
type InputFrame struct {
	Texture uintptr
	Data    []byte
	PTS     int64
}

// AdapterDesc is the fixed-size descriptor a backend test call fills in for
// every adapter that accepted the proposed configuration.
type AdapterDesc struct {
	LUID   int64
	Vendor uint32
}

// maxAdapters bounds the descriptor buffer handed to backend test calls.
// A test reporting more than this is discarded whole rather than truncated.
const maxAdapters = 16
