package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"Prism/service/codec/dxgi"
)

// softwareEncodeTable is the pure-CPU fallback backend. It packs frames as
// JPEG payloads, which every transport in front of this agent can carry, and
// exists so machines (or adapters) with no working vendor encoder still get a
// usable encode path. Its native download path shares state with the NVENC
// probe, so its test call takes the serialized probe lock too.
type softwareEncodeTable struct{}

var softwareSingleton = &softwareEncodeTable{}

func softwareTable() encodeTable { return softwareSingleton }

func (softwareEncodeTable) Kind() BackendKind { return BackendSoftware }

func (softwareEncodeTable) SerializedProbe() bool { return true }

func (softwareEncodeTable) Candidates() []probeCandidate {
	return []probeCandidate{
		{API: apiDX11, Format: FormatH264},
		{API: apiDX11, Format: FormatHEVC},
	}
}

// softwareEncoder is the per-instance state behind a software backendHandle.
type softwareEncoder struct {
	mu        sync.Mutex
	params    encodeParams
	frameIdx  int64
	kbitrate  int32
	framerate int32
}

func (softwareEncodeTable) New(p encodeParams) (backendHandle, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("software: invalid dimensions %dx%d", p.Width, p.Height)
	}
	if p.KBitrate <= 0 {
		return nil, fmt.Errorf("software: bitrate must be > 0")
	}
	if p.Framerate <= 0 {
		return nil, fmt.Errorf("software: framerate must be > 0")
	}
	if p.GOP <= 0 {
		return nil, fmt.Errorf("software: gop must be > 0")
	}
	return &softwareEncoder{
		params:    p,
		kbitrate:  p.KBitrate,
		framerate: p.Framerate,
	}, nil
}

func (softwareEncodeTable) Encode(h backendHandle, frame InputFrame, sink frameSink, timeoutMS int64) int32 {
	enc, ok := h.(*softwareEncoder)
	if !ok || enc == nil {
		return 1
	}
	enc.mu.Lock()
	defer enc.mu.Unlock()
	width := int(enc.params.Width)
	height := int(enc.params.Height)
	if len(frame.Data) < width*height*4 {
		return 2
	}
	img := &image.RGBA{
		Pix:    frame.Data[:width*height*4],
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: enc.quality()}); err != nil {
		return 3
	}
	pts := frame.PTS
	if pts == 0 && enc.framerate > 0 {
		pts = enc.frameIdx * 1000 / int64(enc.framerate)
	}
	key := enc.frameIdx%int64(enc.params.GOP) == 0
	enc.frameIdx++
	sink(buf.Bytes(), key, pts)
	return 0
}

// quality maps the target bitrate to a JPEG quality tier using the
// bits-per-pixel budget at the configured resolution and framerate.
func (enc *softwareEncoder) quality() int {
	pixelRate := int64(enc.params.Width) * int64(enc.params.Height) * int64(enc.framerate)
	if pixelRate <= 0 {
		return 70
	}
	bppMilli := int64(enc.kbitrate) * 1000 * 1000 / pixelRate
	switch {
	case bppMilli >= 500:
		return 90
	case bppMilli >= 200:
		return 80
	case bppMilli >= 80:
		return 70
	default:
		return 55
	}
}

func (softwareEncodeTable) Destroy(h backendHandle) {
	// No native state to release; the handle is garbage collected.
}

func (softwareEncodeTable) SetBitrate(h backendHandle, kbps int32) int32 {
	enc, ok := h.(*softwareEncoder)
	if !ok || enc == nil {
		return 1
	}
	if kbps <= 0 {
		return 1
	}
	enc.mu.Lock()
	enc.kbitrate = kbps
	enc.mu.Unlock()
	return 0
}

func (softwareEncodeTable) SetFramerate(h backendHandle, fps int32) int32 {
	enc, ok := h.(*softwareEncoder)
	if !ok || enc == nil {
		return 1
	}
	if fps <= 0 {
		return 1
	}
	enc.mu.Lock()
	enc.framerate = fps
	enc.mu.Unlock()
	return 0
}

func (softwareEncodeTable) Test(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
	if p.Width <= 0 || p.Height <= 0 || p.KBitrate <= 0 || p.Framerate <= 0 || p.GOP <= 0 {
		return 0, 1
	}
	if len(luidFilter) > 0 {
		// CPU encode works wherever the surface can be downloaded, so
		// every adapter in the filter is accepted.
		count := int32(0)
		for _, luid := range luidFilter {
			if int(count) < len(descs) {
				descs[count] = AdapterDesc{LUID: luid}
			}
			count++
		}
		return count, 0
	}
	adapters, err := dxgi.Adapters()
	if err != nil {
		return 0, 0
	}
	count := int32(0)
	for _, adapter := range adapters {
		if !adapter.VideoSupported {
			continue
		}
		if int(count) < len(descs) {
			descs[count] = AdapterDesc{LUID: adapter.LUID, Vendor: adapter.VendorID}
		}
		count++
	}
	return count, 0
}
