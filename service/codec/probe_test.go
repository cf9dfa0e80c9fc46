package codec

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func TestDiscoverNoCandidatesYieldsEmptyList(t *testing.T) {
	stubTables(t, map[BackendKind]encodeTable{
		BackendNVENC:    &fakeTable{kind: BackendNVENC},
		BackendAMF:      &fakeTable{kind: BackendAMF},
		BackendQSV:      &fakeTable{kind: BackendQSV},
		BackendSoftware: &fakeTable{kind: BackendSoftware},
	})
	result := Discover(testBaseline)
	if len(result) != 0 {
		t.Fatalf("expected empty discovery, got %d contexts", len(result))
	}
}

func TestDiscoverResolvesAdapterLUIDs(t *testing.T) {
	nvenc := &fakeTable{
		kind:       BackendNVENC,
		candidates: []probeCandidate{{API: apiDX11, Format: FormatH264}},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			descs[0] = AdapterDesc{LUID: 101}
			descs[1] = AdapterDesc{LUID: 102}
			return 2, 0
		},
	}
	software := &fakeTable{
		kind: BackendSoftware,
		candidates: []probeCandidate{
			{API: apiDX11, Format: FormatH264},
			{API: apiDX11, Format: FormatHEVC},
		},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			for i, luid := range luidFilter {
				descs[i] = AdapterDesc{LUID: luid}
			}
			return int32(len(luidFilter)), 0
		},
	}
	stubTables(t, map[BackendKind]encodeTable{
		BackendNVENC:    nvenc,
		BackendSoftware: software,
	})

	result := Discover(testBaseline)
	if len(result) != 4 {
		t.Fatalf("expected 2 nvenc + 2 software contexts, got %d", len(result))
	}
	counts := map[BackendKind]int{}
	for _, feature := range result {
		if feature.LUID == 0 {
			t.Fatalf("unresolved LUID leaked: %+v", feature)
		}
		if feature.Format != FormatH264 {
			t.Fatalf("unexpected format %s", feature.Format)
		}
		counts[feature.Backend]++
	}
	if counts[BackendNVENC] != 2 || counts[BackendSoftware] != 2 {
		t.Fatalf("unexpected backend split: %v", counts)
	}
}

func TestDiscoverDiscardsOverflowingProbe(t *testing.T) {
	nvenc := &fakeTable{
		kind:       BackendNVENC,
		candidates: []probeCandidate{{API: apiDX11, Format: FormatH264}},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			for i := range descs {
				descs[i] = AdapterDesc{LUID: int64(i + 1)}
			}
			// Claims more adapters than the buffer holds.
			return int32(len(descs) + 1), 0
		},
	}
	stubTables(t, map[BackendKind]encodeTable{BackendNVENC: nvenc})
	result := Discover(testBaseline)
	if len(result) != 0 {
		t.Fatalf("overflowing probe must contribute nothing, got %d contexts", len(result))
	}
}

func TestDiscoverIsolatesPanickingProbe(t *testing.T) {
	nvenc := &fakeTable{
		kind:       BackendNVENC,
		candidates: []probeCandidate{{API: apiDX11, Format: FormatH264}},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			panic("driver blew up")
		},
	}
	amf := &fakeTable{
		kind:       BackendAMF,
		candidates: []probeCandidate{{API: apiDX11, Format: FormatHEVC}},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			descs[0] = AdapterDesc{LUID: 7}
			return 1, 0
		},
	}
	stubTables(t, map[BackendKind]encodeTable{
		BackendNVENC: nvenc,
		BackendAMF:   amf,
	})
	result := Discover(testBaseline)
	if len(result) != 1 {
		t.Fatalf("sibling probe should survive a panic, got %d contexts", len(result))
	}
	if result[0].Backend != BackendAMF || result[0].LUID != 7 {
		t.Fatalf("unexpected surviving context: %+v", result[0])
	}
}

func TestSerializedProbesNeverOverlap(t *testing.T) {
	type window struct {
		start time.Time
		end   time.Time
	}
	var mu sync.Mutex
	var windows []window

	record := func() {
		start := time.Now()
		time.Sleep(25 * time.Millisecond)
		mu.Lock()
		windows = append(windows, window{start: start, end: time.Now()})
		mu.Unlock()
	}
	nvenc := &fakeTable{
		kind:       BackendNVENC,
		serialized: true,
		candidates: []probeCandidate{
			{API: apiDX11, Format: FormatH264},
			{API: apiDX11, Format: FormatHEVC},
		},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			record()
			descs[0] = AdapterDesc{LUID: 11}
			return 1, 0
		},
	}
	software := &fakeTable{
		kind:       BackendSoftware,
		serialized: true,
		candidates: []probeCandidate{
			{API: apiDX11, Format: FormatH264},
			{API: apiDX11, Format: FormatHEVC},
		},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			record()
			for i, luid := range luidFilter {
				descs[i] = AdapterDesc{LUID: luid}
			}
			return int32(len(luidFilter)), 0
		},
	}
	stubTables(t, map[BackendKind]encodeTable{
		BackendNVENC:    nvenc,
		BackendSoftware: software,
	})

	Discover(testBaseline)

	mu.Lock()
	defer mu.Unlock()
	if len(windows) != 4 {
		t.Fatalf("expected 4 serialized probe windows, got %d", len(windows))
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].start.Before(windows[j].start) })
	for i := 1; i < len(windows); i++ {
		if windows[i].start.Before(windows[i-1].end) {
			t.Fatalf("serialized probes overlapped: %v starts before %v ends",
				windows[i].start, windows[i-1].end)
		}
	}
}

func TestDiscoverNarrowsFallbackToResolvedLUIDs(t *testing.T) {
	nvenc := &fakeTable{
		kind:       BackendNVENC,
		candidates: []probeCandidate{{API: apiDX11, Format: FormatH264}},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			descs[0] = AdapterDesc{LUID: 1}
			descs[1] = AdapterDesc{LUID: 2}
			return 2, 0
		},
	}
	amf := &fakeTable{
		kind:       BackendAMF,
		candidates: []probeCandidate{{API: apiDX11, Format: FormatHEVC}},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			descs[0] = AdapterDesc{LUID: 3}
			return 1, 0
		},
	}
	var mu sync.Mutex
	filters := map[CodecFormat][]int64{}
	software := &fakeTable{
		kind: BackendSoftware,
		candidates: []probeCandidate{
			{API: apiDX11, Format: FormatH264},
			{API: apiDX11, Format: FormatHEVC},
		},
		testFn: func(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
			sorted := append([]int64(nil), luidFilter...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			mu.Lock()
			filters[p.Format] = sorted
			mu.Unlock()
			return 0, 0
		},
	}
	stubTables(t, map[BackendKind]encodeTable{
		BackendNVENC:    nvenc,
		BackendAMF:      amf,
		BackendSoftware: software,
	})

	Discover(testBaseline)

	mu.Lock()
	defer mu.Unlock()
	h264 := filters[FormatH264]
	if len(h264) != 2 || h264[0] != 1 || h264[1] != 2 {
		t.Fatalf("h264 fallback filter should be the nvenc LUIDs, got %v", h264)
	}
	hevc := filters[FormatHEVC]
	if len(hevc) != 1 || hevc[0] != 3 {
		t.Fatalf("hevc fallback filter should be the amf LUID, got %v", hevc)
	}
}
