package codec

import (
	"testing"
)

func TestSoftwareNewValidatesParameters(t *testing.T) {
	table := softwareTable()
	valid := encodeParams{Width: 640, Height: 480, KBitrate: 2000, Framerate: 30, GOP: 30}
	if _, err := table.New(valid); err != nil {
		t.Fatalf("valid parameters rejected: %v", err)
	}
	broken := []encodeParams{
		{Width: 0, Height: 480, KBitrate: 2000, Framerate: 30, GOP: 30},
		{Width: 640, Height: 480, KBitrate: 0, Framerate: 30, GOP: 30},
		{Width: 640, Height: 480, KBitrate: 2000, Framerate: 0, GOP: 30},
		{Width: 640, Height: 480, KBitrate: 2000, Framerate: 30, GOP: 0},
	}
	for i, p := range broken {
		if _, err := table.New(p); err == nil {
			t.Fatalf("case %d: expected rejection for %+v", i, p)
		}
	}
}

func TestSoftwareEncodeRejectsShortBuffer(t *testing.T) {
	table := softwareTable()
	handle, err := table.New(encodeParams{Width: 640, Height: 480, KBitrate: 2000, Framerate: 30, GOP: 30})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer table.Destroy(handle)
	status := table.Encode(handle, InputFrame{Data: make([]byte, 16)}, func(data []byte, key bool, pts int64) {
		t.Fatalf("sink must not fire for a rejected frame")
	}, 1000)
	if status == 0 {
		t.Fatalf("short pixel buffer must fail with a nonzero status")
	}
}

func TestSoftwareKeyframeCadenceFollowsGOP(t *testing.T) {
	table := softwareTable()
	handle, err := table.New(encodeParams{Width: 64, Height: 64, KBitrate: 500, Framerate: 30, GOP: 3})
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	defer table.Destroy(handle)

	pixels := make([]byte, 64*64*4)
	var keys []bool
	for i := 0; i < 7; i++ {
		status := table.Encode(handle, InputFrame{Data: pixels}, func(data []byte, key bool, pts int64) {
			keys = append(keys, key)
		}, 1000)
		if status != 0 {
			t.Fatalf("frame %d: encode status %d", i, status)
		}
	}
	want := []bool{true, false, false, true, false, false, true}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keyframe cadence mismatch at %d: got %v want %v", i, keys, want)
		}
	}
}

func TestSoftwareTestHonoursLUIDFilter(t *testing.T) {
	table := softwareTable()
	descs := make([]AdapterDesc, maxAdapters)
	p := encodeParams{Width: 1920, Height: 1080, KBitrate: 5000, Framerate: 30, GOP: 60}
	count, status := table.Test(descs, []int64{5, 9}, p)
	if status != 0 {
		t.Fatalf("filtered test failed with status %d", status)
	}
	if count != 2 || descs[0].LUID != 5 || descs[1].LUID != 9 {
		t.Fatalf("filter not mirrored: count=%d descs=%+v", count, descs[:2])
	}
}

func TestSoftwareTestRejectsBadBaseline(t *testing.T) {
	table := softwareTable()
	descs := make([]AdapterDesc, maxAdapters)
	if _, status := table.Test(descs, []int64{1}, encodeParams{}); status == 0 {
		t.Fatalf("zeroed baseline must fail the software test")
	}
}
