//go:build !windows

package codec

// Vendor encoders bind D3D11 surfaces and only exist on Windows builds.
// Elsewhere they advertise nothing and reject everything; the software
// fallback remains the only table with candidates.
type unavailableTable struct {
	kind BackendKind
}

func (t unavailableTable) Kind() BackendKind            { return t.kind }
func (t unavailableTable) Candidates() []probeCandidate { return nil }
func (t unavailableTable) SerializedProbe() bool        { return t.kind == BackendNVENC }

func (t unavailableTable) New(p encodeParams) (backendHandle, error) {
	return nil, ErrBackendRejected
}

func (t unavailableTable) Encode(h backendHandle, frame InputFrame, sink frameSink, timeoutMS int64) int32 {
	return -1
}

func (t unavailableTable) Destroy(h backendHandle) {}

func (t unavailableTable) SetBitrate(h backendHandle, kbps int32) int32 { return -1 }

func (t unavailableTable) SetFramerate(h backendHandle, fps int32) int32 { return -1 }

func (t unavailableTable) Test(descs []AdapterDesc, luidFilter []int64, p encodeParams) (int32, int32) {
	return 0, -1
}

func nvencTable() encodeTable { return unavailableTable{kind: BackendNVENC} }
func amfTable() encodeTable   { return unavailableTable{kind: BackendAMF} }
func qsvTable() encodeTable   { return unavailableTable{kind: BackendQSV} }
