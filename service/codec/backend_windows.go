//go:build windows

package codec

import "sync"

// The NVENC driver's session probing is not reentrant across threads, so its
// test call shares the serialized probe lock with the software fallback.
var (
	backendOnce sync.Once
	nvencInst   *bridgeTable
	amfInst     *bridgeTable
	qsvInst     *bridgeTable
)

func initBridgeTables() {
	backendOnce.Do(func() {
		nvencInst = newBridgeTable(BackendNVENC, "nv", true)
		amfInst = newBridgeTable(BackendAMF, "amf", false)
		qsvInst = newBridgeTable(BackendQSV, "mfx", false)
	})
}

func nvencTable() encodeTable {
	initBridgeTables()
	return nvencInst
}

func amfTable() encodeTable {
	initBridgeTables()
	return amfInst
}

func qsvTable() encodeTable {
	initBridgeTables()
	return qsvInst
}
