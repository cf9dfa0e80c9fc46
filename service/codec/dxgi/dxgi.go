// Package dxgi enumerates the machine's graphics adapters and their
// locally-unique identifiers. Encode backends target adapters by LUID, so
// this is the ground truth the capability layer reports against.
package dxgi

// Known PCI vendor identifiers.
const (
	VendorNVIDIA = 0x10DE
	VendorAMD    = 0x1002
	VendorIntel  = 0x8086
)

// Adapter describes one enumerated graphics adapter.
type Adapter struct {
	LUID           int64  `json:"luid"`
	VendorID       uint32 `json:"vendorId"`
	Description    string `json:"description"`
	VideoSupported bool   `json:"videoSupported"`
}
