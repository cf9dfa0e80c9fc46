//go:build !windows

package dxgi

import "errors"

var errNotSupported = errors.New("dxgi: adapter enumeration requires windows")

// Adapters is unavailable off Windows; callers treat the error as an empty
// inventory.
func Adapters() ([]Adapter, error) {
	return nil, errNotSupported
}
