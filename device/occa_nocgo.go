//go:build !cgo

package device

import "fmt"

// The OCCA backend binds libocca through cgo; without cgo it cannot be
// compiled in, so every non-Parallel mode fails at device creation.
func newOCCA(props string) (Device, error) {
	return nil, fmt.Errorf("device: OCCA backend unavailable (built without cgo), properties %q", props)
}
