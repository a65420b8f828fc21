//go:build !linux && !freebsd

// ABOUTME: OSS placeholder for platforms without /dev/dsp ioctls
// ABOUTME: Opening the device always fails
package output

import (
	"fmt"
	"os"
)

func configureDSP(f *os.File, rate int) (int, error) {
	return 0, fmt.Errorf("%w: OSS is not supported on this platform", ErrNoBackend)
}
