//go:build linux || freebsd

// ABOUTME: OSS DSP ioctl setup
// ABOUTME: Negotiates sample format, channel count and rate and reads back what the DSP chose
package output

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// OSS soundcard.h requests
const (
	sndctlDSPSpeed    = 0xC0045002
	sndctlDSPSetFmt   = 0xC0045005
	sndctlDSPChannels = 0xC0045006
)

// dspIoctl issues a read-write DSP request. The driver writes the value it
// settled on back through the argument.
func dspIoctl(fd int, req uint, value int) (int, error) {
	v := int32(value)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return 0, errno
	}
	return int(v), nil
}

// configureDSP sets S16LE stereo at rate and returns the rate in effect
func configureDSP(f *os.File, rate int) (int, error) {
	fd := int(f.Fd())

	format, err := dspIoctl(fd, sndctlDSPSetFmt, afmtS16LE)
	if err != nil {
		return 0, fmt.Errorf("failed to set dsp format: %w", err)
	}
	channels, err := dspIoctl(fd, sndctlDSPChannels, 2)
	if err != nil {
		return 0, fmt.Errorf("failed to set dsp channels: %w", err)
	}
	actual, err := dspIoctl(fd, sndctlDSPSpeed, rate)
	if err != nil {
		return 0, fmt.Errorf("failed to set dsp rate: %w", err)
	}

	if err := checkDSP(format, channels, actual); err != nil {
		return 0, err
	}
	return actual, nil
}
