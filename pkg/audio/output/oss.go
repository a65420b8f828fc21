// ABOUTME: OSS file device for systems with /dev/dsp
// ABOUTME: Configures the DSP for S16LE stereo and writes PCM directly
package output

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"syscall"
)

// DefaultOSSPath is opened when no device name is configured
const DefaultOSSPath = "/dev/dsp"

// afmtS16LE is the OSS format code for signed 16-bit little-endian
const afmtS16LE = 0x00000010

// OSSDevice writes into an OSS DSP device file
type OSSDevice struct {
	mu   sync.Mutex
	path string
	rate int
	f    *os.File
}

// NewOSSDevice creates an OSS device; the path comes from Config.DeviceName
func NewOSSDevice() *OSSDevice {
	return &OSSDevice{}
}

// Open opens and configures the DSP and returns the rate it settled on
func (d *OSSDevice) Open(cfg Config) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.path = cfg.DeviceName
	if d.path == "" {
		d.path = DefaultOSSPath
	}

	if _, err := os.Stat(d.path); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNoBackend, d.path)
	}

	rate, err := d.open(cfg.DeviceRate)
	if err != nil {
		return 0, err
	}
	d.rate = rate
	return rate, nil
}

// open must hold d.mu
func (d *OSSDevice) open(rate int) (int, error) {
	f, err := os.OpenFile(d.path, os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	actual, err := configureDSP(f, rate)
	if err != nil {
		f.Close()
		return 0, err
	}
	d.f = f
	log.Printf("Opened OSS device %s at %dHz", d.path, actual)
	return actual, nil
}

// checkDSP rejects settings the DSP changed in ways the writer cannot
// follow. A different rate is allowed; the caller resamples.
func checkDSP(format, channels, rate int) error {
	if format != afmtS16LE {
		return fmt.Errorf("dsp does not support S16LE (got format %#x)", format)
	}
	if channels != 2 {
		return fmt.Errorf("dsp does not support stereo (got %d channels)", channels)
	}
	if rate <= 0 {
		return fmt.Errorf("dsp reported invalid rate %d", rate)
	}
	return nil
}

// Write sends one buffer to the device
func (d *OSSDevice) Write(buf []byte) error {
	d.mu.Lock()
	f := d.f
	d.mu.Unlock()

	if f == nil {
		return ErrUnderrun
	}
	if _, err := f.Write(buf); err != nil {
		switch {
		case errors.Is(err, syscall.EAGAIN):
			return ErrWouldBlock
		case errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.EIO):
			return fmt.Errorf("%w: %v", ErrUnderrun, err)
		}
		return fmt.Errorf("dsp write failed: %w", err)
	}
	return nil
}

// Prepare reopens the device
func (d *OSSDevice) Prepare() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path == "" {
		return ErrNotInitialized
	}
	if d.f != nil {
		d.f.Close()
		d.f = nil
	}

	// The render pipeline was built for the first negotiated rate
	rate, err := d.open(d.rate)
	if err != nil {
		return err
	}
	if rate != d.rate {
		d.f.Close()
		d.f = nil
		return fmt.Errorf("dsp reopened at %dHz, expected %dHz", rate, d.rate)
	}
	return nil
}

// Resume is a no-op for OSS
func (d *OSSDevice) Resume() error {
	return nil
}

// Close releases the device file
func (d *OSSDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// Devices reports the default DSP when present
func (d *OSSDevice) Devices() ([]DeviceInfo, error) {
	if _, err := os.Stat(DefaultOSSPath); err != nil {
		return nil, nil
	}
	return []DeviceInfo{{SystemName: DefaultOSSPath, Description: "OSS digital audio", IsOutput: true}}, nil
}
