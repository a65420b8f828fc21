// ABOUTME: Pipe device feeding raw PCM to a system player process
// ABOUTME: Detects pacat, pw-cat, aplay, sox or ffplay and restarts the process on underrun
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// PipeBackend is a player command that reads S16LE stereo on stdin
type PipeBackend struct {
	Name string
	Path string
	Args []string
}

type pipeCandidate struct {
	name   string
	binary string
	args   func(rate int, device string) []string
}

// pipeCandidates in priority order
var pipeCandidates = []pipeCandidate{
	{"pacat", "pacat", func(rate int, device string) []string {
		args := []string{"--raw", "--format=s16le", "--rate=" + strconv.Itoa(rate), "--channels=2", "--latency-msec=50", "--playback"}
		if device != "" {
			args = append(args, "--device="+device)
		}
		return args
	}},
	{"pw-cat", "pw-cat", func(rate int, device string) []string {
		args := []string{"--playback", "--format=s16", "--rate=" + strconv.Itoa(rate), "--channels=2", "--latency=50ms"}
		if device != "" {
			args = append(args, "--target="+device)
		}
		return append(args, "-")
	}},
	{"aplay", "aplay", func(rate int, device string) []string {
		args := []string{"-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(rate), "-c", "2", "-q"}
		if device != "" {
			args = append(args, "-D", device)
		}
		return args
	}},
	{"sox", "play", func(rate int, _ string) []string {
		return []string{"-t", "raw", "-e", "signed", "-b", "16", "-c", "2", "-r", strconv.Itoa(rate), "-", "-d", "-q"}
	}},
	{"ffplay", "ffplay", func(rate int, _ string) []string {
		return []string{"-nodisp", "-autoexit", "-f", "s16le", "-ac", "2", "-ar", strconv.Itoa(rate),
			"-probesize", "32", "-analyzeduration", "0", "-i", "pipe:0", "-loglevel", "quiet"}
	}},
}

// lookPath is swapped in tests
var lookPath = exec.LookPath

// DetectPipeBackend returns the first installed player
func DetectPipeBackend(rate int, device string) (*PipeBackend, error) {
	for _, c := range pipeCandidates {
		path, err := lookPath(c.binary)
		if err != nil {
			continue
		}
		return &PipeBackend{Name: c.name, Path: path, Args: c.args(rate, device)}, nil
	}
	return nil, ErrNoBackend
}

// PipeDevice writes into the stdin of a player process
type PipeDevice struct {
	mu      sync.Mutex
	backend *PipeBackend
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	exited  chan struct{}
}

// NewPipeDevice creates a pipe device; the backend is detected on Open
func NewPipeDevice() *PipeDevice {
	return &PipeDevice{}
}

// Backend returns the detected backend, nil before Open
func (d *PipeDevice) Backend() *PipeBackend {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.backend
}

// Open detects a player and starts it. Players are told the rate on the
// command line, so the configured rate is always the device rate.
func (d *PipeDevice) Open(cfg Config) (int, error) {
	backend, err := DetectPipeBackend(cfg.DeviceRate, cfg.DeviceName)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.backend = backend
	log.Printf("Using pipe backend %s (%s)", backend.Name, backend.Path)
	if err := d.start(); err != nil {
		return 0, err
	}
	return cfg.DeviceRate, nil
}

// start spawns the player process (must hold d.mu)
func (d *PipeDevice) start() error {
	cmd := exec.Command(d.backend.Path, d.backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", d.backend.Name, err)
	}

	exited := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("Pipe backend %s exited: %v", d.backend.Name, err)
		}
		close(exited)
	}()

	d.cmd = cmd
	d.stdin = stdin
	d.exited = exited
	return nil
}

// Write sends one buffer. A dead player is reported as an underrun.
func (d *PipeDevice) Write(buf []byte) error {
	d.mu.Lock()
	stdin, exited := d.stdin, d.exited
	d.mu.Unlock()

	if stdin == nil {
		return ErrUnderrun
	}
	select {
	case <-exited:
		return ErrUnderrun
	default:
	}

	if _, err := stdin.Write(buf); err != nil {
		if isBrokenPipe(err) {
			return fmt.Errorf("%w: %v", ErrUnderrun, err)
		}
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}

// Prepare restarts the player process
func (d *PipeDevice) Prepare() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.backend == nil {
		return ErrNotInitialized
	}
	d.stop()
	return d.start()
}

// Resume is a no-op; player processes are never suspended
func (d *PipeDevice) Resume() error {
	return nil
}

// Close stops the player process
func (d *PipeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stop()
	return nil
}

// stop closes stdin and kills the process (must hold d.mu)
func (d *PipeDevice) stop() {
	if d.stdin != nil {
		d.stdin.Close()
		d.stdin = nil
	}
	if d.cmd != nil && d.cmd.Process != nil {
		select {
		case <-d.exited:
		default:
			d.cmd.Process.Kill()
			<-d.exited
		}
	}
	d.cmd = nil
}

// Devices lists ALSA PCM names via aplay -L
func (d *PipeDevice) Devices() ([]DeviceInfo, error) {
	path, err := lookPath("aplay")
	if err != nil {
		return nil, ErrNoBackend
	}
	out, err := exec.Command(path, "-L").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return parseAplayList(string(out)), nil
}

// parseAplayList parses aplay -L output: a name line followed by indented
// description lines
func parseAplayList(out string) []DeviceInfo {
	var list []DeviceInfo
	var cur *DeviceInfo

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			list = append(list, DeviceInfo{SystemName: line, IsOutput: true})
			cur = &list[len(list)-1]
			continue
		}

		if cur == nil {
			continue
		}
		desc := strings.TrimSpace(line)
		if cur.Description == "" {
			cur.Description = desc
		} else {
			cur.Description += ", " + desc
		}
	}
	return list
}
