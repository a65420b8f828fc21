// ABOUTME: Named sound bank loaded from an INI file
// ABOUTME: Each section names a sound file with its default volume, streaming flag and position
package bank

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/chime-audio/chime/pkg/audio/decode"
	"github.com/chime-audio/chime/pkg/mixer"
	"gopkg.in/ini.v1"
)

// Sound is one bank entry
type Sound struct {
	Name     string
	Path     string
	Volume   float32
	Stream   bool
	Position *mixer.Vec3
	Resource *mixer.Resource
}

// Bank maps sound names to loaded resources
type Bank struct {
	mu     sync.RWMutex
	sounds map[string]*Sound
}

// New creates an empty bank
func New() *Bank {
	return &Bank{sounds: make(map[string]*Sound)}
}

// Parse reads bank entries from INI data. Relative paths are resolved
// against dir. Resources are not loaded.
func Parse(data []byte, dir string) ([]Sound, error) {
	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: false}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sound bank: %w", err)
	}

	var sounds []Sound
	for _, sec := range file.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}

		path := sec.Key("path").String()
		if path == "" {
			return nil, fmt.Errorf("sound %q: missing path", sec.Name())
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		volume := sec.Key("volume").MustFloat64(1)
		if volume < 0 {
			return nil, fmt.Errorf("sound %q: volume must not be negative", sec.Name())
		}

		s := Sound{
			Name:   sec.Name(),
			Path:   path,
			Volume: float32(volume),
			Stream: sec.Key("stream").MustBool(false),
		}
		if sec.HasKey("x") || sec.HasKey("y") || sec.HasKey("z") {
			s.Position = &mixer.Vec3{
				X: float32(sec.Key("x").MustFloat64(0)),
				Y: float32(sec.Key("y").MustFloat64(0)),
				Z: float32(sec.Key("z").MustFloat64(0)),
			}
		}
		sounds = append(sounds, s)
	}
	return sounds, nil
}

// Load parses the bank file at path and decodes every sound it names
func Load(path string) (*Bank, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	sounds, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	b := New()
	for i := range sounds {
		s := sounds[i]
		res, err := decode.Load(s.Path, decode.Options{Stream: s.Stream})
		if err != nil {
			return nil, fmt.Errorf("failed to load sound %q: %w", s.Name, err)
		}
		s.Resource = res
		b.Add(&s)
	}

	log.Printf("Loaded %d sounds from %s", b.Len(), path)
	return b, nil
}

// Add registers s, replacing any sound with the same name. The replaced
// entry is returned so callers can stop its voices.
func (b *Bank) Add(s *Sound) *Sound {
	b.mu.Lock()
	defer b.mu.Unlock()

	old := b.sounds[s.Name]
	b.sounds[s.Name] = s
	return old
}

// Get returns the sound registered under name
func (b *Bank) Get(name string) (*Sound, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s, ok := b.sounds[name]
	return s, ok
}

// Names returns the sound names in sorted order
func (b *Bank) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.sounds))
	for name := range b.sounds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of sounds
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sounds)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sound bank: %w", err)
	}
	return data, nil
}
