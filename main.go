// ABOUTME: Entry point for the chime sound player
// ABOUTME: Loads configuration, opens the output driver and runs the TUI and remote control
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chime-audio/chime/internal/bank"
	"github.com/chime-audio/chime/internal/config"
	"github.com/chime-audio/chime/internal/remote"
	"github.com/chime-audio/chime/internal/ui"
	"github.com/chime-audio/chime/internal/version"
	"github.com/chime-audio/chime/pkg/audio/decode"
	"github.com/chime-audio/chime/pkg/chime"
	"github.com/chime-audio/chime/pkg/mixer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	flag.StringVar(&cfg.Driver, "driver", cfg.Driver, "Output driver (malgo, pulse, pipe, oss, oto, portaudio)")
	flag.StringVar(&cfg.Device, "device", cfg.Device, "Output device name (default: system default)")
	flag.Float64Var(&cfg.MasterVolume, "volume", cfg.MasterVolume, "Initial master volume (0-1)")
	flag.BoolVar(&cfg.Limiter, "limiter", cfg.Limiter, "Enable the output limiter")
	flag.StringVar(&cfg.SoundBank, "bank", cfg.SoundBank, "Sound bank INI file")
	flag.StringVar(&cfg.RemoteAddr, "remote", cfg.RemoteAddr, "Remote control listen address, e.g. :8928 (empty disables)")
	flag.BoolVar(&cfg.Advertise, "advertise", cfg.Advertise, "Advertise the remote control over mDNS")
	flag.StringVar(&cfg.Name, "name", cfg.Name, "Friendly name for remote control and mDNS")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	noTUI := flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s (driver: %s)", version.Product, version.Version, cfg.Driver)

	sounds, err := loadSounds(cfg.SoundBank)
	if err != nil {
		log.Fatalf("Failed to load sounds: %v", err)
	}

	var tui *ui.TUI
	var control *ui.Control
	if useTUI {
		control = ui.NewControl()
		tui = ui.New(control)
		go func() {
			if err := tui.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	playerConfig := cfg.PlayerConfig()
	playerConfig.OnError = func(err error) {
		log.Printf("Audio output failed: %v", err)
	}

	player, err := chime.NewPlayer(playerConfig)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}
	if err := player.Initialize(); err != nil {
		if tui != nil {
			tui.Stop()
		}
		log.Fatalf("Failed to initialize audio output: %v", err)
	}
	defer func() {
		if err := player.Close(); err != nil {
			log.Printf("Error closing player: %v", err)
		}
	}()

	var srv *remote.Server
	if cfg.RemoteAddr != "" {
		srv = remote.NewServer(remote.Config{
			Addr:          cfg.RemoteAddr,
			Name:          cfg.Name,
			EnableMDNS:    cfg.Advertise,
			StateInterval: cfg.StateInterval,
			Debug:         *debug,
		}, player, sounds)

		go func() {
			if err := srv.Start(); err != nil {
				log.Printf("Remote control error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	if tui != nil {
		go handleActions(player, sounds, control, done)
		go statusLoop(player, sounds, tui, done)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var quit <-chan ui.QuitMsg
	if control != nil {
		quit = control.Quit
	}
	select {
	case <-quit:
		log.Printf("Received quit signal from TUI")
	case <-sigChan:
		log.Printf("Shutdown signal received")
	}

	close(done)
	if srv != nil {
		srv.Stop()
	}
	if tui != nil {
		tui.Stop()
	}
	log.Printf("Player stopped")
}

// loadSounds loads the bank file, or a single test tone without one
func loadSounds(path string) (*bank.Bank, error) {
	if path != "" {
		return bank.Load(path)
	}

	sounds := bank.New()
	sounds.Add(&bank.Sound{
		Name:     "tone",
		Volume:   1,
		Resource: decode.Tone("tone", 440, 500*time.Millisecond, 0.5),
	})
	return sounds, nil
}

// handleActions applies TUI requests to the player
func handleActions(player *chime.Player, sounds *bank.Bank, control *ui.Control, done <-chan struct{}) {
	for {
		select {
		case a := <-control.Actions:
			switch a.Kind {
			case ui.ActionVolume:
				player.SetMasterVolume(a.Volume)
			case ui.ActionPlay:
				sound, ok := sounds.Get(a.Sound)
				if !ok {
					continue
				}
				var h mixer.Handle
				if sound.Position != nil {
					h = player.StartSoundAtPosition(sound.Resource, sound.Volume, *sound.Position)
				} else {
					h = player.StartSound(sound.Resource, sound.Volume)
				}
				if !h.IsValid() {
					log.Printf("Could not start %s: mixer queue is full", a.Sound)
				}
			case ui.ActionStop:
				if sound, ok := sounds.Get(a.Sound); ok {
					player.StopSound(sound.Resource)
				}
			}
		case <-done:
			return
		}
	}
}

// statusLoop periodically pushes player state to the TUI
func statusLoop(player *chime.Player, sounds *bank.Bank, tui *ui.TUI, done <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := player.Stats()
			ok := player.IsOk()
			vol := player.MasterVolume()
			tui.Update(ui.StatusMsg{
				Driver:       player.DriverName(),
				Device:       player.DeviceName(),
				State:        player.DriverState().String(),
				Ok:           &ok,
				Error:        player.ErrorDescription(),
				Volume:       &vol,
				Sounds:       sounds.Names(),
				SampleRate:   player.Mixer().SampleRate(),
				ActiveVoices: stats.ActiveVoices,
				PendingTasks: stats.PendingTasks,
				DroppedTasks: stats.DroppedTasks,
				MixedFrames:  stats.MixedFrames,
			})
		case <-done:
			return
		}
	}
}
