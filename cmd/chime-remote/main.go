// ABOUTME: Command line remote control for a chime player
// ABOUTME: Finds a player over mDNS or by address, then plays, stops and uploads sounds
package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chime-audio/chime/internal/discovery"
	"github.com/chime-audio/chime/internal/protocol"
	"github.com/chime-audio/chime/internal/remote"
	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/audio/decode"
	"github.com/chime-audio/chime/pkg/audio/encode"
	"github.com/chime-audio/chime/pkg/audio/resample"
)

const (
	opusRate       = 48000
	pcmPacketFrame = 2048
)

var (
	serverAddr = flag.String("server", "", "Player address host:port (default: discover via mDNS)")
	name       = flag.String("name", "", "Client name")
	play       = flag.String("play", "", "Sound to play")
	position   = flag.String("pos", "", "Play position as x,y,z")
	stop       = flag.String("stop", "", "Sound to stop")
	volume     = flag.Float64("volume", -1, "Master volume to set (0-1)")
	upload     = flag.String("upload", "", "Sound file to upload")
	uploadAs   = flag.String("upload-name", "", "Name for the uploaded sound (default: file name)")
	codec      = flag.String("codec", "opus", "Upload codec (opus, pcm)")
	timeout    = flag.Duration("timeout", 5*time.Second, "Discovery and reply timeout")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	addr, path := *serverAddr, ""
	if addr == "" {
		host, err := discover(*timeout)
		if err != nil {
			log.Fatalf("%v", err)
		}
		addr = fmt.Sprintf("%s:%d", host.Host, host.Port)
		path = host.Path
		log.Printf("Using %s (%s)", host.Name, addr)
	}

	client := remote.NewClient(remote.ClientConfig{
		ServerAddr: addr,
		Path:       path,
		Name:       *name,
	})
	if err := client.Connect(); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	hello := client.Hello()
	fmt.Printf("Connected to %s %s (%s)\n", hello.Name, hello.Version, hello.ServerID)
	fmt.Printf("Sounds: %s\n", strings.Join(hello.Sounds, ", "))

	if *upload != "" {
		req, err := buildUpload(*upload, *uploadAs, *codec)
		if err != nil {
			log.Fatalf("Failed to prepare upload: %v", err)
		}
		if err := client.Upload(req); err != nil {
			log.Fatalf("Failed to upload: %v", err)
		}
		select {
		case u := <-client.Uploaded:
			fmt.Printf("Uploaded %s (%d frames)\n", u.Name, u.Frames)
		case e := <-client.Errors:
			log.Fatalf("Upload rejected: %s", e.Message)
		case <-time.After(*timeout):
			log.Fatalf("Timed out waiting for upload reply")
		}
	}

	if *volume >= 0 {
		if err := client.SetVolume(float32(*volume)); err != nil {
			log.Fatalf("Failed to set volume: %v", err)
		}
	}

	if *stop != "" {
		if err := client.Stop(*stop); err != nil {
			log.Fatalf("Failed to stop: %v", err)
		}
	}

	if *play != "" {
		req := protocol.PlaySound{Name: *play}
		if *position != "" {
			pos, err := parsePosition(*position)
			if err != nil {
				log.Fatalf("%v", err)
			}
			req.Position = &pos
		}
		if err := client.Play(req); err != nil {
			log.Fatalf("Failed to play: %v", err)
		}
		select {
		case s := <-client.Started:
			fmt.Printf("Playing %s (handle %d)\n", s.Name, s.Handle)
		case e := <-client.Errors:
			log.Fatalf("Play rejected: %s", e.Message)
		case <-time.After(*timeout):
			log.Fatalf("Timed out waiting for play reply")
		}
	}

	// The next state push reflects every command sent above
	select {
	case <-client.States:
	default:
	}
	select {
	case st := <-client.States:
		printState(st)
	case e := <-client.Errors:
		log.Fatalf("Request rejected: %s", e.Message)
	case <-time.After(*timeout):
		log.Printf("No state received")
	}
}

// discover returns the first player that answers on mDNS
func discover(wait time.Duration) (*discovery.HostInfo, error) {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return nil, fmt.Errorf("failed to browse: %w", err)
	}

	log.Printf("Searching for players...")
	select {
	case host := <-mgr.Hosts():
		return host, nil
	case <-time.After(wait):
		return nil, fmt.Errorf("no player found after %v", wait)
	}
}

// buildUpload decodes a sound file and packs it for the wire
func buildUpload(path, as, codec string) (protocol.SoundUpload, error) {
	res, err := decode.Load(path, decode.Options{})
	if err != nil {
		return protocol.SoundUpload{}, err
	}

	if as == "" {
		as = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	req := protocol.SoundUpload{
		Name:     as,
		Codec:    codec,
		Channels: audio.EngineChannels,
	}

	samples := res.Samples()
	switch codec {
	case "pcm":
		enc, err := encode.NewPCM(audio.Format{Codec: "pcm", BitDepth: 16})
		if err != nil {
			return req, err
		}
		defer enc.Close()

		req.SampleRate = audio.EngineSampleRate
		req.BitDepth = 16
		req.Packets, err = encode.Packetize(enc, samples, pcmPacketFrame, audio.EngineChannels)
		if err != nil {
			return req, err
		}

	case "opus":
		enc, err := encode.NewOpus(audio.Format{Codec: "opus", SampleRate: opusRate, Channels: audio.EngineChannels})
		if err != nil {
			return req, err
		}
		defer enc.Close()

		req.SampleRate = opusRate
		req.Packets, err = encode.Packetize(enc, toRate(samples, opusRate), enc.FrameSize(), audio.EngineChannels)
		if err != nil {
			return req, err
		}

	default:
		return req, fmt.Errorf("unsupported codec: %q", codec)
	}

	log.Printf("Packed %s into %d %s packets", path, len(req.Packets), codec)
	return req, nil
}

// toRate converts engine-rate stereo samples to rate
func toRate(samples []int16, rate int) []int16 {
	in := make([]float32, len(samples))
	for i, s := range samples {
		in[i] = float32(s)
	}

	converted := resample.Convert(in, audio.EngineSampleRate, rate, audio.EngineChannels)
	out := make([]int16, len(converted))
	for i, v := range converted {
		out[i] = audio.FloatToInt16(v)
	}
	return out
}

func parsePosition(s string) (protocol.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return protocol.Position{}, fmt.Errorf("invalid position %q: expected x,y,z", s)
	}

	var v [3]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return protocol.Position{}, fmt.Errorf("invalid position %q: %w", s, err)
		}
		v[i] = float32(f)
	}
	return protocol.Position{X: v[0], Y: v[1], Z: v[2]}, nil
}

func printState(st protocol.ServerState) {
	health := "ok"
	if !st.Ok {
		health = "error: " + st.Error
	}
	fmt.Printf("Output: %s %s [%s] %s\n", st.Driver, st.Device, st.State, health)
	fmt.Printf("Volume: %.2f  Voices: %d  Pending: %d  Dropped: %d  Sounds: %d\n",
		st.MasterVolume, st.ActiveVoices, st.PendingTasks, st.DroppedTasks, st.Sounds)
}
