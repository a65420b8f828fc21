// ABOUTME: Command handlers for the remote control server
// ABOUTME: Maps play, stop, position, listener, volume and upload requests onto the engine
package remote

import (
	"bytes"
	"fmt"
	"log"

	"github.com/chime-audio/chime/internal/bank"
	"github.com/chime-audio/chime/internal/protocol"
	"github.com/chime-audio/chime/pkg/audio"
	"github.com/chime-audio/chime/pkg/audio/decode"
	"github.com/chime-audio/chime/pkg/mixer"
)

// requestError is a rejected command with a protocol error code
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func invalid(format string, args ...interface{}) error {
	return &requestError{code: protocol.ErrCodeInvalidRequest, msg: fmt.Sprintf(format, args...)}
}

func (s *Server) lookup(name string) (*bank.Sound, error) {
	if name == "" {
		return nil, invalid("sound name is required")
	}
	sound, ok := s.sounds.Get(name)
	if !ok || sound.Resource == nil {
		return nil, &requestError{code: protocol.ErrCodeUnknownSound, msg: "unknown sound " + name}
	}
	return sound, nil
}

func (s *Server) handlePlay(client *Session, payload interface{}) error {
	var req protocol.PlaySound
	if err := decodePayload(payload, &req); err != nil {
		return invalid("%v", err)
	}

	sound, err := s.lookup(req.Name)
	if err != nil {
		return err
	}

	volume := sound.Volume
	if req.Volume != nil {
		volume = *req.Volume
	}
	if volume < 0 || volume > 1 {
		return invalid("volume %v out of range 0-1", volume)
	}

	var h mixer.Handle
	switch {
	case req.Position != nil:
		h = s.engine.StartSoundAtPosition(sound.Resource, volume, toVec3(*req.Position))
	case sound.Position != nil:
		h = s.engine.StartSoundAtPosition(sound.Resource, volume, *sound.Position)
	default:
		h = s.engine.StartSound(sound.Resource, volume)
	}
	if !h.IsValid() {
		return &requestError{code: protocol.ErrCodeQueueFull, msg: "mixer queue is full"}
	}

	return s.sendMessage(client, protocol.TypeSoundStarted, protocol.SoundStarted{
		Name:   req.Name,
		Handle: uint64(h),
	})
}

func (s *Server) handleStop(payload interface{}) error {
	var req protocol.StopSound
	if err := decodePayload(payload, &req); err != nil {
		return invalid("%v", err)
	}

	if req.Handle != 0 {
		s.engine.StopHandle(mixer.Handle(req.Handle))
		return nil
	}
	sound, err := s.lookup(req.Name)
	if err != nil {
		return err
	}
	s.engine.StopSound(sound.Resource)
	return nil
}

func (s *Server) handlePosition(payload interface{}) error {
	var req protocol.SoundPosition
	if err := decodePayload(payload, &req); err != nil {
		return invalid("%v", err)
	}

	pos := toVec3(req.Position)
	if req.Handle != 0 {
		s.engine.SetHandlePosition(mixer.Handle(req.Handle), pos)
		return nil
	}
	sound, err := s.lookup(req.Name)
	if err != nil {
		return err
	}
	s.engine.SetSoundSourcePosition(sound.Resource, pos)
	return nil
}

func (s *Server) handleListener(payload interface{}) error {
	var req protocol.ListenerSet
	if err := decodePayload(payload, &req); err != nil {
		return invalid("%v", err)
	}

	loc := mixer.At(toVec3(req.Position))
	if req.Rotation != nil {
		loc.Rotation = mixer.Quat{X: req.Rotation.X, Y: req.Rotation.Y, Z: req.Rotation.Z, W: req.Rotation.W}
	}
	s.engine.SetSoundListenerLocation(loc)
	return nil
}

func (s *Server) handleVolume(payload interface{}) error {
	var req protocol.VolumeSet
	if err := decodePayload(payload, &req); err != nil {
		return invalid("%v", err)
	}
	if req.Volume < 0 || req.Volume > 1 {
		return invalid("volume %v out of range 0-1", req.Volume)
	}

	s.engine.SetMasterVolume(req.Volume)
	log.Printf("Master volume set to %.2f", req.Volume)
	return nil
}

func (s *Server) handleUpload(client *Session, payload interface{}) error {
	var req protocol.SoundUpload
	if err := decodePayload(payload, &req); err != nil {
		return invalid("%v", err)
	}
	if req.Name == "" {
		return invalid("sound name is required")
	}
	if len(req.Packets) == 0 {
		return invalid("upload %s has no packets", req.Name)
	}

	res, err := decodeUpload(req)
	if err != nil {
		log.Printf("Upload of %s from %s failed: %v", req.Name, client.Name, err)
		return &requestError{code: protocol.ErrCodeUploadFailed, msg: err.Error()}
	}

	old := s.sounds.Add(&bank.Sound{Name: req.Name, Volume: 1, Resource: res})
	if old != nil && old.Resource != nil {
		s.engine.StopSound(old.Resource)
	}

	log.Printf("Registered uploaded sound %s (%d frames) from %s", req.Name, res.Duration(), client.Name)
	return s.sendMessage(client, protocol.TypeSoundUploaded, protocol.SoundUploaded{
		Name:   req.Name,
		Frames: res.Duration(),
	})
}

// decodeUpload turns uploaded packets into an engine-rate resource
func decodeUpload(req protocol.SoundUpload) (*mixer.Resource, error) {
	switch req.Codec {
	case "pcm":
		data := bytes.Join(req.Packets, nil)
		return decode.LoadPCM(req.Name, data, audio.Format{
			Codec:      "pcm",
			SampleRate: req.SampleRate,
			Channels:   req.Channels,
			BitDepth:   req.BitDepth,
		})
	case "opus":
		return decode.LoadOpusPackets(req.Name, req.Packets, req.SampleRate, req.Channels)
	default:
		return nil, fmt.Errorf("unsupported codec: %q", req.Codec)
	}
}

func toVec3(p protocol.Position) mixer.Vec3 {
	return mixer.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}
