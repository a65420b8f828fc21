// ABOUTME: Remote control message type definitions
// ABOUTME: Defines the JSON envelope and payloads exchanged over the control websocket
package protocol

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeServerHello   = "server/hello"
	TypeServerState   = "server/state"
	TypeServerError   = "server/error"
	TypeSoundPlay     = "sound/play"
	TypeSoundStarted  = "sound/started"
	TypeSoundStop     = "sound/stop"
	TypeSoundPosition = "sound/position"
	TypeSoundUpload   = "sound/upload"
	TypeSoundUploaded = "sound/uploaded"
	TypeListenerSet   = "listener/set"
	TypeVolumeSet     = "volume/set"
)

// Error codes carried in ServerError
const (
	ErrCodeDuplicateClient = "duplicate_client_id"
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeUnknownSound    = "unknown_sound"
	ErrCodeQueueFull       = "queue_full"
	ErrCodeUploadFailed    = "upload_failed"
	ErrCodeUnknownType     = "unknown_type"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string   `json:"server_id"`
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Sounds   []string `json:"sounds"`
}

// Position is a point in listener space, in meters
type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Rotation is an orientation quaternion
type Rotation struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// PlaySound starts a bank sound. Volume and Position fall back to the
// bank entry's defaults when omitted.
type PlaySound struct {
	Name     string    `json:"name"`
	Volume   *float32  `json:"volume,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// SoundStarted answers sound/play with the voice handle
type SoundStarted struct {
	Name   string `json:"name"`
	Handle uint64 `json:"handle"`
}

// StopSound stops one voice by handle, or every voice of a sound by name
type StopSound struct {
	Name   string `json:"name,omitempty"`
	Handle uint64 `json:"handle,omitempty"`
}

// SoundPosition moves one voice by handle, or every voice of a sound by name
type SoundPosition struct {
	Name     string   `json:"name,omitempty"`
	Handle   uint64   `json:"handle,omitempty"`
	Position Position `json:"position"`
}

// ListenerSet moves and orients the listener. A missing rotation faces
// forward.
type ListenerSet struct {
	Position Position  `json:"position"`
	Rotation *Rotation `json:"rotation,omitempty"`
}

// VolumeSet changes the master volume (0-1)
type VolumeSet struct {
	Volume float32 `json:"volume"`
}

// SoundUpload registers a sound from encoded packets. PCM packets are
// concatenated; Opus packets are decoded one by one.
type SoundUpload struct {
	Name       string   `json:"name"`
	Codec      string   `json:"codec"` // "pcm" or "opus"
	SampleRate int      `json:"sample_rate"`
	Channels   int      `json:"channels"`
	BitDepth   int      `json:"bit_depth,omitempty"`
	Packets    [][]byte `json:"packets"` // Base64-encoded
}

// SoundUploaded confirms an upload
type SoundUploaded struct {
	Name   string `json:"name"`
	Frames int64  `json:"frames"`
}

// ServerState reports the output and mixer state
type ServerState struct {
	Driver       string  `json:"driver"`
	Device       string  `json:"device,omitempty"`
	State        string  `json:"state"`
	Ok           bool    `json:"ok"`
	Error        string  `json:"error,omitempty"`
	MasterVolume float32 `json:"master_volume"`
	ActiveVoices int     `json:"active_voices"`
	PendingTasks int     `json:"pending_tasks"`
	MixedFrames  int64   `json:"mixed_frames"`
	DroppedTasks int64   `json:"dropped_tasks"`
	Sounds       int     `json:"sounds"`
}

// ServerError reports a rejected request
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
