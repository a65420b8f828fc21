// ABOUTME: Websocket client for the remote control protocol
// ABOUTME: Handles connection, handshake, command sending and message routing
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/chime-audio/chime/internal/discovery"
	"github.com/chime-audio/chime/internal/protocol"
	"github.com/chime-audio/chime/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientConfig holds client configuration
type ClientConfig struct {
	ServerAddr string // host:port
	Path       string // default: /chime
	ClientID   string // default: random UUID
	Name       string
}

// Client controls a remote server
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	mu     sync.RWMutex
	hello  protocol.ServerHello

	// Message channels
	States   chan protocol.ServerState
	Started  chan protocol.SoundStarted
	Uploaded chan protocol.SoundUploaded
	Errors   chan protocol.ServerError

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new control client
func NewClient(config ClientConfig) *Client {
	if config.Path == "" {
		config.Path = discovery.DefaultPath
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name = version.Product + "-remote"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:   config,
		States:   make(chan protocol.ServerState, 1),
		Started:  make(chan protocol.SoundStarted, 10),
		Uploaded: make(chan protocol.SoundUploaded, 10),
		Errors:   make(chan protocol.ServerError, 10),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect dials the server and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  version.Version,
	}
	if err := c.send(protocol.TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	if msg.Type == protocol.TypeServerError {
		var serr protocol.ServerError
		decodePayload(msg.Payload, &serr)
		return fmt.Errorf("server rejected client: %s", serr.Message)
	}
	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := decodePayload(msg.Payload, &serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.hello = serverHello
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (version %s, %d sounds)",
		serverHello.Name, serverHello.Version, len(serverHello.Sounds))
	return nil
}

// Hello returns the server/hello received during Connect
func (c *Client) Hello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// send writes one message; writes are serialized by mu
func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(protocol.Message{Type: msgType, Payload: payload})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsConnected() {
				log.Printf("Read error: %v", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			c.handleJSONMessage(data)
		}
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeServerState:
		var state protocol.ServerState
		if err := decodePayload(msg.Payload, &state); err != nil {
			log.Printf("Invalid state: %v", err)
			return
		}
		// Only the latest state matters; replace an unread one
		select {
		case <-c.States:
		default:
		}
		select {
		case c.States <- state:
		default:
		}

	case protocol.TypeSoundStarted:
		var started protocol.SoundStarted
		if err := decodePayload(msg.Payload, &started); err != nil {
			log.Printf("Invalid sound/started: %v", err)
			return
		}
		select {
		case c.Started <- started:
		case <-c.ctx.Done():
		}

	case protocol.TypeSoundUploaded:
		var up protocol.SoundUploaded
		if err := decodePayload(msg.Payload, &up); err != nil {
			log.Printf("Invalid sound/uploaded: %v", err)
			return
		}
		select {
		case c.Uploaded <- up:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerError:
		var serr protocol.ServerError
		if err := decodePayload(msg.Payload, &serr); err != nil {
			log.Printf("Invalid server/error: %v", err)
			return
		}
		log.Printf("Server error: %s (%s)", serr.Message, serr.Error)
		select {
		case c.Errors <- serr:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Play starts a sound
func (c *Client) Play(req protocol.PlaySound) error {
	return c.send(protocol.TypeSoundPlay, req)
}

// Stop stops every voice of a sound
func (c *Client) Stop(name string) error {
	return c.send(protocol.TypeSoundStop, protocol.StopSound{Name: name})
}

// StopHandle stops one voice
func (c *Client) StopHandle(handle uint64) error {
	return c.send(protocol.TypeSoundStop, protocol.StopSound{Handle: handle})
}

// SetPosition moves a voice by handle, or every voice of name when handle is 0
func (c *Client) SetPosition(name string, handle uint64, pos protocol.Position) error {
	return c.send(protocol.TypeSoundPosition, protocol.SoundPosition{Name: name, Handle: handle, Position: pos})
}

// SetListener moves the listener; rot may be nil
func (c *Client) SetListener(pos protocol.Position, rot *protocol.Rotation) error {
	return c.send(protocol.TypeListenerSet, protocol.ListenerSet{Position: pos, Rotation: rot})
}

// SetVolume changes the master volume
func (c *Client) SetVolume(volume float32) error {
	return c.send(protocol.TypeVolumeSet, protocol.VolumeSet{Volume: volume})
}

// Upload registers a sound on the server
func (c *Client) Upload(req protocol.SoundUpload) error {
	return c.send(protocol.TypeSoundUpload, req)
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
