// ABOUTME: Remote control server for a running player
// ABOUTME: Accepts websocket clients, applies sound commands and pushes player state
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chime-audio/chime/internal/bank"
	"github.com/chime-audio/chime/internal/discovery"
	"github.com/chime-audio/chime/internal/protocol"
	"github.com/chime-audio/chime/internal/version"
	"github.com/chime-audio/chime/pkg/audio/output"
	"github.com/chime-audio/chime/pkg/mixer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultStateInterval is how often server/state is pushed
	DefaultStateInterval = time.Second

	// maxMessageSize bounds one incoming message; uploads are the large ones
	maxMessageSize = 32 << 20

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
)

// Engine is the player surface the server drives. *chime.Player satisfies it.
type Engine interface {
	StartSound(r *mixer.Resource, volume float32) mixer.Handle
	StartSoundAtPosition(r *mixer.Resource, volume float32, pos mixer.Vec3) mixer.Handle
	StopSound(r *mixer.Resource)
	StopHandle(h mixer.Handle)
	SetSoundListenerLocation(loc mixer.Transform)
	SetSoundSourcePosition(r *mixer.Resource, pos mixer.Vec3)
	SetHandlePosition(h mixer.Handle, pos mixer.Vec3)
	SetMasterVolume(v float32)
	MasterVolume() float32
	Stats() mixer.Stats
	IsOk() bool
	ErrorDescription() string
	DriverName() string
	DriverState() output.State
	DeviceName() string
}

// Config holds server configuration
type Config struct {
	Addr          string // listen address, e.g. ":8928"
	Name          string
	EnableMDNS    bool
	StateInterval time.Duration
	Debug         bool
}

// Server exposes an Engine and a sound bank over websocket
type Server struct {
	config   Config
	serverID string
	engine   Engine
	sounds   *bank.Bank

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Session
	clientsMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Session is one connected remote
type Session struct {
	ID       string
	Name     string
	Conn     *websocket.Conn
	sendChan chan interface{}
}

// NewServer creates a server for engine and sounds
func NewServer(config Config, engine Engine, sounds *bank.Bank) *Server {
	if config.StateInterval <= 0 {
		config.StateInterval = DefaultStateInterval
	}
	if config.Name == "" {
		config.Name = version.Product
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		engine:   engine,
		sounds:   sounds,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Intended for trusted local networks
				origin := r.Header.Get("Origin")
				if origin != "" && origin != "http://localhost" && origin != "http://127.0.0.1" {
					log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clients:  make(map[string]*Session),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(discovery.DefaultPath, s.handleWebSocket)
	return s
}

// ServerID returns the instance id sent in server/hello
func (s *Server) ServerID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the control endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Printf("Remote control starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		port, err := portOf(s.config.Addr)
		if err != nil {
			return err
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			InstanceName: s.config.Name,
			Port:         port,
			Path:         discovery.DefaultPath,
			Version:      version.Version,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.stateLoop()
	}()

	log.Printf("Remote control listening on %s%s", s.config.Addr, discovery.DefaultPath)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Remote control shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
		s.Stop()
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Hijacked websocket connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
	log.Printf("Remote control stopped")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// stateLoop pushes server/state to every client
func (s *Server) stateLoop() {
	ticker := time.NewTicker(s.config.StateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.BroadcastState()
		}
	}
}

// BroadcastState sends the current state to every client
func (s *Server) BroadcastState() {
	state := s.State()

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		if err := s.sendMessage(c, protocol.TypeServerState, state); err != nil && s.config.Debug {
			log.Printf("[DEBUG] Dropping state for %s: %v", c.Name, err)
		}
	}
}

// State snapshots the engine
func (s *Server) State() protocol.ServerState {
	stats := s.engine.Stats()
	return protocol.ServerState{
		Driver:       s.engine.DriverName(),
		Device:       s.engine.DeviceName(),
		State:        s.engine.DriverState().String(),
		Ok:           s.engine.IsOk(),
		Error:        s.engine.ErrorDescription(),
		MasterVolume: s.engine.MasterVolume(),
		ActiveVoices: stats.ActiveVoices,
		PendingTasks: stats.PendingTasks,
		MixedFrames:  stats.MixedFrames,
		DroppedTasks: stats.DroppedTasks,
		Sounds:       s.sounds.Len(),
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New control connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection runs the handshake and the read loop for one client
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	conn.SetReadLimit(maxMessageSize)

	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected %s, got %s", protocol.TypeClientHello, msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		log.Printf("Client hello missing ClientID or Name")
		return
	}

	log.Printf("Client hello: %s (ID: %s, version %s)", hello.Name, hello.ClientID, hello.Version)

	client := &Session{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)

		errMsg := protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.ServerError{
				Error:   protocol.ErrCodeDuplicateClient,
				Message: "Client ID already connected",
			},
		}
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(errMsg); err != nil {
			log.Printf("Error sending duplicate rejection: %v", err)
		}
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		log.Printf("Client disconnected: %s", client.Name)
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  version.Version,
		Sounds:   s.sounds.Names(),
	}
	if err := s.sendMessage(client, protocol.TypeServerHello, serverHello); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}
	if err := s.sendMessage(client, protocol.TypeServerState, s.State()); err != nil {
		log.Printf("Error sending initial state: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(client)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleClientMessage(client, data)
	}
}

// clientWriter sends queued messages and keepalive pings
func (s *Server) clientWriter(client *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage dispatches one command
func (s *Server) handleClientMessage(client *Session, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		s.sendError(client, protocol.ErrCodeInvalidRequest, "malformed message")
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] %s from %s", msg.Type, client.Name)
	}

	var err error
	switch msg.Type {
	case protocol.TypeSoundPlay:
		err = s.handlePlay(client, msg.Payload)
	case protocol.TypeSoundStop:
		err = s.handleStop(msg.Payload)
	case protocol.TypeSoundPosition:
		err = s.handlePosition(msg.Payload)
	case protocol.TypeListenerSet:
		err = s.handleListener(msg.Payload)
	case protocol.TypeVolumeSet:
		err = s.handleVolume(msg.Payload)
	case protocol.TypeSoundUpload:
		err = s.handleUpload(client, msg.Payload)
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		err = &requestError{code: protocol.ErrCodeUnknownType, msg: "unknown message type " + msg.Type}
	}

	if err != nil {
		code := protocol.ErrCodeInvalidRequest
		if re, ok := err.(*requestError); ok {
			code = re.code
		}
		s.sendError(client, code, err.Error())
	}
}

// sendMessage queues a JSON message for a client
func (s *Server) sendMessage(client *Session, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}

func (s *Server) sendError(client *Session, code, message string) {
	payload := protocol.ServerError{Error: code, Message: message}
	if err := s.sendMessage(client, protocol.TypeServerError, payload); err != nil {
		log.Printf("Error sending error to %s: %v", client.Name, err)
	}
}

// portOf extracts the numeric port of a listen address
func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("invalid port in listen address %q", addr)
	}
	return port, nil
}

// decodePayload converts a generic JSON payload into a typed struct
func decodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
