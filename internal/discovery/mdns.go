// ABOUTME: mDNS service discovery for chime hosts
// ABOUTME: Advertises the remote control endpoint and browses for other hosts
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the mDNS service chime hosts advertise
	ServiceType = "_chime._tcp"
	// DefaultPath is the websocket path advertised in the TXT record
	DefaultPath = "/chime"

	browseTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	InstanceName string
	Port         int
	Path         string
	Version      string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc
	hosts  chan *HostInfo
}

// HostInfo describes a discovered chime host
type HostInfo struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Version string
}

// URL returns the websocket URL of the host
func (h *HostInfo) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(h.Host, fmt.Sprint(h.Port)), h.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		hosts:  make(chan *HostInfo, 10),
	}
}

// txtRecords builds the TXT entries advertised with the service
func (m *Manager) txtRecords() []string {
	txt := []string{"path=" + m.config.Path}
	if m.config.Version != "" {
		txt = append(txt, "version="+m.config.Version)
	}
	return txt
}

// Advertise advertises this host via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.InstanceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.InstanceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for chime hosts until Stop
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for hosts
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				host := hostFromEntry(entry)
				if host == nil {
					continue
				}

				log.Printf("Discovered host: %s at %s:%d", host.Name, host.Host, host.Port)

				select {
				case m.hosts <- host:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: ServiceType,
			Domain:  "local",
			Timeout: browseTimeout,
			Entries: entries,
		}

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
	}
}

// hostFromEntry converts a service entry, nil if it has no IPv4 address
func hostFromEntry(entry *mdns.ServiceEntry) *HostInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	host := &HostInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: DefaultPath,
	}
	for k, v := range parseTXT(entry.InfoFields) {
		switch k {
		case "path":
			host.Path = v
		case "version":
			host.Version = v
		}
	}
	return host
}

// parseTXT splits key=value TXT fields; fields without '=' are ignored
func parseTXT(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Hosts returns the channel of discovered hosts
func (m *Manager) Hosts() <-chan *HostInfo {
	return m.hosts
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
