// ABOUTME: mDNS discovery of Sendspin servers
// ABOUTME: Browses _sendspin-server._tcp and resolves each entry to a websocket URL
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the service servers advertise for client-initiated connections
	ServiceType = "_sendspin-server._tcp"

	// DefaultPath is used when a server's TXT record carries no path
	DefaultPath = "/sendspin"
)

// Config holds discovery configuration
type Config struct {
	// Timeout bounds each mDNS query round
	Timeout time.Duration

	// Interface restricts queries to one network interface when set
	Interface *net.Interface
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
	query   func(*mdns.QueryParam) error
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the websocket URL for the server
func (s *ServerInfo) URL() string {
	return "ws://" + s.Addr() + s.Path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
		query:   mdns.Query,
	}
}

// Browse searches for Sendspin servers until Stop is called
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for servers
func (m *Manager) browseLoop() {
	defer close(m.servers)

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := serverFromEntry(entry)
				if server == nil {
					continue
				}

				log.Printf("Discovered server: %s at %s", server.Name, server.URL())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service:   ServiceType,
			Domain:    "local",
			Timeout:   m.config.Timeout,
			Interface: m.config.Interface,
			Entries:   entries,
		}

		if err := m.query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done

		// Back off between rounds so a failing query does not spin
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// Servers returns the channel of discovered servers. It is closed after Stop.
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// Discover browses until the first server is found or ctx is done
func Discover(ctx context.Context, config Config) (*ServerInfo, error) {
	m := NewManager(config)
	defer m.Stop()

	if err := m.Browse(); err != nil {
		return nil, err
	}
	return first(ctx, m.Servers())
}

func first(ctx context.Context, servers <-chan *ServerInfo) (*ServerInfo, error) {
	select {
	case s, ok := <-servers:
		if !ok {
			return nil, fmt.Errorf("discovery stopped")
		}
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no server found: %w", ctx.Err())
	}
}

// serverFromEntry converts an mDNS entry, reading the websocket path from TXT
func serverFromEntry(entry *mdns.ServiceEntry) *ServerInfo {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	host := entry.Host
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		host = entry.AddrV6.String()
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return nil
	}

	return &ServerInfo{
		Name: serviceName(entry.Name),
		Host: host,
		Port: entry.Port,
		Path: pathFromTXT(entry.InfoFields),
	}
}

// serviceName strips the service type and domain from an instance name
func serviceName(name string) string {
	if i := strings.Index(name, "."+ServiceType); i >= 0 {
		return name[:i]
	}
	return strings.TrimSuffix(name, ".")
}

func pathFromTXT(fields []string) string {
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key != "path" {
			continue
		}
		if value == "" {
			return DefaultPath
		}
		if !strings.HasPrefix(value, "/") {
			value = "/" + value
		}
		return value
	}
	return DefaultPath
}
