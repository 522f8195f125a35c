// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers entry conversion, TXT path handling and the browse loop with a stubbed query
package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.Timeout != 3*time.Second {
		t.Errorf("expected default timeout 3s, got %v", mgr.config.Timeout)
	}
}

func TestPathFromTXT(t *testing.T) {
	tests := []struct {
		fields []string
		want   string
	}{
		{nil, "/sendspin"},
		{[]string{"path=/sendspin"}, "/sendspin"},
		{[]string{"version=1", "path=ws"}, "/ws"},
		{[]string{"path="}, "/sendspin"},
		{[]string{"pathological"}, "/sendspin"},
	}

	for _, tt := range tests {
		if got := pathFromTXT(tt.fields); got != tt.want {
			t.Errorf("pathFromTXT(%v) = %q, want %q", tt.fields, got, tt.want)
		}
	}
}

func TestServerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "Living Room._sendspin-server._tcp.local.",
		Host:       "music.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       8927,
		InfoFields: []string{"path=/sendspin"},
	}

	s := serverFromEntry(entry)
	if s == nil {
		t.Fatal("expected server")
	}
	if s.Name != "Living Room" {
		t.Errorf("expected name 'Living Room', got %q", s.Name)
	}
	if s.URL() != "ws://192.168.1.20:8927/sendspin" {
		t.Errorf("unexpected URL %s", s.URL())
	}
}

func TestServerFromEntryFallsBackToHost(t *testing.T) {
	s := serverFromEntry(&mdns.ServiceEntry{Name: "x", Host: "music.local.", Port: 8927})
	if s == nil || s.Host != "music.local" {
		t.Fatalf("expected host fallback, got %+v", s)
	}

	if serverFromEntry(&mdns.ServiceEntry{Name: "x", Host: "h"}) != nil {
		t.Error("expected entry without port to be skipped")
	}
	if serverFromEntry(nil) != nil {
		t.Error("expected nil entry to be skipped")
	}
}

func TestServerInfoAddrIPv6(t *testing.T) {
	s := &ServerInfo{Host: "fe80::1", Port: 8927, Path: "/sendspin"}
	if s.URL() != "ws://[fe80::1]:8927/sendspin" {
		t.Errorf("unexpected URL %s", s.URL())
	}
}

func TestBrowseDeliversServers(t *testing.T) {
	mgr := NewManager(Config{Timeout: 10 * time.Millisecond})
	mgr.query = func(p *mdns.QueryParam) error {
		if p.Service != ServiceType {
			t.Errorf("unexpected service %s", p.Service)
		}
		p.Entries <- &mdns.ServiceEntry{
			Name:   "Kitchen._sendspin-server._tcp.local.",
			AddrV4: net.ParseIP("10.0.0.5"),
			Port:   8927,
		}
		return nil
	}

	if err := mgr.Browse(); err != nil {
		t.Fatalf("Browse: %v", err)
	}
	defer mgr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := first(ctx, mgr.Servers())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if s.Name != "Kitchen" || s.Addr() != "10.0.0.5:8927" {
		t.Errorf("unexpected server %+v", s)
	}
}

func TestStopClosesServers(t *testing.T) {
	mgr := NewManager(Config{Timeout: 10 * time.Millisecond})
	mgr.query = func(*mdns.QueryParam) error { return errors.New("no multicast") }

	if err := mgr.Browse(); err != nil {
		t.Fatalf("Browse: %v", err)
	}
	mgr.Stop()

	select {
	case _, ok := <-mgr.Servers():
		if ok {
			t.Error("expected no servers")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("servers channel not closed after Stop")
	}
}

func TestFirstHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := first(ctx, make(chan *ServerInfo))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
