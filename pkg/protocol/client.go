// ABOUTME: WebSocket transport for Sendspin Protocol communication
// ABOUTME: Dials the server, keeps the link alive with pings, and reports frames through callbacks
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultPath is the Sendspin WebSocket endpoint
const DefaultPath = "/sendspin"

// ErrNotConnected is returned when sending without an open connection
var ErrNotConnected = errors.New("not connected")

// Handler receives transport events. Callbacks for one connection are
// delivered from a single goroutine, OnOpen first and exactly one of
// OnClosed or OnFailure last.
type Handler interface {
	OnOpen()
	OnText(data []byte)
	OnBinary(data []byte)
	OnClosed(code int, reason string)
	OnFailure(err error)
}

// Transport is a message-oriented duplex channel to a server
type Transport interface {
	// Open connects and starts delivering events to h
	Open(ctx context.Context, h Handler) error

	// SendText sends one text frame
	SendText(data []byte) error

	// Close closes the connection; h receives OnClosed
	Close(reason string) error
}

// Config holds transport configuration
type Config struct {
	URL          string
	PingInterval time.Duration // default 10s
	PongWait     time.Duration // default 3x PingInterval
	DialTimeout  time.Duration // default 5s
}

// ServerURL builds a ws:// URL from host:port, or passes a full URL through
func ServerURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: DefaultPath}
	return u.String()
}

// Client is a gorilla/websocket Transport
type Client struct {
	config Config

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	closing bool
	done    chan struct{}
}

// NewClient creates a WebSocket transport
func NewClient(config Config) *Client {
	if config.PingInterval <= 0 {
		config.PingInterval = 10 * time.Second
	}
	if config.PongWait <= 0 {
		config.PongWait = 3 * config.PingInterval
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	return &Client{config: config}
}

// Open establishes the WebSocket connection and starts the reader
func (c *Client) Open(ctx context.Context, h Handler) error {
	log.Printf("Connecting to %s", c.config.URL)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.config.DialTimeout

	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		err = fmt.Errorf("dial failed: %w", err)
		h.OnFailure(err)
		return err
	}

	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.closing = false
	c.done = done
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	h.OnOpen()

	go c.keepAlive(conn, done)
	go c.readMessages(conn, done, h)

	return nil
}

// readMessages reads and routes incoming frames until the connection ends
func (c *Client) readMessages(conn *websocket.Conn, done chan struct{}, h Handler) {
	defer close(done)
	defer conn.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()

			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				log.Printf("Connection closed by server: %d %s", closeErr.Code, closeErr.Text)
				h.OnClosed(closeErr.Code, closeErr.Text)
			case closing:
				h.OnClosed(websocket.CloseNormalClosure, "client close")
			default:
				log.Printf("Read error: %v", err)
				h.OnFailure(fmt.Errorf("read failed: %w", err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			h.OnBinary(data)
		case websocket.TextMessage:
			h.OnText(data)
		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

// keepAlive pings the server so a dead link surfaces as a read failure
func (c *Client) keepAlive(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				log.Printf("Ping failed: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}

// SendText sends a text frame
func (c *Client) SendText(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and waits briefly for the reader to finish
func (c *Client) Close(reason string) error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	if conn == nil || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.conn = nil
	c.mu.Unlock()

	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		conn.Close()
	}

	log.Printf("Connection closed")
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}
