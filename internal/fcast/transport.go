package fcast

import (
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the byte-stream carrier a Session reads packets from and
// writes packets to. Two concrete carriers exist: a plain TCP socket and a
// WebSocket connection carrying binary frames.
type Transport interface {
	// Read blocks until at least one byte is available and returns it.
	Read() ([]byte, error)
	// Write sends a fully-framed packet.
	Write(data []byte) error
	// Shutdown closes the underlying connection. Safe to call more than once.
	Shutdown() error
}

// TCPTransport carries FCast packets over a raw TCP connection.
type TCPTransport struct {
	conn net.Conn
	buf  []byte
}

// DialTCP connects to a device's FCast TCP port.
func DialTCP(addr string, timeout time.Duration) (*TCPTransport, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("fcast: dial tcp %s: %w", addr, err)
	}
	return &TCPTransport{conn: conn, buf: make([]byte, 4096)}, nil
}

func (t *TCPTransport) Read() ([]byte, error) {
	n, err := t.conn.Read(t.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, t.buf[:n])
	return out, nil
}

func (t *TCPTransport) Write(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *TCPTransport) Shutdown() error {
	return t.conn.Close()
}

// WebSocketTransport carries FCast packets as binary WebSocket frames.
type WebSocketTransport struct {
	conn *websocket.Conn
}

// DialWebSocket connects to a device's FCast WebSocket endpoint.
func DialWebSocket(url string) (*WebSocketTransport, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("fcast: dial websocket %s: %w", url, err)
	}
	return &WebSocketTransport{conn: conn}, nil
}

func (t *WebSocketTransport) Read() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *WebSocketTransport) Write(data []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *WebSocketTransport) Shutdown() error {
	return t.conn.Close()
}
