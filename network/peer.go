package network

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// HeaderSize is the fixed width of the ASCII-decimal length header that
// precedes every message body (spec.md §4.7/§6).
const HeaderSize = 10

// DialTimeout bounds outbound connects and sends (spec.md §6).
const DialTimeout = 30 * time.Second

// Conn wraps a TCP connection framed with the 10-byte space-padded
// ASCII-decimal length header spec.md mandates — deliberately NOT the
// teacher's 4-byte binary length prefix, grounded instead on
// original_source/src/p2p/p2p_server.py's
// receive_all/receive_message/send_message.
type Conn struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Dial connects to addr with DialTimeout and wraps the connection in
// plain TCP. Equivalent to DialTLS(addr, nil).
func Dial(addr string) (*Conn, error) {
	return DialTLS(addr, nil)
}

// DialTLS connects to addr with DialTimeout. If tlsCfg is non-nil the
// connection is established over mTLS instead of plain TCP, matching
// tolelom-tolchain/network/peer.go's Connect's "nil → plain TCP"
// convention.
func DialTLS(addr string, tlsCfg *tls.Config) (*Conn, error) {
	dialer := net.Dialer{Timeout: DialTimeout}
	var conn net.Conn
	var err error
	if tlsCfg != nil {
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewConn(conn), nil
}

// Send writes msg as a length-framed JSON body: a 10-byte left-aligned
// space-padded ASCII decimal header followed by the body bytes.
func (c *Conn) Send(msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	header := fmt.Sprintf("%-*d", HeaderSize, len(body))
	if len(header) != HeaderSize {
		return fmt.Errorf("message too large to frame: %d bytes", len(body))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(DialTimeout))
	if _, err := io.WriteString(c.conn, header); err != nil {
		return err
	}
	_, err = c.conn.Write(body)
	return err
}

// Receive reads exactly the header, parses the body length, reads
// exactly that many body bytes, and decodes JSON. A read deadline of
// DialTimeout applies to the whole exchange.
func (c *Conn) Receive() (Message, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(DialTimeout))

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return Message{}, err
	}
	length, err := strconv.Atoi(strings.TrimSpace(string(header)))
	if err != nil {
		return Message{}, fmt.Errorf("invalid length header %q: %w", header, err)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// Close terminates the underlying connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// RemoteAddr returns the remote address string, or "" if unavailable.
func (c *Conn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// SendTo dials addr, sends msg, and closes the connection. Connection
// refusal is the caller's to log; it is never fatal (spec.md §4.7).
func SendTo(addr string, msg Message) error {
	return SendToTLS(addr, msg, nil)
}

// SendToTLS is SendTo dialing over mTLS when tlsCfg is non-nil.
func SendToTLS(addr string, msg Message, tlsCfg *tls.Config) error {
	conn, err := DialTLS(addr, tlsCfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Send(msg)
}
