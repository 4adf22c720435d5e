package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/unitconsole/internal/protocol/frame"
)

// Conn frames messages over one stream connection. Send is safe for
// concurrent use; Receive must be called from a single reader.
type Conn struct {
	conn    net.Conn
	cfg     Config
	limits  frame.Limits
	writeMu sync.Mutex
	nextID  atomic.Uint64
}

func NewConn(c net.Conn, cfg Config) *Conn {
	return &Conn{conn: c, cfg: cfg, limits: frame.DefaultLimits()}
}

// NextID returns a fresh non-zero message id.
func (c *Conn) NextID() uint64 {
	return c.nextID.Add(1)
}

func (c *Conn) Send(messageID uint64, msg Message) error {
	b, err := EncodeFrame(messageID, msg, c.limits)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err = c.conn.Write(b)
	return err
}

// Receive reads one frame, waiting at most timeout when it is positive.
func (c *Conn) Receive(timeout time.Duration) (frame.Frame, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return frame.Frame{}, err
	}
	return frame.ReadFrame(c.conn, c.limits)
}

func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
