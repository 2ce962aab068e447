package server

import (
	"net"
	"sync"
)

// SafeConn wraps a net.Conn with write synchronization so that the request
// handler and the notification dispatch loop can interleave lines on the
// same connection without tearing them.
type SafeConn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// NewSafeConn wraps conn.
func NewSafeConn(conn net.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteLine writes one already-terminated wire line as a single write.
func (c *SafeConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.conn.Write([]byte(line))
	return err
}

// Close closes the underlying connection.
func (c *SafeConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the underlying connection's remote address.
func (c *SafeConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
