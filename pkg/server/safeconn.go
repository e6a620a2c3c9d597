package server

import (
	"net"
	"sync"

	"github.com/courierchat/courier/pkg/protocol"
)

// SafeConn wraps a net.Conn with automatic write synchronization, so
// the delivery scheduler and a connection's own handler can both send
// frames without interleaving bytes on the wire.
type SafeConn struct {
	net.Conn
	writeMu sync.Mutex
}

// NewSafeConn wraps a connection for synchronized frame writes
func NewSafeConn(conn net.Conn) *SafeConn {
	return &SafeConn{Conn: conn}
}

// SendFrame writes one length-prefixed frame under the write lock
func (c *SafeConn) SendFrame(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.SendFrame(c.Conn, payload)
}
