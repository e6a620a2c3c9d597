// Package client implements the wire-level Courier client: connect,
// identify, submit messages and queries, and receive asynchronous
// deliveries. Rendering and interaction are up to the caller.
package client

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/courierchat/courier/pkg/protocol"
)

// DefaultReplyTimeout bounds how long a command waits for its reply.
const DefaultReplyTimeout = 10 * time.Second

var ErrClosed = errors.New("client is closed")

// Client is a connection to a Courier server. Asynchronous frames
// (message deliveries and failure notices) are demultiplexed from
// synchronous command replies by a background read loop and surfaced
// on the Inbox and Notices channels.
type Client struct {
	// Inbox receives messages delivered by the scheduler.
	Inbox chan *protocol.Message
	// Notices receives NOTIFY: texts (delivery failures).
	Notices chan string

	// ReplyTimeout bounds each command's wait for its reply.
	ReplyTimeout time.Duration

	conn     net.Conn
	username string

	writeMu sync.Mutex
	replies chan string

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to a server and sends the identity frame
func Dial(addr, username string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(conn, username)
}

// NewClient identifies over an established connection and starts the
// read loop. Useful for transports other than plain TCP.
func NewClient(conn net.Conn, username string) (*Client, error) {
	if err := protocol.SendFrame(conn, []byte(username)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send identity: %w", err)
	}

	c := &Client{
		Inbox:        make(chan *protocol.Message, 64),
		Notices:      make(chan string, 16),
		ReplyTimeout: DefaultReplyTimeout,
		conn:         conn,
		username:     username,
		replies:      make(chan string, 8),
		closed:       make(chan struct{}),
	}

	go c.readLoop()
	return c, nil
}

// Username returns the identity this client connected with
func (c *Client) Username() string {
	return c.username
}

// readLoop splits incoming frames into deliveries, notices and
// command replies until the connection closes.
func (c *Client) readLoop() {
	defer c.Close()

	for {
		payload, err := protocol.ReadFrame(c.conn, protocol.MaxFrameSize)
		if err != nil {
			return
		}

		text := string(payload)
		switch {
		case strings.HasPrefix(text, protocol.ReplyMessage):
			msg, err := protocol.DecodeMessage(payload[len(protocol.ReplyMessage):])
			if err != nil {
				continue
			}
			select {
			case c.Inbox <- msg:
			case <-c.closed:
				return
			}
		case strings.HasPrefix(text, protocol.ReplyNotify):
			select {
			case c.Notices <- strings.TrimPrefix(text, protocol.ReplyNotify):
			case <-c.closed:
				return
			}
		default:
			select {
			case c.replies <- text:
			case <-c.closed:
				return
			}
		}
	}
}

// command sends the frames of one command under the write lock and
// waits for the matching reply.
func (c *Client) command(frames ...[]byte) (string, error) {
	c.writeMu.Lock()
	for _, frame := range frames {
		if err := protocol.SendFrame(c.conn, frame); err != nil {
			c.writeMu.Unlock()
			return "", err
		}
	}
	c.writeMu.Unlock()

	select {
	case reply := <-c.replies:
		if strings.HasPrefix(reply, protocol.ReplyError) {
			return reply, errors.New(strings.TrimPrefix(reply, protocol.ReplyError))
		}
		return reply, nil
	case <-c.closed:
		return "", ErrClosed
	case <-time.After(c.ReplyTimeout):
		return "", errors.New("timed out waiting for server reply")
	}
}

// Send submits a message for the next delivery cycle
func (c *Client) Send(msg *protocol.Message) error {
	_, err := c.command([]byte(protocol.CmdSend), msg.Encode())
	return err
}

// ListUsers returns the usernames currently online
func (c *Client) ListUsers() ([]string, error) {
	reply, err := c.command([]byte(protocol.CmdListUsers))
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(reply, protocol.ReplyUsers) {
		return nil, fmt.Errorf("unexpected reply %q", reply)
	}

	raw := strings.TrimPrefix(reply, protocol.ReplyUsers)
	var names []string
	for _, name := range strings.Split(raw, ";") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// FetchLog returns the server's accumulated log text
func (c *Client) FetchLog() (string, error) {
	reply, err := c.command([]byte(protocol.CmdGetLog))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(reply, protocol.ReplyLog) {
		return "", fmt.Errorf("unexpected reply %q", reply)
	}
	return strings.TrimPrefix(reply, protocol.ReplyLog), nil
}

// Disconnect asks the server for an orderly disconnect and closes the
// connection once it is acknowledged.
func (c *Client) Disconnect() error {
	_, err := c.command([]byte(protocol.CmdDisconnect))
	c.Close()
	return err
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
