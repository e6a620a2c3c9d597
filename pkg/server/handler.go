package server

import (
	"io"
	"log"
	"net"
	"strings"

	"github.com/courierchat/courier/pkg/protocol"
)

// handleConn runs the lifecycle of one client connection:
// AwaitingIdentity (first frame is the raw username), then Active
// (command dispatch), then Closed (exactly-once removal from the
// registry and connection teardown).
func (s *Server) handleConn(conn net.Conn, transport string) {
	client := s.registry.Register(conn)
	s.metrics.RecordConnection(transport, s.registry.Count())

	remoteAddr := conn.RemoteAddr().String()
	debugLog.Printf("New %s connection from %s (client %d)", transport, remoteAddr, client.ID)

	defer func() {
		name, remaining := s.registry.Remove(client)
		client.Conn.Close()
		s.metrics.RecordDisconnect(remaining)
		if name != "" {
			s.logf("Client removed: %s (%d remaining)", name, remaining)
		}
		s.onClientRemoved(remaining)
	}()

	// A client accepted during shutdown may have missed the
	// close-all sweep; never enter the read loop in that case.
	if s.stopping() {
		return
	}

	// AwaitingIdentity: the first frame is the bare username.
	identity, err := protocol.ReadFrame(client.Conn, s.config.MaxFrameSize)
	if err != nil {
		if err != io.EOF {
			debugLog.Printf("Client %d identity read error: %v", client.ID, err)
		}
		return
	}

	username := string(identity)
	if username == "" {
		s.sendReply(client, protocol.ReplyError+"Username cannot be empty")
		return
	}
	if err := s.registry.SetUsername(client, username); err != nil {
		s.sendReply(client, protocol.ReplyError+err.Error())
		return
	}

	s.logf("User connected: %s from %s", username, remoteAddr)

	// Active: one framed command per iteration until the peer
	// disconnects, a fatal protocol error occurs, or the server shuts
	// down (Stop closes the connection, which unblocks the read).
	for {
		payload, err := protocol.ReadFrame(client.Conn, s.config.MaxFrameSize)
		if err == protocol.ErrFrameTooLarge {
			// The oversized payload was discarded, so the stream is
			// still aligned and the session can continue.
			if err := s.sendReply(client, protocol.ReplyError+"Frame too large"); err != nil {
				return
			}
			continue
		}
		if err != nil {
			if err == io.EOF {
				s.logf("User disconnected: %s", username)
			} else if !s.stopping() {
				s.logf("Connection error for %s: %v", username, err)
			}
			return
		}

		command := string(payload)
		debugLog.Printf("Client %d ← RECV: %q", client.ID, command)

		closing, err := s.handleCommand(client, username, command)
		if err != nil {
			log.Printf("Client %d command error: %v", client.ID, err)
			return
		}
		if closing {
			return
		}
	}
}

// handleCommand dispatches one framed command. A returned error means
// the connection can no longer be trusted and must be closed; a reply
// of ERROR: with closing=false keeps the session alive.
func (s *Server) handleCommand(client *Client, username, command string) (closing bool, err error) {
	switch {
	case strings.HasPrefix(command, protocol.CmdSend):
		s.metrics.RecordCommand("send")
		return false, s.handleSend(client, username)

	case command == protocol.CmdListUsers:
		s.metrics.RecordCommand("list_users")
		var list strings.Builder
		list.WriteString(protocol.ReplyUsers)
		for _, name := range s.registry.Usernames() {
			list.WriteString(name)
			list.WriteByte(';')
		}
		return false, s.sendReply(client, list.String())

	case command == protocol.CmdGetLog:
		s.metrics.RecordCommand("get_log")
		contents, err := s.sink.Contents()
		if err != nil {
			log.Printf("Failed to read log sink: %v", err)
			return false, s.sendReply(client, protocol.ReplyError+"Cannot read server log")
		}
		return false, s.sendReply(client, protocol.ReplyLog+contents)

	case command == protocol.CmdDisconnect:
		s.metrics.RecordCommand("disconnect")
		s.logf("Disconnect requested by %s", username)
		return true, s.sendReply(client, protocol.ReplyOK+"Disconnected")

	default:
		s.metrics.RecordCommand("unknown")
		s.logf("Unknown command from %s: %s", username, command)
		return false, s.sendReply(client, protocol.ReplyError+"Unknown command")
	}
}

// handleSend reads the record frame that follows a SEND: command and
// enqueues it for the next delivery cycle. A malformed record gets an
// ERROR reply but keeps the connection open; a framing failure is
// fatal because the stream position can no longer be trusted.
func (s *Server) handleSend(client *Client, username string) error {
	payload, err := protocol.ReadFrame(client.Conn, s.config.MaxFrameSize)
	if err == protocol.ErrFrameTooLarge {
		return s.sendReply(client, protocol.ReplyError+"Frame too large")
	}
	if err != nil {
		return err
	}

	msg, err := protocol.DecodeMessage(payload)
	if err != nil {
		return s.sendReply(client, protocol.ReplyError+"Malformed message record")
	}

	// Re-validate the decoded fields so an invariant-violating record
	// never reaches the queue.
	if _, err := protocol.NewMessage(msg.From, msg.To, msg.Subject, msg.Body); err != nil {
		return s.sendReply(client, protocol.ReplyError+err.Error())
	}

	env := s.queue.Enqueue(msg)
	s.metrics.RecordEnqueued()
	s.logf("Message %s queued from %s to %s", env.ID, msg.From, msg.To)

	return s.sendReply(client, protocol.ReplyOK+"Message queued")
}

// sendReply sends one ASCII reply frame to a client
func (s *Server) sendReply(client *Client, reply string) error {
	debugLog.Printf("Client %d → SEND: %q", client.ID, reply)
	return client.Conn.SendFrame([]byte(reply))
}
