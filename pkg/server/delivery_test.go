package server

import (
	"io"
	"log"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBareServer builds a server without starting its listeners so the
// scheduler internals can be driven directly.
func newBareServer(t *testing.T) *Server {
	t.Helper()

	log.SetOutput(io.Discard)

	config := DefaultConfig()
	config.LogFile = "" // in-memory sink
	srv, err := NewServer(config)
	require.NoError(t, err)
	return srv
}

func TestFlushRecordsSendFailureForOnlineRecipient(t *testing.T) {
	srv := newBareServer(t)

	// Register bob on a pipe whose peer is already closed: he is
	// online as far as the registry knows, but the send must fail.
	ours, theirs := net.Pipe()
	theirs.Close()
	t.Cleanup(func() { ours.Close() })

	bob := srv.registry.Register(ours)
	require.NoError(t, srv.registry.SetUsername(bob, "bob"))

	srv.queue.Enqueue(mustMessage(t, "alice", "bob"))
	srv.flushQueue()

	entries := srv.History().All()
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeSendFailed, entries[0].Outcome)
}

func TestFlushRecordsOfflineRecipient(t *testing.T) {
	srv := newBareServer(t)

	srv.queue.Enqueue(mustMessage(t, "alice", "carol"))
	srv.flushQueue()

	entries := srv.History().All()
	require.Len(t, entries, 1)
	assert.Equal(t, OutcomeOffline, entries[0].Outcome)
}
