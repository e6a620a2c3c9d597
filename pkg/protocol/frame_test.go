package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReadFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty payload", payload: []byte{}},
		{name: "single byte", payload: []byte{0x42}},
		{name: "ascii command", payload: []byte("LIST_USERS")},
		{name: "binary payload", payload: []byte{0x00, 0xFF, 0x00, 0xFF}},
		{name: "max size payload", payload: make([]byte, MaxFrameSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, SendFrame(&buf, tt.payload))

			got, err := ReadFrame(&buf, MaxFrameSize)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, got)
			assert.Zero(t, buf.Len(), "frame should consume the whole encoding")
		})
	}
}

func TestSendFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := SendFrame(&buf, make([]byte, MaxFrameSize+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Zero(t, buf.Len(), "nothing should be written for an oversized payload")
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendFrame(&buf, []byte("this payload is too big for the receiver")))

	_, err := ReadFrame(&buf, 8)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFramePeerClosed(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "no bytes at all", data: nil, wantErr: io.EOF},
		{name: "partial length prefix", data: []byte{0x00, 0x00}, wantErr: io.ErrUnexpectedEOF},
		{name: "closed mid payload", data: []byte{0x00, 0x00, 0x00, 0x05, 'a', 'b'}, wantErr: io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data), MaxFrameSize)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadFrameZeroLength(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00}
	got, err := ReadFrame(bytes.NewReader(data), MaxFrameSize)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// A frame whose declared length exceeds the receiver's limit fails
// without corrupting the stream for the frames that follow.
func TestReadFrameOversizeThenRecover(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendFrame(&buf, bytes.Repeat([]byte{'x'}, 64)))
	require.NoError(t, SendFrame(&buf, []byte("after")))

	_, err := ReadFrame(&buf, 16)
	require.ErrorIs(t, err, ErrFrameTooLarge)

	got, err := ReadFrame(&buf, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("after"), got)
}

func TestFrameOverRealConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	payload := []byte("hello over a pipe")

	errc := make(chan error, 1)
	go func() {
		errc <- SendFrame(client, payload)
	}()

	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := ReadFrame(server, MaxFrameSize)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	assert.Equal(t, payload, got)
}

func TestFramePrefixIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SendFrame(&buf, []byte("abc")))

	raw := buf.Bytes()
	require.GreaterOrEqual(t, len(raw), 4)
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(raw[:4]))
}
