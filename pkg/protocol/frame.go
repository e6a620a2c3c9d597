package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// MaxFrameSize is the maximum allowed frame payload size (1 MB)
	MaxFrameSize = 1024 * 1024
)

var (
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// SendFrame writes a length-prefixed frame to the writer.
// Format: [Length (4 bytes, big-endian)][Payload (N bytes)]
//
// The length prefix makes one SendFrame correspond to exactly one
// ReadFrame on the far side, regardless of how TCP fragments or
// coalesces the stream underneath.
func SendFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}

	if len(payload) > 0 {
		// io.Writer contracts require Write to loop over partial
		// writes itself; net.Conn implementations do.
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from the reader.
//
// Returns io.EOF if the peer closed the connection before any prefix
// byte arrived, and io.ErrUnexpectedEOF if it closed mid-frame. A
// decoded length above maxSize fails with ErrFrameTooLarge after
// discarding the payload, so the failure does not corrupt the stream
// for the frames that follow.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		// ReadFull returns io.EOF only when zero bytes were read,
		// which is the clean peer-closed case.
		return nil, err
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxSize {
		// Discard the oversized payload so the stream stays aligned
		// for subsequent frames.
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return nil, err
		}
		return nil, ErrFrameTooLarge
	}
	if length == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
