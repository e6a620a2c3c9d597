package protocol

import (
	"bytes"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestFrameRoundTripProperty tests that any payload up to the frame
// limit survives a send/read cycle byte for byte.
func TestFrameRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payloadLen := rapid.IntRange(0, 4096).Draw(t, "payloadLen")
		payload := rapid.SliceOfN(rapid.Byte(), payloadLen, payloadLen).Draw(t, "payload")

		var buf bytes.Buffer
		if err := SendFrame(&buf, payload); err != nil {
			t.Fatalf("send failed: %v", err)
		}

		got, err := ReadFrame(&buf, MaxFrameSize)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
		}
	})
}

// TestFrameSequenceProperty tests that back-to-back frames on one
// stream decode independently and in order.
func TestFrameSequenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 8).Draw(t, "count")
		payloads := make([][]byte, count)

		var buf bytes.Buffer
		for i := range payloads {
			n := rapid.IntRange(0, 256).Draw(t, "len")
			payloads[i] = rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "payload")
			if err := SendFrame(&buf, payloads[i]); err != nil {
				t.Fatalf("send %d failed: %v", i, err)
			}
		}

		for i, want := range payloads {
			got, err := ReadFrame(&buf, MaxFrameSize)
			if err != nil {
				t.Fatalf("read %d failed: %v", i, err)
			}
			if !bytes.Equal(got, want) {
				t.Fatalf("frame %d mismatch", i)
			}
		}
	})
}

// asciiField draws a printable string of at most max bytes, matching
// what clients can actually put in a record field.
func asciiField(t *rapid.T, label string, max int) string {
	n := rapid.IntRange(0, max).Draw(t, label+"Len")
	b := rapid.SliceOfN(rapid.ByteRange(0x20, 0x7E), n, n).Draw(t, label)
	return string(b)
}

// TestMessageRoundTripProperty tests the record codec round-trip law
// over arbitrary valid field contents and delivery state.
func TestMessageRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg, err := NewMessage(
			asciiField(t, "from", MaxFromLen),
			asciiField(t, "to", MaxToLen),
			asciiField(t, "subject", MaxSubjectLen),
			asciiField(t, "body", MaxBodyLen),
		)
		if err != nil {
			t.Fatalf("construct failed: %v", err)
		}

		if rapid.Bool().Draw(t, "delivered") {
			msg.Delivered = true
			ts := rapid.Int64Range(1, 4102444800).Draw(t, "deliveredAt")
			msg.DeliveredAt = time.Unix(ts, 0).UTC()
		}

		encoded := msg.Encode()
		if len(encoded) != MessageWireSize {
			t.Fatalf("encoded size %d, want %d", len(encoded), MessageWireSize)
		}

		decoded, err := DecodeMessage(encoded)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded.From != msg.From || decoded.To != msg.To ||
			decoded.Subject != msg.Subject || decoded.Body != msg.Body {
			t.Fatalf("field mismatch after round trip")
		}
		if decoded.Delivered != msg.Delivered || !decoded.DeliveredAt.Equal(msg.DeliveredAt) {
			t.Fatalf("delivery state mismatch after round trip")
		}
	})
}
