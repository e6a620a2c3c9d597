package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Wire slot widths for the fixed-layout message record. Each string
// slot reserves one byte for a NUL terminator, so the usable content
// length is one less than the slot.
const (
	FromSlot    = 50
	ToSlot      = 50
	SubjectSlot = 100
	BodySlot    = 500

	MaxFromLen    = FromSlot - 1
	MaxToLen      = ToSlot - 1
	MaxSubjectLen = SubjectSlot - 1
	MaxBodyLen    = BodySlot - 1

	// MessageWireSize is the exact encoded size of a message record:
	// four NUL-padded string slots, one delivered-flag byte, and an
	// 8-byte big-endian Unix timestamp.
	MessageWireSize = FromSlot + ToSlot + SubjectSlot + BodySlot + 1 + 8
)

var ErrRecordSizeMismatch = errors.New("encoded message record has wrong size")

// FieldError reports a message field that exceeds its maximum length.
type FieldError struct {
	Field string
	Limit int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s exceeds the limit of %d characters", e.Field, e.Limit)
}

// Message is the unit of user content exchanged between clients. The
// string fields are bounded so the record encodes to a constant-size
// byte block (MessageWireSize).
type Message struct {
	From    string
	To      string
	Subject string
	Body    string

	// Delivered and DeliveredAt are stamped by the delivery scheduler
	// at flush time; they are zero until then.
	Delivered   bool
	DeliveredAt time.Time
}

// NewMessage validates each field against its maximum length and
// returns a *FieldError naming the offending field if one is exceeded.
// Oversized fields are a hard failure, never truncated.
func NewMessage(from, to, subject, body string) (*Message, error) {
	if err := checkField("From", from, MaxFromLen); err != nil {
		return nil, err
	}
	if err := checkField("To", to, MaxToLen); err != nil {
		return nil, err
	}
	if err := checkField("Subject", subject, MaxSubjectLen); err != nil {
		return nil, err
	}
	if err := checkField("Body", body, MaxBodyLen); err != nil {
		return nil, err
	}

	return &Message{
		From:    from,
		To:      to,
		Subject: subject,
		Body:    body,
	}, nil
}

func checkField(name, value string, limit int) error {
	if len(value) > limit {
		return &FieldError{Field: name, Limit: limit}
	}
	return nil
}

// Broadcast reports whether the record addresses every online user.
func (m *Message) Broadcast() bool {
	return m.To == BroadcastRecipient
}

// Encode produces the fixed-size wire form of the record. The layout
// is written field by field (no memory-image tricks): from, to,
// subject, body, delivered flag, delivery timestamp.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, MessageWireSize)
	buf = appendSlot(buf, m.From, FromSlot)
	buf = appendSlot(buf, m.To, ToSlot)
	buf = appendSlot(buf, m.Subject, SubjectSlot)
	buf = appendSlot(buf, m.Body, BodySlot)

	if m.Delivered {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	var ts int64
	if !m.DeliveredAt.IsZero() {
		ts = m.DeliveredAt.Unix()
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(ts))

	return buf
}

// DecodeMessage reconstructs a record from its wire form. Any input
// whose length differs from MessageWireSize fails with
// ErrRecordSizeMismatch.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) != MessageWireSize {
		return nil, ErrRecordSizeMismatch
	}

	m := &Message{}
	offset := 0
	m.From, offset = readSlot(data, offset, FromSlot)
	m.To, offset = readSlot(data, offset, ToSlot)
	m.Subject, offset = readSlot(data, offset, SubjectSlot)
	m.Body, offset = readSlot(data, offset, BodySlot)

	m.Delivered = data[offset] != 0
	offset++

	ts := int64(binary.BigEndian.Uint64(data[offset : offset+8]))
	if ts != 0 {
		m.DeliveredAt = time.Unix(ts, 0).UTC()
	}

	return m, nil
}

func appendSlot(buf []byte, value string, slot int) []byte {
	// Validated records always fit; clamp anyway so a hand-built
	// record can never produce a malformed block.
	if len(value) > slot-1 {
		value = value[:slot-1]
	}
	buf = append(buf, value...)
	for i := len(value); i < slot; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func readSlot(data []byte, offset, slot int) (string, int) {
	raw := data[offset : offset+slot]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw), offset + slot
}
