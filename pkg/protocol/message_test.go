package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageValid(t *testing.T) {
	msg, err := NewMessage("alice", "bob", "greetings", "hello bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.From)
	assert.Equal(t, "bob", msg.To)
	assert.Equal(t, "greetings", msg.Subject)
	assert.Equal(t, "hello bob", msg.Body)
	assert.False(t, msg.Delivered)
	assert.True(t, msg.DeliveredAt.IsZero())
}

func TestNewMessageFieldLimits(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		subj  string
		body  string
		field string
		limit int
	}{
		{
			name:  "from too long",
			from:  strings.Repeat("a", MaxFromLen+1),
			to:    "bob",
			field: "From",
			limit: MaxFromLen,
		},
		{
			name:  "to too long",
			from:  "alice",
			to:    strings.Repeat("b", MaxToLen+1),
			field: "To",
			limit: MaxToLen,
		},
		{
			name:  "subject too long",
			from:  "alice",
			to:    "bob",
			subj:  strings.Repeat("s", MaxSubjectLen+1),
			field: "Subject",
			limit: MaxSubjectLen,
		},
		{
			name:  "body too long",
			from:  "alice",
			to:    "bob",
			body:  strings.Repeat("x", MaxBodyLen+1),
			field: "Body",
			limit: MaxBodyLen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMessage(tt.from, tt.to, tt.subj, tt.body)
			require.Error(t, err)

			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.Equal(t, tt.limit, fieldErr.Limit)
			assert.Contains(t, fieldErr.Error(), tt.field)
		})
	}
}

func TestNewMessageAcceptsMaximumLengths(t *testing.T) {
	msg, err := NewMessage(
		strings.Repeat("a", MaxFromLen),
		strings.Repeat("b", MaxToLen),
		strings.Repeat("s", MaxSubjectLen),
		strings.Repeat("x", MaxBodyLen),
	)
	require.NoError(t, err)
	assert.Len(t, msg.Encode(), MessageWireSize)
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	original, err := NewMessage("alice", "bob", "subject line", "body text")
	require.NoError(t, err)
	original.Delivered = true
	original.DeliveredAt = time.Unix(1735689600, 0).UTC()

	encoded := original.Encode()
	require.Len(t, encoded, MessageWireSize)

	decoded, err := DecodeMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestMessageEncodeIsConstantSize(t *testing.T) {
	short, err := NewMessage("a", "b", "", "")
	require.NoError(t, err)
	long, err := NewMessage(
		strings.Repeat("a", MaxFromLen),
		BroadcastRecipient,
		strings.Repeat("s", MaxSubjectLen),
		strings.Repeat("x", MaxBodyLen),
	)
	require.NoError(t, err)

	assert.Len(t, short.Encode(), MessageWireSize)
	assert.Len(t, long.Encode(), MessageWireSize)
}

func TestDecodeMessageSizeMismatch(t *testing.T) {
	for _, size := range []int{0, 1, MessageWireSize - 1, MessageWireSize + 1, 2 * MessageWireSize} {
		_, err := DecodeMessage(make([]byte, size))
		assert.ErrorIs(t, err, ErrRecordSizeMismatch, "size %d should be rejected", size)
	}
}

func TestMessageBroadcast(t *testing.T) {
	broadcast, err := NewMessage("alice", BroadcastRecipient, "hi", "everyone")
	require.NoError(t, err)
	assert.True(t, broadcast.Broadcast())

	unicast, err := NewMessage("alice", "bob", "hi", "just you")
	require.NoError(t, err)
	assert.False(t, unicast.Broadcast())
}

func TestDecodeMessageZeroTimestamp(t *testing.T) {
	msg, err := NewMessage("alice", "bob", "hi", "x")
	require.NoError(t, err)

	decoded, err := DecodeMessage(msg.Encode())
	require.NoError(t, err)
	assert.True(t, decoded.DeliveredAt.IsZero())
	assert.False(t, decoded.Delivered)
}
