package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courierchat/courier/pkg/protocol"
)

// Delivery outcomes recorded in the history log.
const (
	OutcomeDelivered  = "delivered"
	OutcomeBroadcast  = "broadcast"
	OutcomeOffline    = "recipient_offline"
	OutcomeSendFailed = "send_failed"
)

// HistoryEntry is one processed message with its delivery outcome.
type HistoryEntry struct {
	ID          uuid.UUID
	Message     *protocol.Message
	Outcome     string
	ProcessedAt time.Time
}

// History is the append-only in-memory record of every message the
// scheduler has processed, delivered or not. It is never pruned.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

// NewHistory creates an empty history log
func NewHistory() *History {
	return &History{}
}

// Append records a processed message
func (h *History) Append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
}

// All returns a copy of every entry in processing order
func (h *History) All() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := make([]HistoryEntry, len(h.entries))
	copy(entries, h.entries)
	return entries
}

// Len returns the number of recorded entries
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
