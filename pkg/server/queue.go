package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courierchat/courier/pkg/protocol"
)

// Envelope is a queued message plus the bookkeeping stamped at
// enqueue time. The ID ties log lines and history entries to one
// specific submission.
type Envelope struct {
	ID         uuid.UUID
	Message    *protocol.Message
	EnqueuedAt time.Time
}

// Queue buffers outgoing messages between handler submissions and
// scheduler flushes. Entries leave the queue only as a whole batch,
// never one at a time, so senders can never observe a half-drained
// flush.
type Queue struct {
	mu      sync.Mutex
	pending []Envelope
}

// NewQueue creates an empty delivery queue
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a message and returns its envelope
func (q *Queue) Enqueue(msg *protocol.Message) Envelope {
	env := Envelope{
		ID:         uuid.New(),
		Message:    msg,
		EnqueuedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, env)
	q.mu.Unlock()

	return env
}

// DetachBatch atomically takes the entire current queue contents and
// leaves a fresh queue behind. Messages enqueued after detachment wait
// for the next flush cycle.
func (q *Queue) DetachBatch() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.pending
	q.pending = nil
	return batch
}

// Len returns the number of messages awaiting the next flush
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
