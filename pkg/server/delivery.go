package server

import (
	"fmt"
	"time"

	"github.com/courierchat/courier/pkg/protocol"
)

// deliveryLoop is the scheduler goroutine: it wakes on the configured
// interval and flushes whatever has accumulated in the queue.
func (s *Server) deliveryLoop() {
	defer s.wg.Done()

	s.logf("Delivery scheduler started (interval %s)", s.config.DeliveryInterval)

	ticker := time.NewTicker(s.config.DeliveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			s.logf("Delivery scheduler stopped")
			return
		case <-ticker.C:
			s.flushQueue()
		}
	}
}

// flushQueue detaches the current queue contents as one batch and
// routes every record in enqueue order. Messages arriving while the
// batch is being processed start a fresh queue and wait for the next
// cycle. Every record ends up in the history log whether or not it
// could be delivered.
func (s *Server) flushQueue() {
	batch := s.queue.DetachBatch()
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	s.logf("Delivering %d message(s)", len(batch))

	for _, env := range batch {
		msg := env.Message
		msg.Delivered = true
		msg.DeliveredAt = time.Now().UTC()

		outcome := s.route(env)
		s.history.Append(HistoryEntry{
			ID:          env.ID,
			Message:     msg,
			Outcome:     outcome,
			ProcessedAt: time.Now().UTC(),
		})
	}

	s.metrics.RecordFlush(len(batch), time.Since(start).Seconds())
}

// route delivers one record to its destination(s) and returns the
// history outcome. Per-recipient send failures are logged and never
// abort the rest of the batch.
func (s *Server) route(env Envelope) string {
	msg := env.Message

	if msg.Broadcast() {
		targets := s.registry.BroadcastTargets(msg.From)
		s.metrics.RecordBroadcastFanout(len(targets))
		for _, target := range targets {
			if err := s.deliverTo(target, msg); err != nil {
				s.logf("Broadcast %s to %s failed: %v", env.ID, target.Username(), err)
				s.metrics.RecordDeliveryFailure("send_error")
				continue
			}
			s.metrics.RecordDelivered("broadcast")
		}
		s.logf("Message %s broadcast from %s", env.ID, msg.From)
		return OutcomeBroadcast
	}

	target, online := s.registry.Lookup(msg.To)
	if !online {
		s.metrics.RecordDeliveryFailure("offline")
		s.logf("Delivery failed: recipient %q not connected", msg.To)
		s.notifySender(msg.From, fmt.Sprintf("Delivery failed - user '%s' not connected", msg.To))
		return OutcomeOffline
	}

	if err := s.deliverTo(target, msg); err != nil {
		s.logf("Delivery %s to %s failed: %v", env.ID, msg.To, err)
		s.metrics.RecordDeliveryFailure("send_error")
		return OutcomeSendFailed
	}

	s.metrics.RecordDelivered("unicast")
	s.logf("Message %s delivered from %s to %s", env.ID, msg.From, msg.To)
	return OutcomeDelivered
}

// deliverTo frames a record as MSG: header plus encoded payload in a
// single frame. The registry lock is never held here; the target
// handle was copied out before any I/O.
func (s *Server) deliverTo(target *Client, msg *protocol.Message) error {
	frame := append([]byte(protocol.ReplyMessage), msg.Encode()...)
	return target.Conn.SendFrame(frame)
}

// notifySender reports a failed delivery back to the sender. If the
// sender has disconnected since enqueueing, the notice is silently
// dropped.
func (s *Server) notifySender(sender, notice string) {
	target, online := s.registry.Lookup(sender)
	if !online {
		return
	}
	if err := target.Conn.SendFrame([]byte(protocol.ReplyNotify + notice)); err != nil {
		s.logf("Failed to notify %s: %v", sender, err)
	}
}
