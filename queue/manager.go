package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"mailsender/delivery"
	"mailsender/internal/email"
	"mailsender/internal/metrics"
)

// Sender performs one complete delivery attempt. *delivery.Driver implements
// it.
type Sender interface {
	Send(ctx context.Context, msg email.Message) delivery.ExitCode
}

// Manager is a FIFO of outbound messages with at most one send in flight.
// A failed message never holds back the ones queued after it.
type Manager struct {
	sender    Sender
	onOutcome OutcomeHandler

	mu         sync.Mutex
	queue      []QueuedMessage
	processing bool
	seq        uint64
	pending    sync.WaitGroup
}

// NewManager creates a queue that delivers through sender and reports each
// result to onOutcome, which may be nil.
func NewManager(sender Sender, onOutcome OutcomeHandler) *Manager {
	return &Manager{
		sender:    sender,
		onOutcome: onOutcome,
		queue:     make([]QueuedMessage, 0),
	}
}

// Enqueue adds msg to the queue and returns immediately. If no send is in
// progress the message starts right away. msg must have a recipient and a
// body; Enqueue panics otherwise.
func (m *Manager) Enqueue(msg email.Message) QueuedMessage {
	msg.MustValidate()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	qm := QueuedMessage{
		Seq:      m.seq,
		ID:       uuid.NewString(),
		Message:  msg,
		QueuedAt: time.Now(),
	}
	m.queue = append(m.queue, qm)
	m.pending.Add(1)
	metrics.MessagesQueued.Add(1)
	metrics.SetQueueDepth(len(m.queue))
	log.WithFields(log.Fields{"id": qm.ID, "seq": qm.Seq}).Debugf("Queued message for %s", msg.Recipient)

	if !m.processing {
		m.processing = true
		go m.run(m.popLocked())
	}
	return qm
}

// Depth returns the number of messages not yet started.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Wait blocks until every message enqueued so far has an outcome.
func (m *Manager) Wait() {
	m.pending.Wait()
}

func (m *Manager) run(msg QueuedMessage) {
	for {
		m.deliver(msg)
		next, ok := m.onSendCompleted()
		if !ok {
			return
		}
		msg = next
	}
}

// onSendCompleted releases the in-flight slot, or hands it straight to the
// next queued message.
func (m *Manager) onSendCompleted() (QueuedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		m.processing = false
		return QueuedMessage{}, false
	}
	return m.popLocked(), true
}

func (m *Manager) popLocked() QueuedMessage {
	msg := m.queue[0]
	m.queue[0] = QueuedMessage{}
	m.queue = m.queue[1:]
	metrics.SetQueueDepth(len(m.queue))
	return msg
}

func (m *Manager) deliver(msg QueuedMessage) {
	defer m.pending.Done()

	out := Outcome{QueuedMessage: msg, Started: time.Now()}
	out.Code = m.sender.Send(context.Background(), msg.Message)
	out.Finished = time.Now()

	success := out.Code == delivery.Success
	metrics.RecordOutcome(out.Code.String(), success)
	entry := log.WithFields(log.Fields{
		"id":       msg.ID,
		"seq":      msg.Seq,
		"outcome":  out.Code.String(),
		"duration": out.Duration(),
	})
	if success {
		entry.Infof("Delivered message to %s", msg.Message.Recipient)
	} else {
		entry.Warnf("Delivery to %s failed: %s", msg.Message.Recipient, out.Code.Description())
	}

	if m.onOutcome != nil {
		m.onOutcome(out)
	}
}
