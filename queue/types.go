package queue

import (
	"time"

	"mailsender/delivery"
	"mailsender/internal/email"
)

// QueuedMessage is a message waiting for its turn on the connection.
type QueuedMessage struct {
	// Seq is the submission order, starting at 1.
	Seq      uint64
	ID       string
	Message  email.Message
	QueuedAt time.Time
}

// Outcome reports the terminal result of one QueuedMessage.
type Outcome struct {
	QueuedMessage
	Code     delivery.ExitCode
	Started  time.Time
	Finished time.Time
}

// Duration is the time spent on the exchange itself.
func (o Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// OutcomeHandler receives every Outcome, in submission order, on the queue's
// worker goroutine.
type OutcomeHandler func(Outcome)
