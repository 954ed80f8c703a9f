package metrics

import "expvar"

var (
	MessagesQueued = expvar.NewInt("smtp_messages_queued_total")
	MessagesSent   = expvar.NewInt("smtp_messages_sent_total")
	SendFailures   = expvar.NewInt("smtp_send_failures_total")
	outcomes       = expvar.NewMap("smtp_outcomes_total")
	queueDepth     = expvar.NewInt("smtp_queue_depth")
	sessionsActive = expvar.NewInt("smtp_sessions_active")
)

// SetQueueDepth records the current queue depth.
func SetQueueDepth(n int) {
	queueDepth.Set(int64(n))
}

// QueueDepth returns the last recorded queue depth.
func QueueDepth() int64 {
	return queueDepth.Value()
}

// IncSessions increments the active session count.
func IncSessions() {
	sessionsActive.Add(1)
}

// DecSessions decrements the active session count.
func DecSessions() {
	sessionsActive.Add(-1)
}

// SessionsActive returns the number of exchanges in progress.
func SessionsActive() int64 {
	return sessionsActive.Value()
}

// RecordOutcome counts a terminal outcome by name and updates the sent or
// failure total.
func RecordOutcome(name string, success bool) {
	outcomes.Add(name, 1)
	if success {
		MessagesSent.Add(1)
		return
	}
	SendFailures.Add(1)
}

// Outcome returns how many times the named outcome was recorded.
func Outcome(name string) int64 {
	v, ok := outcomes.Get(name).(*expvar.Int)
	if !ok {
		return 0
	}
	return v.Value()
}

// ResetForTests clears counters; intended for use in tests only.
func ResetForTests() {
	MessagesQueued.Set(0)
	MessagesSent.Set(0)
	SendFailures.Set(0)
	outcomes.Init()
	queueDepth.Set(0)
	sessionsActive.Set(0)
}
