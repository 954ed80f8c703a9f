package audit

import (
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"mailsender/internal/config"
)

var enabled atomic.Bool

func init() {
	RefreshFromEnv()
}

// Set toggles protocol tracing.
func Set(on bool) {
	enabled.Store(on)
}

// Enabled reports whether protocol tracing is on.
func Enabled() bool {
	return enabled.Load()
}

// RefreshFromEnv re-reads SMTP_DEBUG. Only "1" or "true" enable tracing.
func RefreshFromEnv() {
	enabled.Store(config.Debug())
}

// Sent traces a line written to the server. Multi-line payloads are traced
// line by line.
func Sent(line string) {
	trace("C:", line)
}

// Received traces a reply line read from the server.
func Received(line string) {
	trace("S:", line)
}

// Log prints a free-form audit message if tracing is enabled.
func Log(format string, args ...any) {
	if !Enabled() {
		return
	}
	log.WithField("component", "audit").Debugf(format, args...)
}

func trace(direction, text string) {
	if !Enabled() {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
		log.WithFields(log.Fields{
			"component": "audit",
			"direction": direction,
		}).Debug(strings.TrimRight(line, "\r"))
	}
}
