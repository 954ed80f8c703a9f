package delivery

import "fmt"

// ExitCode is the terminal outcome of one message. Exactly one is reported
// per submitted message. The numeric values double as process exit codes.
type ExitCode int

const (
	Success ExitCode = iota
	NotConfigured
	ConnectionError
	AuthLoginError
	UserFailed
	PassFailed
	RcptError
	Unknown
)

var exitCodeNames = [...]string{
	Success:         "Success",
	NotConfigured:   "NotConfigured",
	ConnectionError: "ConnectionError",
	AuthLoginError:  "AuthLoginError",
	UserFailed:      "UserFailed",
	PassFailed:      "PassFailed",
	RcptError:       "RcptError",
	Unknown:         "Unknown",
}

var exitCodeDescriptions = [...]string{
	Success:         "message sent",
	NotConfigured:   "email account is not configured",
	ConnectionError: "cannot connect to the mail server",
	AuthLoginError:  "server does not support AUTH LOGIN",
	UserFailed:      "server rejected the user name",
	PassFailed:      "server rejected the password",
	RcptError:       "server rejected the recipient",
	Unknown:         "unexpected server reply",
}

func (c ExitCode) String() string {
	if c < 0 || int(c) >= len(exitCodeNames) {
		return fmt.Sprintf("ExitCode(%d)", int(c))
	}
	return exitCodeNames[c]
}

// Description returns a human readable explanation of c.
func (c ExitCode) Description() string {
	if c < 0 || int(c) >= len(exitCodeDescriptions) {
		return c.String()
	}
	return exitCodeDescriptions[c]
}
