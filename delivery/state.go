package delivery

import (
	"fmt"
	"strings"

	"mailsender/internal/credential"
	"mailsender/internal/email"
)

// State is the step of the SMTP exchange the session is waiting on.
type State int

const (
	Init State = iota
	HandShake
	Auth
	User
	Pass
	From
	Rcpt
	Data
	Sent
	Close
)

var stateNames = [...]string{"Init", "HandShake", "Auth", "User", "Pass", "From", "Rcpt", "Data", "Sent", "Close"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

const (
	codeReady        = 220
	codeOK           = 250
	codeAuthOK       = 235
	codeContinue     = 334
	codeStartData    = 354
	codeAuthRejected = 535
)

// transition describes how a state reacts to the reply it is waiting for.
type transition struct {
	expect int
	next   State
	// fail is reported for any other code.
	fail ExitCode
	// rejected, when set, is reported for 535 instead of fail.
	rejected ExitCode
	// accept may veto an expected reply.
	accept func(Reply) ExitCode
}

var transitions = map[State]transition{
	Init:      {expect: codeReady, next: HandShake, fail: Unknown},
	HandShake: {expect: codeOK, next: Auth, fail: Unknown, accept: requireLogin},
	Auth:      {expect: codeContinue, next: User, fail: AuthLoginError},
	User:      {expect: codeContinue, next: Pass, fail: Unknown, rejected: UserFailed},
	Pass:      {expect: codeAuthOK, next: From, fail: Unknown, rejected: PassFailed},
	From:      {expect: codeOK, next: Rcpt, fail: Unknown},
	Rcpt:      {expect: codeOK, next: Data, fail: RcptError},
	Data:      {expect: codeStartData, next: Sent, fail: Unknown},
	Sent:      {expect: codeOK, next: Close, fail: Unknown},
}

// session is the state of a single exchange. It owns everything specific to
// the message in flight and is dropped when the exchange ends.
type session struct {
	state     State
	code      ExitCode
	from      string
	recipient string
	payload   []byte
	creds     *credential.Codec
	// sensitive marks the command last returned by step as a secret that
	// must not be traced.
	sensitive bool
}

func newSession(from string, msg email.Message, payload []byte, creds *credential.Codec) *session {
	return &session{
		state:     Init,
		code:      Unknown,
		from:      from,
		recipient: msg.Recipient,
		payload:   payload,
		creds:     creds,
	}
}

func (s *session) done() bool {
	return s.state == Close
}

// finish moves the session to Close with the given outcome.
func (s *session) finish(code ExitCode) {
	s.state = Close
	s.code = code
}

// step consumes one reply and returns the command to send next, if any.
func (s *session) step(r Reply) []byte {
	s.sensitive = false
	if s.done() {
		return nil
	}
	t, ok := transitions[s.state]
	if !ok {
		s.finish(Unknown)
		return nil
	}

	if r.Code != t.expect {
		if r.Code == codeAuthRejected && t.rejected != Success {
			s.finish(t.rejected)
		} else {
			s.finish(t.fail)
		}
		return nil
	}
	if t.accept != nil {
		if code := t.accept(r); code != Success {
			s.finish(code)
			return nil
		}
	}

	if t.next == Close {
		s.finish(Success)
		return nil
	}
	s.state = t.next
	return s.enter()
}

// enter returns the command sent on entering the current state.
func (s *session) enter() []byte {
	switch s.state {
	case HandShake:
		return []byte("EHLO localhost\r\n")
	case Auth:
		return []byte("AUTH LOGIN\r\n")
	case User:
		user, err := s.creds.Username()
		if err != nil {
			s.finish(Unknown)
			return nil
		}
		return []byte(user + "\r\n")
	case Pass:
		pass, err := s.creds.Password()
		if err != nil {
			s.finish(Unknown)
			return nil
		}
		s.sensitive = true
		return []byte(pass + "\r\n")
	case From:
		return []byte("MAIL FROM:<" + s.from + ">\r\n")
	case Rcpt:
		return []byte("RCPT TO:<" + s.recipient + ">\r\n")
	case Data:
		return []byte("DATA\r\n")
	case Sent:
		out := make([]byte, 0, len(s.payload)+len(email.Terminator))
		out = append(out, s.payload...)
		return append(out, email.Terminator...)
	}
	s.finish(Unknown)
	return nil
}

// requireLogin checks the EHLO reply for an AUTH capability listing LOGIN.
func requireLogin(r Reply) ExitCode {
	for _, line := range r.Lines {
		fields := strings.Fields(strings.ToUpper(line))
		if len(fields) == 0 {
			continue
		}
		var mechs []string
		switch {
		case fields[0] == "AUTH":
			mechs = fields[1:]
		case strings.HasPrefix(fields[0], "AUTH="):
			mechs = append([]string{strings.TrimPrefix(fields[0], "AUTH=")}, fields[1:]...)
		default:
			continue
		}
		for _, m := range mechs {
			if m == "LOGIN" {
				return Success
			}
		}
	}
	return AuthLoginError
}
