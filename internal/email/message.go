package email

import (
	"errors"
	"fmt"
	"strings"
)

// Message is a single outbound email. It is a value: once handed to the
// queue it is never modified.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Validate reports whether m satisfies the send contract: a recipient and a
// body are required, the subject may be empty. The recipient must be a bare
// mailbox and neither it nor the subject may contain a line break, since both
// are written into single protocol lines.
func (m Message) Validate() error {
	var errs []error
	if m.Recipient == "" {
		errs = append(errs, errors.New("recipient is empty"))
	} else if addr, err := Address(m.Recipient); err != nil {
		errs = append(errs, fmt.Errorf("recipient: %w", err))
	} else if addr != m.Recipient {
		errs = append(errs, fmt.Errorf("recipient %q has surrounding whitespace", m.Recipient))
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		errs = append(errs, errors.New("subject contains a line break"))
	}
	if m.Body == "" {
		errs = append(errs, errors.New("body is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// MustValidate panics when m breaks the send contract. Callers submitting
// such a message have a bug.
func (m Message) MustValidate() {
	if err := m.Validate(); err != nil {
		panic(err)
	}
}
