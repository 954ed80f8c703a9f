package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrInvalidAddress indicates the address failed validation.
	ErrInvalidAddress = errors.New("invalid email address")
)

// Address validates a bare mailbox such as "user@example.com" for use in
// MAIL FROM / RCPT TO and returns it trimmed. Display names and angle
// brackets are rejected since the address is framed as <addr> on the wire.
func Address(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	if strings.ContainsAny(addr, "\r\n<>") {
		return "", fmt.Errorf("%w: unexpected character", ErrInvalidAddress)
	}

	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if parsed.Name != "" || parsed.Address != addr {
		return "", fmt.Errorf("%w: expected a bare mailbox", ErrInvalidAddress)
	}
	return parsed.Address, nil
}

// Domain returns the lower-cased domain component of an email address.
func Domain(address string) (string, error) {
	address = strings.Trim(strings.TrimSpace(address), "<>")
	at := strings.LastIndex(address, "@")
	if at == -1 || at == len(address)-1 {
		return "", fmt.Errorf("%w: missing domain", ErrInvalidAddress)
	}

	domain := address[at+1:]
	domain = strings.TrimSuffix(domain, ".")
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrInvalidAddress)
	}
	if strings.ContainsAny(domain, " \t") {
		return "", fmt.Errorf("%w: whitespace in domain", ErrInvalidAddress)
	}

	return strings.ToLower(domain), nil
}
