package credential

import (
	"encoding/base64"
	"fmt"

	"github.com/emersion/go-sasl"
)

// loginChallenge is the decoded challenge that precedes the password in the
// LOGIN exchange.
var loginChallenge = []byte("Password:")

// Codec produces the AUTH LOGIN challenge responses for one account.
//
// RFC 4954 requires base64 responses. Plain responses are kept behind the
// base64 flag for servers that expect them.
type Codec struct {
	client sasl.Client
	base64 bool
}

// NewCodec returns a Codec for user/password. When base64 is false the
// responses are sent unencoded.
func NewCodec(user, password string, base64 bool) *Codec {
	return &Codec{
		client: sasl.NewLoginClient(user, password),
		base64: base64,
	}
}

// Username returns the response to the username challenge.
func (c *Codec) Username() (string, error) {
	mech, ir, err := c.client.Start()
	if err != nil {
		return "", fmt.Errorf("login start: %w", err)
	}
	if mech != "LOGIN" {
		return "", fmt.Errorf("login start: unexpected mechanism %q", mech)
	}
	return Encode(string(ir), c.base64), nil
}

// Password returns the response to the password challenge.
func (c *Codec) Password() (string, error) {
	resp, err := c.client.Next(loginChallenge)
	if err != nil {
		return "", fmt.Errorf("login password: %w", err)
	}
	return Encode(string(resp), c.base64), nil
}

// Encode returns value in standard base64 (padded) when enabled, or value
// unchanged.
func Encode(value string, useBase64 bool) string {
	if !useBase64 {
		return value
	}
	return base64.StdEncoding.EncodeToString([]byte(value))
}
