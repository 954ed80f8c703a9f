package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"mailsender/internal/config"
)

// ErrMalformedReply is returned by Conn.ReadReply when a server line does not
// start with a three digit reply code.
var ErrMalformedReply = errors.New("malformed reply")

// Reply is one complete server reply. Multi-line replies ("250-...")
// are folded into a single Reply whose Lines holds the text of each line.
type Reply struct {
	Code  int
	Lines []string
}

func (r Reply) String() string {
	var b strings.Builder
	for i, line := range r.Lines {
		sep := "-"
		if i == len(r.Lines)-1 {
			sep = " "
		}
		fmt.Fprintf(&b, "%03d%s%s\n", r.Code, sep, line)
	}
	if len(r.Lines) == 0 {
		fmt.Fprintf(&b, "%03d\n", r.Code)
	}
	return b.String()
}

// Conn is an established, encrypted connection to the mail server.
type Conn interface {
	// ReadReply blocks for the next complete reply.
	ReadReply() (Reply, error)
	// Send writes p as is; p carries its own CRLF framing.
	Send(p []byte) error
	// Close disconnects from the server.
	Close() error
}

// Dialer opens a Conn to addr (host:port). Implementations should honour ctx
// but the driver does not depend on it to bound the wait.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// TLSDialer connects with implicit TLS (SMTPS).
type TLSDialer struct {
	// Config is cloned per dial. ServerName defaults to the dialed host.
	Config *tls.Config
	// Timeout bounds the dial and each read and write on the resulting Conn.
	// Zero means config.DefaultTimeout.
	Timeout time.Duration
}

// Dial implements Dialer.
func (d *TLSDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: d.timeout()},
		Config:    d.Config,
	}
	nc, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return NewConn(nc, d.timeout()), nil
}

func (d *TLSDialer) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return config.DefaultTimeout
}

type textConn struct {
	nc      net.Conn
	tp      *textproto.Conn
	timeout time.Duration
}

// NewConn wraps an established net.Conn. Each read and write is bounded by
// timeout; a non-positive timeout means config.DefaultTimeout, never an
// unbounded wait.
func NewConn(nc net.Conn, timeout time.Duration) Conn {
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return &textConn{
		nc:      nc,
		tp:      textproto.NewConn(nc),
		timeout: timeout,
	}
}

func (c *textConn) ReadReply() (Reply, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return Reply{}, fmt.Errorf("set read deadline: %w", err)
	}

	var reply Reply
	for {
		line, err := c.tp.ReadLine()
		if err != nil {
			return Reply{}, fmt.Errorf("read reply: %w", err)
		}
		code, more, text, err := parseReplyLine(line)
		if err != nil {
			return Reply{}, err
		}
		if len(reply.Lines) == 0 {
			reply.Code = code
		} else if code != reply.Code {
			return Reply{}, fmt.Errorf("%w: code %d in a %d reply", ErrMalformedReply, code, reply.Code)
		}
		reply.Lines = append(reply.Lines, text)
		if !more {
			return reply, nil
		}
	}
}

// parseReplyLine splits "250-text" / "250 text" / "250". Only the first three
// characters carry the code.
func parseReplyLine(line string) (code int, more bool, text string, err error) {
	if len(line) < 3 {
		return 0, false, "", fmt.Errorf("%w: %q", ErrMalformedReply, line)
	}
	for _, ch := range line[:3] {
		if ch < '0' || ch > '9' {
			return 0, false, "", fmt.Errorf("%w: %q", ErrMalformedReply, line)
		}
		code = code*10 + int(ch-'0')
	}
	if len(line) > 3 {
		more = line[3] == '-'
		text = line[4:]
		if line[3] != '-' && line[3] != ' ' {
			text = line[3:]
		}
	}
	return code, more, text, nil
}

func (c *textConn) Send(p []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.tp.W.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := c.tp.W.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (c *textConn) Close() error {
	return c.tp.Close()
}
