package delivery

import (
	"context"
	"io"
	"strings"
	"sync"

	"mailsender/internal/config"
	"mailsender/internal/email"
)

func reply(code int, lines ...string) Reply {
	if len(lines) == 0 {
		lines = []string{""}
	}
	return Reply{Code: code, Lines: lines}
}

var ehloReply = reply(250, "smtp.example.com", "PIPELINING", "AUTH PLAIN LOGIN", "8BITMIME")

// happyReplies answers every command of a successful exchange.
func happyReplies() []Reply {
	return []Reply{
		reply(220, "smtp.example.com ESMTP ready"),
		ehloReply,
		reply(334, "VXNlcm5hbWU6"),
		reply(334, "UGFzc3dvcmQ6"),
		reply(235, "2.7.0 Authentication successful"),
		reply(250, "2.1.0 Sender OK"),
		reply(250, "2.1.5 Recipient OK"),
		reply(354, "End data with <CR><LF>.<CR><LF>"),
		reply(250, "2.0.0 Queued"),
	}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Host = "smtp.example.com"
	cfg.User = "sender@example.com"
	cfg.Password = "secret"
	return cfg
}

var testMessage = email.Message{
	Recipient: "rcpt@example.net",
	Subject:   "Greetings",
	Body:      "<p>Hello</p>\n.\n<p>Bye</p>",
}

// scriptedConn plays back canned replies and records every command.
type scriptedConn struct {
	mu      sync.Mutex
	replies []Reply
	readErr error
	sent    []string
	closed  bool
	sendErr error
	// closeGate, when set, blocks Close until it is closed.
	closeGate chan struct{}
}

func newScriptedConn(replies ...Reply) *scriptedConn {
	return &scriptedConn{replies: replies}
}

func (c *scriptedConn) ReadReply() (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		if c.readErr != nil {
			return Reply{}, c.readErr
		}
		return Reply{}, io.EOF
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *scriptedConn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, string(p))
	return nil
}

func (c *scriptedConn) Close() error {
	if c.closeGate != nil {
		<-c.closeGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedConn) commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *scriptedConn) lastCommand() string {
	cmds := c.commands()
	if len(cmds) == 0 {
		return ""
	}
	return cmds[len(cmds)-1]
}

func (c *scriptedConn) sentQuit() bool {
	for _, cmd := range c.commands() {
		if strings.EqualFold(cmd, "QUIT\r\n") {
			return true
		}
	}
	return false
}

type dialerFunc func(ctx context.Context, addr string) (Conn, error)

func (f dialerFunc) Dial(ctx context.Context, addr string) (Conn, error) {
	return f(ctx, addr)
}

// countingDialer hands out conn and counts dial attempts.
type countingDialer struct {
	mu    sync.Mutex
	conn  Conn
	err   error
	dials int
	addr  string
}

func (d *countingDialer) Dial(_ context.Context, addr string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.addr = addr
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *countingDialer) attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
