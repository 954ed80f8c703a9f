package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"mailsender/internal/audit"
	"mailsender/internal/config"
	"mailsender/internal/credential"
	"mailsender/internal/email"
	"mailsender/internal/metrics"
)

// Signer rewrites a built message before it is dot-stuffed, e.g. to add a
// DKIM-Signature header.
type Signer interface {
	Sign(message []byte, from string) ([]byte, error)
}

// Driver delivers messages through a single configured account, one SMTP
// exchange at a time.
type Driver struct {
	cfg    config.Config
	dialer Dialer
	signer Signer
}

// Option configures a Driver.
type Option func(*Driver)

// WithSigner signs every payload with s before sending.
func WithSigner(s Signer) Option {
	return func(d *Driver) {
		d.signer = s
	}
}

// NewDriver returns a Driver for cfg. The config is copied and never
// modified.
func NewDriver(cfg config.Config, dialer Dialer, opts ...Option) *Driver {
	d := &Driver{cfg: cfg, dialer: dialer}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) timeout() time.Duration {
	return d.cfg.EffectiveTimeout()
}

// Send runs one complete exchange for msg and returns its outcome. It never
// returns an error: every failure maps to an ExitCode. msg must satisfy
// email.Message.Validate; Send panics otherwise.
func (d *Driver) Send(ctx context.Context, msg email.Message) ExitCode {
	msg.MustValidate()
	logger := log.WithField("recipient", msg.Recipient)

	if !d.cfg.Complete() {
		logger.Warn("email account is not configured")
		return NotConfigured
	}

	metrics.IncSessions()
	defer metrics.DecSessions()

	payload, err := d.payload(msg)
	if err != nil {
		logger.WithError(err).Error("cannot build message")
		return Unknown
	}

	conn, err := d.connect(ctx)
	if err != nil {
		logger.WithError(err).Error("cannot connect with mail server")
		return ConnectionError
	}
	logger.WithField("server", d.cfg.Address()).Debug("connection established")

	s := newSession(d.cfg.User, msg, payload, credential.NewCodec(d.cfg.User, d.cfg.Password, d.cfg.Base64Encoding))
	open := d.exchange(conn, s)
	d.disconnect(conn, open)

	entry := logger.WithField("outcome", s.code.String())
	if s.code == Success {
		entry.Info("message sent")
	} else {
		entry.Warn(s.code.Description())
	}
	return s.code
}

func (d *Driver) payload(msg email.Message) ([]byte, error) {
	built := email.Build(msg, d.cfg.User)
	if d.signer != nil {
		signed, err := d.signer.Sign(built, d.cfg.User)
		if err != nil {
			return nil, err
		}
		built = signed
	}
	return email.DotStuff(built), nil
}

type dialResult struct {
	conn Conn
	err  error
}

// connect dials the server and gives up after the configured timeout even if
// the dialer ignores ctx.
func (d *Driver) connect(ctx context.Context) (Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	addr := d.cfg.Address()
	done := make(chan dialResult, 1)
	go func() {
		conn, err := d.dialer.Dial(ctx, addr)
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("connect %s: %w", addr, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connect %s: %w", addr, ctx.Err())
	}
}

// exchange feeds server replies to the session until it closes. It reports
// whether the connection is still usable for QUIT.
func (d *Driver) exchange(conn Conn, s *session) bool {
	for !s.done() {
		reply, err := conn.ReadReply()
		if err != nil {
			if errors.Is(err, ErrMalformedReply) {
				log.WithError(err).WithField("state", s.state.String()).Warn("unparsable server reply")
				s.finish(Unknown)
				return true
			}
			log.WithError(err).WithField("state", s.state.String()).Warn("connection lost")
			s.finish(ConnectionError)
			return false
		}
		audit.Received(reply.String())

		prev := s.state
		cmd := s.step(reply)
		if s.done() && s.code != Success {
			log.WithFields(log.Fields{
				"state": prev.String(),
				"code":  reply.Code,
			}).Debug("exchange aborted")
		}
		if len(cmd) == 0 {
			continue
		}

		if s.sensitive {
			audit.Sent("<password>")
		} else {
			audit.Sent(string(cmd))
		}
		if err := conn.Send(cmd); err != nil {
			log.WithError(err).WithField("state", s.state.String()).Warn("connection lost")
			s.finish(ConnectionError)
			return false
		}
	}
	return true
}

// disconnect sends QUIT when possible, then closes conn, waiting at most the
// configured timeout for the close to complete.
func (d *Driver) disconnect(conn Conn, open bool) {
	if open {
		audit.Sent("QUIT\r\n")
		if err := conn.Send([]byte("QUIT\r\n")); err != nil {
			log.WithError(err).Debug("quit failed")
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	timer := time.NewTimer(d.timeout())
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			log.WithError(err).Debug("close connection")
		}
	case <-timer.C:
		log.WithField("timeout", d.timeout()).Error("cannot disconnect from mail server")
	}
}
