package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mailsender/delivery"
	"mailsender/internal/config"
	"mailsender/internal/dkim"
	"mailsender/internal/email"
	"mailsender/queue"
	"mailsender/storage"
	"mailsender/tlsconfig"
)

func newSendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipient> <subject> <body.html>",
		Short: "Send one HTML message and exit with its delivery code",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := buildMessage(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			code, err := send(cfg, msg)
			if err != nil {
				return err
			}
			if code != delivery.Success {
				return &exitCodeError{code: code}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", msg.Recipient)
			return nil
		},
	}
}

func buildMessage(recipient, subject, bodyPath string) (email.Message, error) {
	rcpt, err := email.Address(recipient)
	if err != nil {
		return email.Message{}, fmt.Errorf("recipient: %w", err)
	}
	body, err := readBody(bodyPath)
	if err != nil {
		return email.Message{}, err
	}
	msg := email.Message{Recipient: rcpt, Subject: subject, Body: body}
	if err := msg.Validate(); err != nil {
		return email.Message{}, err
	}
	return msg, nil
}

func readBody(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("reading body: file is empty")
	}
	return string(data), nil
}

// send queues msg and waits for its outcome.
func send(cfg config.Config, msg email.Message) (delivery.ExitCode, error) {
	tlsConf, err := tlsconfig.Client(cfg.Host, cfg.TLS)
	if err != nil {
		return delivery.Unknown, err
	}
	signer, err := dkim.New(cfg.DKIM)
	if err != nil {
		return delivery.Unknown, err
	}
	var driverOpts []delivery.Option
	if signer != nil {
		driverOpts = append(driverOpts, delivery.WithSigner(signer))
	}
	driver := delivery.NewDriver(cfg, &delivery.TLSDialer{Config: tlsConf, Timeout: cfg.EffectiveTimeout()}, driverOpts...)

	rec, err := newRecorder(cfg)
	if err != nil {
		return delivery.Unknown, err
	}
	defer rec.Close()

	mgr := queue.NewManager(driver, rec.handle)
	mgr.Enqueue(msg)
	mgr.Wait()
	return rec.last, nil
}

// recorder keeps the journal and archive for each outcome. Both are optional.
type recorder struct {
	journal    *storage.Journal
	archiveDir string
	from       string
	last       delivery.ExitCode
}

func newRecorder(cfg config.Config) (*recorder, error) {
	r := &recorder{archiveDir: cfg.ArchiveDir, from: cfg.User, last: delivery.Unknown}
	if cfg.JournalPath != "" {
		j, err := storage.OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		r.journal = j
	}
	return r, nil
}

func (r *recorder) handle(o queue.Outcome) {
	r.last = o.Code
	logger := log.WithFields(log.Fields{"id": o.ID, "outcome": o.Code.String()})

	if r.journal != nil {
		if err := r.journal.Record(context.Background(), o); err != nil {
			logger.WithError(err).Warn("cannot record delivery")
		}
	}
	if r.archiveDir != "" {
		path, err := storage.SaveMessage(r.archiveDir, o.ID, o.Message.Recipient, email.Build(o.Message, r.from))
		if err != nil {
			logger.WithError(err).Warn("cannot archive message")
			return
		}
		logger.WithField("path", path).Debug("message archived")
	}
}

func (r *recorder) Close() error {
	if r.journal == nil {
		return nil
	}
	return r.journal.Close()
}
