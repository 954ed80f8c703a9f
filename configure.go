package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mailsender/internal/config"
	"mailsender/internal/credential"
	"mailsender/internal/email"
)

// accountAnswers holds the form values as typed.
type accountAnswers struct {
	host     string
	port     string
	user     string
	password string
	timeout  string
	base64   bool
}

func answersFrom(cfg config.Config) accountAnswers {
	return accountAnswers{
		host:    cfg.Host,
		port:    strconv.Itoa(int(cfg.Port)),
		user:    cfg.User,
		timeout: cfg.Timeout.String(),
		base64:  cfg.Base64Encoding,
	}
}

// apply copies the answers onto cfg. The password is returned separately
// since it is never written to the config file.
func (a accountAnswers) apply(cfg config.Config) (config.Config, error) {
	port, err := parsePort(a.port)
	if err != nil {
		return cfg, err
	}
	timeout, err := parseTimeout(a.timeout)
	if err != nil {
		return cfg, err
	}
	cfg.Host = strings.TrimSpace(a.host)
	cfg.Port = port
	cfg.User = strings.TrimSpace(a.user)
	cfg.Timeout = timeout
	cfg.Base64Encoding = a.base64
	return cfg, cfg.Validate()
}

// promptAccount is replaced in tests.
var promptAccount = func(a *accountAnswers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SMTP host").
				Description("Server offering implicit TLS (SMTPS)").
				Placeholder("smtp.example.com").
				Value(&a.host).
				Validate(validateRequired("Host")),
			huh.NewInput().
				Title("Port").
				Value(&a.port).
				Validate(func(s string) error {
					_, err := parsePort(s)
					return err
				}),
			huh.NewInput().
				Title("User").
				Description("Account name, also used as the sender address").
				Value(&a.user).
				Validate(func(s string) error {
					_, err := email.Address(s)
					return err
				}),
			huh.NewInput().
				Title("Password").
				Description("Stored in the system keyring; leave empty to keep the current one").
				EchoMode(huh.EchoModePassword).
				Value(&a.password),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Timeout").
				Description("Bound on connect and on each server reply").
				Placeholder("30s").
				Value(&a.timeout).
				Validate(func(s string) error {
					_, err := parseTimeout(s)
					return err
				}),
			huh.NewConfirm().
				Title("Base64-encode credentials?").
				Description("Required by AUTH LOGIN on almost every server").
				Value(&a.base64),
		),
	).Run()
}

func newConfigureCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactively set the SMTP account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			answers := answersFrom(cfg)
			if err := promptAccount(&answers); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return errors.New("configuration aborted")
				}
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := saveAccount(opts.configPath, cfg, answers, store); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", opts.configPath)
			return nil
		},
	}
}

func saveAccount(path string, cfg config.Config, a accountAnswers, store credential.Store) error {
	cfg, err := a.apply(cfg)
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	if a.password == "" {
		log.Debug("password unchanged")
		return nil
	}
	return store.Set(credential.PasswordKey(cfg.Host, cfg.User), a.password)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func parsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(port), nil
}

func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid timeout %q", s)
	}
	return d, nil
}
