package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mailsender/delivery"
	"mailsender/internal/audit"
	"mailsender/internal/config"
	"mailsender/internal/credential"
)

// exitUsage is returned for errors that happen before any delivery attempt.
// It sits outside the range of delivery exit codes.
const exitUsage = 64

type options struct {
	configPath string
	envFile    string
	logLevel   string
	debug      bool
}

// openStore is replaced in tests.
var openStore = func() (credential.Store, error) {
	return credential.OpenKeyring()
}

// exitCodeError carries a delivery outcome out of a command.
type exitCodeError struct {
	code delivery.ExitCode
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.code.Description())
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return int(delivery.Success)
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		fmt.Fprintln(stderr, ec.code.Description())
		return int(ec.code)
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitUsage
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "mailsender",
		Short:         "Send HTML email through an authenticated SMTP account",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogger(opts.logLevel, opts.debug, stderr); err != nil {
				return err
			}
			if opts.debug {
				audit.Set(true)
			}
			if opts.envFile != "" {
				return config.LoadDotEnv(opts.envFile)
			}
			return config.LoadDotEnv()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	flags.StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default .env when present)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.debug, "debug", false, "trace the SMTP exchange (password masked)")

	root.AddCommand(
		newSendCmd(opts),
		newConfigureCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func setupLogger(level string, debug bool, w io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetOutput(w)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(lvl)
	return nil
}

// loadConfig reads the config file and fills a missing password from the
// credential store. A store that cannot be opened leaves the password empty.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cfg.Password != "" || cfg.Host == "" || cfg.User == "" {
		return cfg, nil
	}

	store, err := openStore()
	if err != nil {
		log.WithError(err).Warn("credential store unavailable")
		return cfg, nil
	}
	password, err := store.Get(credential.PasswordKey(cfg.Host, cfg.User))
	switch {
	case err == nil:
		cfg.Password = password
	case errors.Is(err, credential.ErrNotFound):
		log.WithField("user", cfg.User).Debug("no stored password")
	default:
		log.WithError(err).Warn("cannot read stored password")
	}
	return cfg, nil
}
