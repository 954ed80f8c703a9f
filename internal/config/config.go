package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"mailsender/internal/email"
)

const defaultPort = 465

// DefaultTimeout bounds connect, each reply and disconnect when the config
// leaves the timeout unset.
const DefaultTimeout = 30 * time.Second

// Config is the account the sender delivers through. It is read-only to the
// delivery code once loaded.
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           uint16        `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Base64Encoding bool          `mapstructure:"base64_encoding"`

	TLS         TLSConfig  `mapstructure:"tls"`
	DKIM        DKIMConfig `mapstructure:"dkim"`
	ArchiveDir  string     `mapstructure:"archive_dir"`
	JournalPath string     `mapstructure:"journal_path"`
}

// TLSConfig tunes certificate verification of the server connection.
type TLSConfig struct {
	CAFile             string `mapstructure:"ca_file"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// DKIMConfig enables DKIM signing of outgoing payloads when Selector is set.
type DKIMConfig struct {
	Selector string `mapstructure:"selector"`
	Domain   string `mapstructure:"domain"`
	KeyPath  string `mapstructure:"key_path"`
}

// Default returns a Config with the built-in defaults and no account.
func Default() Config {
	return Config{
		Port:           defaultPort,
		Timeout:        DefaultTimeout,
		Base64Encoding: true,
	}
}

// Complete reports whether the account fields needed to attempt delivery are
// present. A Config that is not complete must never be used to connect.
func (c Config) Complete() bool {
	return strings.TrimSpace(c.Host) != "" &&
		c.Port != 0 &&
		c.User != "" &&
		c.Password != ""
}

// EffectiveTimeout returns Timeout, or DefaultTimeout when it is not
// positive. Every network wait uses this value.
func (c Config) EffectiveTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

// Address returns host:port for dialing.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// Validate checks values that are present but malformed. Missing account
// fields are not an error here; see Complete.
func (c Config) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if strings.ContainsAny(c.Host, " \t\r\n") {
		errs = append(errs, fmt.Errorf("host %q contains whitespace", c.Host))
	}
	if strings.ContainsAny(c.User, "\r\n") {
		errs = append(errs, errors.New("user contains a line break"))
	}
	if c.DKIM.Selector != "" && c.DKIM.Domain == "" {
		if _, err := email.Domain(c.User); err != nil {
			errs = append(errs, fmt.Errorf("dkim: no domain configured and user is not an address: %w", err))
		}
	}
	return errors.Join(errs...)
}
