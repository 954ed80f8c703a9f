package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SENDMAIL_HOST or
// SENDMAIL_DKIM_SELECTOR.
const EnvPrefix = "SENDMAIL"

// DefaultPath returns ~/.config/mailsender/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsender", "config.yaml")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	// Every key needs a default so AutomaticEnv applies during Unmarshal.
	v.SetDefault("host", "")
	v.SetDefault("port", def.Port)
	v.SetDefault("user", "")
	v.SetDefault("password", "")
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("base64_encoding", def.Base64Encoding)
	v.SetDefault("tls.ca_file", "")
	v.SetDefault("tls.insecure_skip_verify", false)
	v.SetDefault("dkim.selector", "")
	v.SetDefault("dkim.domain", "")
	v.SetDefault("dkim.key_path", "")
	v.SetDefault("archive_dir", "")
	v.SetDefault("journal_path", "")
	return v
}

// Load reads the YAML file at path and applies SENDMAIL_* environment
// overrides. A missing file yields the defaults plus overrides.
func Load(path string) (Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories. The password
// is never written; it belongs in the credential store.
func Save(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("host", cfg.Host)
	v.Set("port", int(cfg.Port))
	v.Set("user", cfg.User)
	v.Set("timeout", cfg.Timeout.String())
	v.Set("base64_encoding", cfg.Base64Encoding)
	v.Set("tls.ca_file", cfg.TLS.CAFile)
	v.Set("tls.insecure_skip_verify", cfg.TLS.InsecureSkipVerify)
	v.Set("dkim.selector", cfg.DKIM.Selector)
	v.Set("dkim.domain", cfg.DKIM.Domain)
	v.Set("dkim.key_path", cfg.DKIM.KeyPath)
	v.Set("archive_dir", cfg.ArchiveDir)
	v.Set("journal_path", cfg.JournalPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
