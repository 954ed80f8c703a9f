package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"mailsender/internal/config"
)

// ErrNoCertificates is returned when a CA file holds no usable certificate.
var ErrNoCertificates = errors.New("no certificates found")

// Client builds the TLS configuration used to reach the mail server at
// host. A CA file, when configured, replaces the system roots.
func Client(host string, opts config.TLSConfig) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %s: %w", opts.CAFile, ErrNoCertificates)
		}
		conf.RootCAs = pool
	}

	if opts.InsecureSkipVerify {
		log.WithField("host", host).Warn("[TLS] certificate verification disabled")
		conf.InsecureSkipVerify = true
	}

	return conf, nil
}
