package dkim

import (
	"bufio"
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/emersion/go-message/textproto"
	msgauthdkim "github.com/emersion/go-msgauth/dkim"
	log "github.com/sirupsen/logrus"

	"mailsender/internal/config"
	"mailsender/internal/email"
)

// signedHeaders are the fields email.Build writes.
var signedHeaders = []string{"from", "to", "subject", "mime-version", "content-type"}

// Signer adds a DKIM-Signature to built payloads. A nil *Signer leaves
// payloads unchanged.
type Signer struct {
	// base is copied for every message; Domain is filled per sender when
	// the config names none.
	base msgauthdkim.SignOptions
}

// New returns the Signer described by conf, or nil when conf is empty.
// Selector and KeyPath are required once any field is set.
func New(conf config.DKIMConfig) (*Signer, error) {
	if conf == (config.DKIMConfig{}) {
		return nil, nil
	}
	if conf.Selector == "" {
		return nil, errors.New("dkim: selector is required")
	}
	if conf.KeyPath == "" {
		return nil, errors.New("dkim: key_path is required")
	}

	key, err := loadKey(conf.KeyPath)
	if err != nil {
		return nil, err
	}
	return &Signer{base: msgauthdkim.SignOptions{
		Domain:                 conf.Domain,
		Selector:               conf.Selector,
		Signer:                 key,
		HeaderCanonicalization: msgauthdkim.CanonicalizationRelaxed,
		BodyCanonicalization:   msgauthdkim.CanonicalizationRelaxed,
		HeaderKeys:             signedHeaders,
	}}, nil
}

// Sign implements delivery.Signer. message must use CRLF line endings; one
// that already carries a DKIM-Signature is returned as is.
func (s *Signer) Sign(message []byte, from string) ([]byte, error) {
	if s == nil {
		return message, nil
	}
	if signed(message) {
		log.Debug("dkim: message already signed")
		return message, nil
	}

	opts := s.base
	if opts.Domain == "" {
		d, err := email.Domain(from)
		if err != nil {
			return nil, fmt.Errorf("dkim: signing domain: %w", err)
		}
		opts.Domain = d
	}

	var out bytes.Buffer
	if err := msgauthdkim.Sign(&out, bytes.NewReader(message), &opts); err != nil {
		return nil, fmt.Errorf("dkim: sign: %w", err)
	}
	return out.Bytes(), nil
}

// loadKey reads the first PKCS#1 or PKCS#8 private key in the PEM file.
func loadKey(path string) (crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dkim: read key: %w", err)
	}
	for block, rest := pem.Decode(data); block != nil; block, rest = pem.Decode(rest) {
		var parsed any
		switch block.Type {
		case "RSA PRIVATE KEY":
			parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dkim: parse %s: %w", path, err)
		}
		key, ok := parsed.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("dkim: %s: unsupported key type %T", path, parsed)
		}
		return key, nil
	}
	return nil, fmt.Errorf("dkim: %s: no private key found", path)
}

func signed(message []byte) bool {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(message)))
	return err == nil && h.Has("DKIM-Signature")
}
