package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mailsender/internal/config"
)

func TestClientDefaults(t *testing.T) {
	conf, err := Client("smtp.example.com", config.TLSConfig{})
	if err != nil {
		t.Fatalf("Client error: %v", err)
	}
	if conf.ServerName != "smtp.example.com" {
		t.Fatalf("expected ServerName smtp.example.com, got %q", conf.ServerName)
	}
	if conf.MinVersion != tls.VersionTLS12 {
		t.Fatalf("expected MinVersion TLS1.2, got %d", conf.MinVersion)
	}
	if conf.RootCAs != nil {
		t.Fatalf("expected system roots when no CA file is set")
	}
	if conf.InsecureSkipVerify {
		t.Fatalf("expected verification enabled by default")
	}
}

func TestClientCAFile(t *testing.T) {
	dir := t.TempDir()
	certPath, _ := generateSelfSignedCert(t, dir)

	conf, err := Client("smtp.example.com", config.TLSConfig{CAFile: certPath})
	if err != nil {
		t.Fatalf("Client error: %v", err)
	}
	if conf.RootCAs == nil {
		t.Fatalf("expected custom root pool")
	}
}

func TestClientCAFileWithoutCertificates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Client("smtp.example.com", config.TLSConfig{CAFile: path})
	if !errors.Is(err, ErrNoCertificates) {
		t.Fatalf("expected ErrNoCertificates, got %v", err)
	}
}

func TestClientMissingCAFile(t *testing.T) {
	if _, err := Client("smtp.example.com", config.TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Fatalf("expected error for missing CA file")
	}
}

func TestClientInsecure(t *testing.T) {
	conf, err := Client("smtp.example.com", config.TLSConfig{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("Client error: %v", err)
	}
	if !conf.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify")
	}
}

func generateSelfSignedCert(t *testing.T, dir string) (string, string) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "mailsender.test",
			Organization: []string{"mailsender"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"mailsender.test"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}

	certOut, err := os.Create(filepath.Join(dir, "cert.pem"))
	if err != nil {
		t.Fatalf("Create cert file: %v", err)
	}
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("Encode cert: %v", err)
	}
	if err := certOut.Close(); err != nil {
		t.Fatalf("Close cert file: %v", err)
	}

	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	keyOut, err := os.Create(filepath.Join(dir, "key.pem"))
	if err != nil {
		t.Fatalf("Create key file: %v", err)
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		t.Fatalf("Encode key: %v", err)
	}
	if err := keyOut.Close(); err != nil {
		t.Fatalf("Close key file: %v", err)
	}

	return certOut.Name(), keyOut.Name()
}
