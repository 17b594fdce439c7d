package cert

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"time"

	"github.com/pkg/errors"
)

// VerifyServerCertificate checks the HTTPS listener material before the server starts:
// files exist, key pair matches, certificate is currently valid and chains to the CA.
// An empty caCertFile skips the chain check.
func VerifyServerCertificate(certFile, keyFile, caCertFile string) error {
	return verifyServerCertificateAt(certFile, keyFile, caCertFile, time.Now())
}

func verifyServerCertificateAt(certFile, keyFile, caCertFile string, now time.Time) error {
	for _, f := range []string{certFile, keyFile} {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "TLS file not found: %s", f)
		}
	}

	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return errors.Wrap(err, "failed to load server certificate key pair")
	}
	if len(pair.Certificate) == 0 {
		return errors.New("no certificate found in file")
	}

	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return errors.Wrap(err, "failed to parse server certificate")
	}
	if now.After(leaf.NotAfter) {
		return errors.Errorf("server certificate expired at %s", leaf.NotAfter)
	}
	if now.Before(leaf.NotBefore) {
		return errors.Errorf("server certificate not valid until %s", leaf.NotBefore)
	}

	if caCertFile == "" {
		return nil
	}

	caBytes, err := os.ReadFile(caCertFile)
	if err != nil {
		return errors.Wrap(err, "failed to read CA certificate")
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caBytes) {
		return errors.New("failed to parse CA certificate")
	}

	if _, err := leaf.Verify(x509.VerifyOptions{Roots: roots, CurrentTime: now}); err != nil {
		return errors.Wrap(err, "server certificate verification against CA failed")
	}

	return nil
}
