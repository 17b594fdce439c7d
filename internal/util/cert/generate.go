package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

const (
	CAFileName         = "ca.crt"
	CAKeyFileName      = "ca.key"
	ServerCertFileName = "server.crt"
	ServerKeyFileName  = "server.key"
)

// GenerateDevelopmentCertificates writes a self-signed CA and a server certificate for hosts into outDir.
// Only meant for local HTTPS; production certificates are provisioned externally.
func GenerateDevelopmentCertificates(outDir string, hosts []string, now time.Time) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create certificate directory")
	}

	caKey, caCert, caPEM, caKeyPEM, err := generateCA(now)
	if err != nil {
		return err
	}

	serverPEM, serverKeyPEM, err := generateServerCert(hosts, caCert, caKey, now)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
		perm os.FileMode
	}{
		{CAFileName, caPEM, 0644},
		{CAKeyFileName, caKeyPEM, 0600},
		{ServerCertFileName, serverPEM, 0644},
		{ServerKeyFileName, serverKeyPEM, 0600},
	}

	for _, f := range files {
		if err := os.WriteFile(filepath.Join(outDir, f.name), f.data, f.perm); err != nil {
			return errors.Wrapf(err, "failed to write %s", f.name)
		}
	}

	return nil
}

func generateCA(now time.Time) (*ecdsa.PrivateKey, *x509.Certificate, []byte, []byte, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to generate CA key")
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Key Pool"},
			CommonName:   "Key Pool Development CA",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(365 * 24 * time.Hour * 10),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to create CA certificate")
	}

	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, "failed to parse CA certificate")
	}

	keyPEM, err := encodeKey(priv)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	return priv, caCert, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), keyPEM, nil
}

func generateServerCert(hosts []string, caCert *x509.Certificate, caKey *ecdsa.PrivateKey, now time.Time) ([]byte, []byte, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate server key")
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Key Pool"},
			CommonName:   "keypool-server",
		},
		NotBefore:   now.Add(-time.Minute),
		NotAfter:    now.Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &priv.PublicKey, caKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create server certificate")
	}

	keyPEM, err := encodeKey(priv)
	if err != nil {
		return nil, nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), keyPEM, nil
}

func encodeKey(priv *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal private key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}
