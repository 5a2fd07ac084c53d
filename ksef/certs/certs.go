// Package certs handles X.509 certificate loading and the expiry-aware
// certificate cache used by verification-code signing.
package certs

import (
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

func LoadCertificateFromFile(path string) (*x509.Certificate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cert file: %w", err)
	}
	return LoadCertificate(b)
}

// LoadCertificate parses a certificate from PEM or raw DER bytes.
func LoadCertificate(certBytes []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(certBytes); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("unexpected PEM block: %s", block.Type)
		}
		certBytes = block.Bytes
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, errors.New("parsed cert is nil")
	}
	return cert, nil
}

// SerialHex returns the certificate serial number as uppercase hex,
// the form used in KOD II verification links.
func SerialHex(cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", errors.New("cert is nil")
	}
	if cert.SerialNumber == nil {
		return "", errors.New("cert.SerialNumber is nil")
	}

	serial := strings.ToUpper(hex.EncodeToString(cert.SerialNumber.Bytes()))
	if serial == "" {
		return "", errors.New("empty serial after encoding")
	}
	return serial, nil
}
