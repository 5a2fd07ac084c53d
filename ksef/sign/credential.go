// Package sign implements the KSeF verification-code signing protocol:
// RSA-PSS (SHA-256, salt 32) or ECDSA P-256 (raw R||S per IEEE P1363) over
// the verification link path, encoded as unpadded URL-safe Base64.
package sign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"strings"

	"github.com/alapierre/go-ksef-offline/ksef"
)

type CredentialType int

const (
	Authentication CredentialType = iota
	Offline
)

func (t CredentialType) String() string {
	switch t {
	case Authentication:
		return "Authentication"
	case Offline:
		return "Offline"
	}
	return "Unknown"
}

type Algorithm int

const (
	RSAPSS Algorithm = iota
	ECDSAP256
)

func (a Algorithm) String() string {
	switch a {
	case RSAPSS:
		return "RSA-PSS"
	case ECDSAP256:
		return "ECDSA-P256"
	}
	return "Unknown"
}

const minRSABits = 2048

// Credential binds a certificate, its private key and the declared usage
// type. The signing algorithm is resolved once here, from the key type,
// instead of sniffing key material on every Sign call. The credential never
// copies or persists key material - the signer stays owned by the caller.
type Credential struct {
	Certificate *x509.Certificate
	Serial      string
	Type        CredentialType

	alg    Algorithm
	signer crypto.Signer
}

func NewCredential(cert *x509.Certificate, signer crypto.Signer, ctype CredentialType) (*Credential, error) {
	if signer == nil {
		return nil, ksef.NewSigningError("private key is nil", nil)
	}

	var alg Algorithm
	switch pub := signer.Public().(type) {
	case *rsa.PublicKey:
		if pub.N.BitLen() < minRSABits {
			return nil, ksef.NewSigningError("RSA key too small, minimum 2048 bits", nil)
		}
		alg = RSAPSS
	case *ecdsa.PublicKey:
		if pub.Curve != elliptic.P256() {
			return nil, ksef.NewSigningError("unsupported EC curve, only P-256 is allowed", nil)
		}
		alg = ECDSAP256
	default:
		return nil, ksef.NewSigningError("unsupported key type, expected RSA or ECDSA P-256", nil)
	}

	c := &Credential{
		Certificate: cert,
		Type:        ctype,
		alg:         alg,
		signer:      signer,
	}
	if cert != nil && cert.SerialNumber != nil {
		c.Serial = strings.ToUpper(hex.EncodeToString(cert.SerialNumber.Bytes()))
	}
	return c, nil
}

func (c *Credential) Algorithm() Algorithm {
	return c.alg
}

func (c *Credential) Public() crypto.PublicKey {
	return c.signer.Public()
}
