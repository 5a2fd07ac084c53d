package sign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"math/big"

	"github.com/alapierre/go-ksef-offline/ksef"
)

// p1363Len is the fixed length of a P-256 signature in R||S encoding.
const p1363Len = 64

// Sign signs the given path (host + path, no scheme, no trailing slash)
// and returns the signature as unpadded URL-safe Base64. The path is hashed
// with SHA-256 exactly once; the digest is handed to a signer that does not
// hash again.
func Sign(path string, cred *Credential) (string, error) {
	if cred == nil {
		return "", ksef.NewSigningError("credential is nil", nil)
	}

	digest := sha256.Sum256([]byte(path))

	switch cred.alg {
	case RSAPSS:
		sig, err := cred.signer.Sign(rand.Reader, digest[:], &rsa.PSSOptions{
			SaltLength: 32,
			Hash:       crypto.SHA256,
		})
		if err != nil {
			return "", ksef.NewSigningError("rsa-pss sign failed", err)
		}
		return EncodeToken(sig), nil

	case ECDSAP256:
		// crypto.Signer zwraca DER (ASN.1), weryfikator KSeF oczekuje
		// surowego R||S o stałej długości 64 bajtów
		sigDER, err := cred.signer.Sign(rand.Reader, digest[:], crypto.SHA256)
		if err != nil {
			return "", ksef.NewSigningError("ecdsa sign failed", err)
		}
		raw, err := p1363FromDER(sigDER)
		if err != nil {
			return "", err
		}
		return EncodeToken(raw), nil

	default:
		return "", ksef.NewSigningError("unsupported signing algorithm", nil)
	}
}

// Verify checks the signature token produced by Sign against the same path
// string and the signer's public key.
func Verify(path, token string, publicKey crypto.PublicKey) (bool, error) {
	sig, err := DecodeToken(token)
	if err != nil {
		return false, err
	}

	digest := sha256.Sum256([]byte(path))

	switch pub := publicKey.(type) {
	case *rsa.PublicKey:
		err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
			SaltLength: 32,
			Hash:       crypto.SHA256,
		})
		return err == nil, nil

	case *ecdsa.PublicKey:
		if len(sig) != p1363Len {
			return false, nil
		}
		r := new(big.Int).SetBytes(sig[:p1363Len/2])
		s := new(big.Int).SetBytes(sig[p1363Len/2:])
		return ecdsa.Verify(pub, digest[:], r, s), nil

	default:
		return false, ksef.NewSigningError("unsupported public key type", nil)
	}
}

// EncodeToken encodes raw signature bytes as URL-safe Base64 without padding.
func EncodeToken(sig []byte) string {
	return base64.RawURLEncoding.EncodeToString(sig)
}

// DecodeToken reverses EncodeToken.
func DecodeToken(token string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ksef.NewSigningError("malformed signature token", err)
	}
	return b, nil
}

type ecdsaSignature struct {
	R, S *big.Int
}

// p1363FromDER converts an ASN.1 DER ECDSA signature to the fixed-width
// 64-byte big-endian R||S form. Any other resulting length is a defect,
// never silently truncated or padded.
func p1363FromDER(der []byte) ([]byte, error) {
	var sig ecdsaSignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, ksef.NewSigningError("cannot parse DER ecdsa signature", err)
	}

	if sig.R.BitLen() > 8*p1363Len/2 || sig.S.BitLen() > 8*p1363Len/2 {
		return nil, ksef.NewSigningError("ecdsa signature component out of range", nil)
	}

	raw := make([]byte, p1363Len)
	sig.R.FillBytes(raw[:p1363Len/2])
	sig.S.FillBytes(raw[p1363Len/2:])

	if len(raw) != p1363Len {
		return nil, ksef.NewSigningError("ecdsa signature has unexpected length", nil)
	}
	return raw, nil
}
