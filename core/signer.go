package core

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// RSASigner signs canonical strings with RSA-SHA256 and verifies partner
// signatures against the configured public key. Key material is parsed once
// at construction and never mutated, so a single signer is safe to share
// across concurrent calls.
type RSASigner struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	logger     Logger
}

// NewRSASigner parses the private key material and, when provided, the
// public key. Both accept PEM directly or bare base64-encoded DER; bare
// material is detected by the absence of a PEM header.
func NewRSASigner(privateKeyMaterial string, publicKeyMaterial string, logger Logger) (*RSASigner, error) {
	privateKey, err := parsePrivateKey(privateKeyMaterial)
	if err != nil {
		return nil, err
	}
	var publicKey *rsa.PublicKey
	if strings.TrimSpace(publicKeyMaterial) != "" {
		publicKey, err = parsePublicKey(publicKeyMaterial)
		if err != nil {
			return nil, err
		}
	}
	return &RSASigner{
		privateKey: privateKey,
		publicKey:  publicKey,
		logger:     logger,
	}, nil
}

// Sign computes an RSA-SHA256 signature over the exact bytes of data and
// returns it base64 encoded.
func (s *RSASigner) Sign(data []byte) (string, error) {
	if s == nil || s.privateKey == nil {
		return "", signingError(nil, "core: signer has no private key")
	}
	digest := sha256.Sum256(data)
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", signingError(err, "core: rsa signing failed")
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}

// Verify checks a base64 signature over data. It fails closed: no public
// key, malformed base64, and verification mismatch all return false. The
// three outcomes stay distinguishable in logs even though the contract is
// boolean.
func (s *RSASigner) Verify(data []byte, signatureBase64 string) bool {
	if s == nil {
		return false
	}
	if s.publicKey == nil {
		s.logWarn("signature verification skipped: public key is not configured, failing closed")
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signatureBase64))
	if err != nil {
		s.logWarn("signature is not valid base64", "error", err.Error())
		return false
	}
	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(s.publicKey, crypto.SHA256, digest[:], decoded); err != nil {
		s.logWarn("signature verification failed", "error", err.Error())
		return false
	}
	return true
}

// CanVerify reports whether a public key is configured.
func (s *RSASigner) CanVerify() bool {
	return s != nil && s.publicKey != nil
}

func (s *RSASigner) logWarn(message string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Warn(message, args...)
}

func parsePrivateKey(material string) (*rsa.PrivateKey, error) {
	der, err := decodeKeyMaterial(material, "RSA PRIVATE KEY")
	if err != nil {
		return nil, keyLoadError(err, "core: decode private key")
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, keyLoadError(nil, fmt.Sprintf("core: private key is %T, expected RSA", key))
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, keyLoadError(err, "core: parse private key")
	}
	return key, nil
}

func parsePublicKey(material string) (*rsa.PublicKey, error) {
	der, err := decodeKeyMaterial(material, "PUBLIC KEY")
	if err != nil {
		return nil, keyLoadError(err, "core: decode public key")
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, keyLoadError(nil, fmt.Sprintf("core: public key is %T, expected RSA", key))
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, keyLoadError(err, "core: parse public key")
	}
	return key, nil
}

// decodeKeyMaterial accepts PEM or bare base64 DER. Bare material is wrapped
// the same way the partner distributes keys in its console: a single base64
// blob without headers.
func decodeKeyMaterial(material string, pemType string) ([]byte, error) {
	trimmed := strings.TrimSpace(material)
	if trimmed == "" {
		return nil, fmt.Errorf("key material is empty")
	}
	if strings.Contains(trimmed, "-----BEGIN") {
		block, _ := pem.Decode([]byte(trimmed))
		if block == nil {
			return nil, fmt.Errorf("malformed PEM block")
		}
		return block.Bytes, nil
	}
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, trimmed)
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("base64 decode %s: %w", strings.ToLower(pemType), err)
	}
	return der, nil
}

var _ RequestSigner = (*RSASigner)(nil)
