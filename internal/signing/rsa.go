// Package signing implements the RSA primitives behind document signatures.
//
// A signature is RSASSA-PKCS1-v1_5 with SHA-256 over the UTF-8 bytes of the
// document's hex digest, base64 (standard) encoded. Public keys are SPKI PEM
// ("PUBLIC KEY"), private keys PKCS8 PEM ("PRIVATE KEY").
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	Algorithm      = "RSA"
	DefaultKeySize = 4096
	MinKeySize     = 2048

	pemPublicKey  = "PUBLIC KEY"
	pemPrivateKey = "PRIVATE KEY"
)

var (
	// ErrInvalidKey means key material could not be decoded as RSA.
	ErrInvalidKey = errors.New("invalid rsa key")
	// ErrMalformedSignature means the signature is not valid base64.
	ErrMalformedSignature = errors.New("malformed signature encoding")
	// ErrSignatureMismatch means the signature does not verify against the key.
	ErrSignatureMismatch = errors.New("signature does not match")
)

// KeyMaterial is a PEM-encoded RSA key pair.
type KeyMaterial struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
	Bits          int
}

// GenerateRSA creates a key pair of the given modulus size. This is CPU bound
// (seconds at 4096 bits); callers bound concurrency.
func GenerateRSA(bits int) (KeyMaterial, error) {
	if bits < MinKeySize {
		return KeyMaterial{}, fmt.Errorf("%w: modulus %d below minimum %d", ErrInvalidKey, bits, MinKeySize)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("generate rsa key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("marshal public key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("marshal private key: %w", err)
	}
	return KeyMaterial{
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: pubDER})),
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: privDER})),
		Bits:          bits,
	}, nil
}

// ParsePublicKey decodes an SPKI PEM RSA public key.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil || block.Type != pemPublicKey {
		return nil, fmt.Errorf("%w: expected %s PEM block", ErrInvalidKey, pemPublicKey)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa public key", ErrInvalidKey)
	}
	return pub, nil
}

// ParsePrivateKey decodes a PKCS8 PEM RSA private key.
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil || block.Type != pemPrivateKey {
		return nil, fmt.Errorf("%w: expected %s PEM block", ErrInvalidKey, pemPrivateKey)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an rsa private key", ErrInvalidKey)
	}
	return priv, nil
}

// SignDigest signs the hex digest string with the PEM private key.
func SignDigest(privateKeyPEM, digest string) (string, error) {
	key, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(digest))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		return "", fmt.Errorf("sign digest: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyDigest checks signatureB64 over digest against the PEM public key.
// It returns nil, ErrInvalidKey, ErrMalformedSignature or ErrSignatureMismatch.
func VerifyDigest(publicKeyPEM, digest, signatureB64 string) error {
	key, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return ErrMalformedSignature
	}
	sum := sha256.Sum256([]byte(digest))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, sum[:], sig); err != nil {
		return ErrSignatureMismatch
	}
	return nil
}
