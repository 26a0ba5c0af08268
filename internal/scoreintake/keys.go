// Package scoreintake is the Score Intake pipeline of spec.md §4.7:
// decrypt the 18-field ciphertext envelope, recompute the authoritative
// score, gate on the blacklist, and persist atomically. Key loading
// follows wallet/keystore.go's (teacher) shape — load once at startup,
// validate eagerly, hold immutable — generalized from a password-wrapped
// AES keystore to PKCS#1 v1.5 RSA private keys sourced from a filesystem
// path or a base64-encoded PEM blob, per spec.md §7's environment
// contract.
package scoreintake

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

// Keys holds the two RSA private keys the pipeline needs: the score key
// decrypts hash/address, the info key decrypts delta/parameter1..15. Both
// are loaded once at startup and never rotated while the process runs.
type Keys struct {
	Score *rsa.PrivateKey
	Info  *rsa.PrivateKey
}

// LoadKeys loads both RSA keys. Each source is either a filesystem path to
// a PEM file or the PEM content itself, base64-encoded. This call is
// process-startup-fatal on error for the score pipeline only, per
// spec.md §7 — callers that can't load keys must refuse to start the
// score endpoint while leaving every other path unaffected.
func LoadKeys(scoreSource, infoSource string) (*Keys, error) {
	score, err := loadPrivateKey(scoreSource)
	if err != nil {
		return nil, fmt.Errorf("loading score key: %w", err)
	}
	info, err := loadPrivateKey(infoSource)
	if err != nil {
		return nil, fmt.Errorf("loading info key: %w", err)
	}
	return &Keys{Score: score, Info: info}, nil
}

func loadPrivateKey(source string) (*rsa.PrivateKey, error) {
	pemBytes, err := loadPEMBytes(source)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in key material")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	generic, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("key is neither PKCS#1 nor PKCS#8: %w", err)
	}
	rsaKey, ok := generic.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key material is not an RSA private key")
	}
	return rsaKey, nil
}

// loadPEMBytes reads source as a filesystem path if it names a readable
// file; otherwise it's treated as base64-encoded PEM content directly.
func loadPEMBytes(source string) ([]byte, error) {
	if data, err := os.ReadFile(source); err == nil {
		return data, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(source)
	if err != nil {
		return nil, fmt.Errorf("key source is neither a readable file path nor valid base64 PEM: %w", err)
	}
	return decoded, nil
}
