package kalshi

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
	"os"
	"strconv"
	"time"
)

// Request signing headers.
const (
	HeaderAccessKey       = "KALSHI-ACCESS-KEY"
	HeaderAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	HeaderAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

var ErrInvalidKey = errors.New("kalshi: invalid RSA private key")

// Signer produces the RSA-PSS signature the exchange expects on every
// authenticated request: base64(sign(timestampMillis + METHOD + path)).
// The path excludes the query string.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewSigner creates a signer for the given API key id.
func NewSigner(keyID string, key *rsa.PrivateKey) *Signer {
	return &Signer{keyID: keyID, key: key}
}

// LoadPrivateKey reads a PEM encoded RSA key (PKCS#1 or PKCS#8).
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(raw)
}

// ParsePrivateKey decodes a PEM encoded RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
	}
	return key, nil
}

// Sign returns the base64 signature of timestamp+method+path.
func (s *Signer) Sign(timestamp, method, path string) (string, error) {
	digest := sha256.Sum256([]byte(timestamp + method + path))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Headers builds the authentication headers for one request.
func (s *Signer) Headers(now time.Time, method, path string) (map[string]string, error) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	sig, err := s.Sign(ts, method, path)
	if err != nil {
		return nil, fmt.Errorf("sign %s %s: %w", method, path, err)
	}
	return map[string]string{
		HeaderAccessKey:       s.keyID,
		HeaderAccessSignature: sig,
		HeaderAccessTimestamp: ts,
	}, nil
}
