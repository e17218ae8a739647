package yahoo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"saleschecker/pkg/marketplace"
)

// Signer produces the optional per-request signature header some seller
// accounts require: the seller ID and a millisecond timestamp, encrypted
// with the marketplace-issued RSA public key and base64-encoded. Accounts
// without a key file skip the header entirely.
type Signer struct {
	key *rsa.PublicKey
}

// NewSignerFromFile loads a PEM public key (either a PUBLIC KEY block or a
// certificate) from path.
func NewSignerFromFile(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &marketplace.ConfigError{
			Kind:   "yahoo",
			Reason: fmt.Sprintf("read sign key file: %v", err),
		}
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, &marketplace.ConfigError{
			Kind:   "yahoo",
			Reason: fmt.Sprintf("sign key file %s holds no PEM block", path),
		}
	}

	var key any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &marketplace.ConfigError{
				Kind:   "yahoo",
				Reason: fmt.Sprintf("parse sign certificate: %v", err),
			}
		}
		key = cert.PublicKey
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, &marketplace.ConfigError{
				Kind:   "yahoo",
				Reason: fmt.Sprintf("parse sign key: %v", err),
			}
		}
		key = parsed
	}

	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, &marketplace.ConfigError{
			Kind:   "yahoo",
			Reason: fmt.Sprintf("sign key file %s is not an RSA public key", path),
		}
	}
	return &Signer{key: rsaKey}, nil
}

// Sign encrypts "<sellerID>:<unix-millis>" under the public key.
func (s *Signer) Sign(sellerID string, now time.Time) (string, error) {
	payload := fmt.Sprintf("%s:%d", sellerID, now.UnixMilli())
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, s.key, []byte(payload))
	if err != nil {
		return "", fmt.Errorf("yahoo: sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}
