package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeyLength is 32 bytes, the HMAC-SHA256 block-friendly key size.
const DerivedKeyLength = 32

const purposeSessionJWT = "witw-session-jwt-v1"

var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey expands masterSecret with HKDF-SHA256. Distinct purpose strings
// yield independent keys from the same secret.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// DeriveSessionKey returns the key that signs session tokens. JWT_SECRET is
// never used as an HMAC key directly.
func DeriveSessionKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeSessionJWT)
}
