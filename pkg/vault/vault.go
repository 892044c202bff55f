package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"mailtask-backend/internal/apperr"

	"golang.org/x/crypto/hkdf"
)

const nonceSize = 12

// Vault encrypts provider OAuth secrets at rest with AES-256-GCM.
// The key is derived once from the configured master secret; the
// handle is shared read-only across the process.
type Vault struct {
	aead cipher.AEAD
}

// New derives the encryption key from the master secret. An empty
// secret yields a vault whose operations fail with a credential error,
// so a missing ENCRYPTION_SECRET surfaces on first use rather than
// crashing startup.
func New(masterSecret string) *Vault {
	if masterSecret == "" {
		return &Vault{}
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte("mailtask-credential-vault"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return &Vault{}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return &Vault{}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return &Vault{}
	}

	return &Vault{aead: aead}
}

// Encrypt seals plaintext into base64url(nonce || ciphertext+tag).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v.aead == nil {
		return "", apperr.New(apperr.KindCredential, "encryption key not configured")
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperr.Wrap(apperr.KindCredential, err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any malformed or tampered
// blob fails closed with a credential error.
func (v *Vault) Decrypt(blob string) (string, error) {
	if v.aead == nil {
		return "", apperr.New(apperr.KindCredential, "encryption key not configured")
	}

	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", apperr.Wrapf(apperr.KindCredential, "malformed secret blob: %v", err)
	}
	if len(raw) < nonceSize {
		return "", apperr.New(apperr.KindCredential, "secret blob too short")
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperr.New(apperr.KindCredential, "secret blob failed authentication")
	}

	return string(plaintext), nil
}
