// Package secrets provides encryption for credentials persisted at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the AES-256 key in bytes.
	KeySize = 32
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000

	// derivation label for the session token key
	sessionTokenSalt = "session-token"
)

var (
	ErrInvalidKey        = errors.New("invalid encryption key: must be at least 32 characters")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Encryptor handles credential encryption and decryption.
type Encryptor struct {
	key []byte
}

// NewEncryptor creates a new Encryptor with the given master secret.
// The secret should be at least 32 characters for security.
func NewEncryptor(secret string) (*Encryptor, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidKey
	}
	// Use SHA-256 to normalize the key length
	hash := sha256.Sum256([]byte(secret))
	key := pbkdf2.Key(hash[:], []byte(sessionTokenSalt), PBKDF2Iterations, KeySize, sha256.New)
	return &Encryptor{key: key}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM.
// Returns the ciphertext and the nonce used for encryption.
func (e *Encryptor) Encrypt(plaintext string) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM.
func (e *Encryptor) Decrypt(ciphertext, nonce []byte) (string, error) {
	if len(ciphertext) == 0 || len(nonce) == 0 {
		return "", ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("creating GCM: %w", err)
	}

	if len(nonce) != gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
