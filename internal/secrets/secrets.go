package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// Box seals and opens small secrets (the stored TOTP secret) with AES-GCM.
// The nonce is prepended to the ciphertext so a single hex string can be
// stored per secret.
type Box struct {
	key []byte
}

// NewBox expects a 16, 24 or 32 byte key.
func NewBox(key []byte) (*Box, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, errors.New("encryption key must be 16, 24 or 32 bytes")
	}
	return &Box{key: key}, nil
}

func (b *Box) Seal(plaintext string) (string, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (b *Box) Open(ciphertextHex string) (string, error) {
	data, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
