package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// Sealing key for pairing payloads at rest (in production, use a secure key management system)
var payloadKey = []byte("32-byte-key-for-aes-encryption!!")

// Seal encrypts a raw pairing payload with AES-GCM. The nonce is prepended
// to the ciphertext so the result is a single self-contained blob.
func Seal(plaintext string) ([]byte, error) {
	block, err := aes.NewCipher(payloadKey)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts a blob produced by Seal.
func Open(blob []byte) (string, error) {
	block, err := aes.NewCipher(payloadKey)
	if err != nil {
		return "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(blob) < aesgcm.NonceSize() {
		return "", errors.New("sealed payload too short")
	}
	nonce, ciphertext := blob[:aesgcm.NonceSize()], blob[aesgcm.NonceSize():]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
