package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

// Google refresh tokens are long-lived credentials, so they are sealed with
// AES-GCM before they touch the identities table. The stored form is
// base64(nonce || ciphertext); an empty token stays empty both ways.

func sealRefreshToken(key, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := refreshTokenGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func openRefreshToken(key, encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	gcm, err := refreshTokenGCM(key)
	if err != nil {
		return "", err
	}
	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", errors.New("sealed token too short")
	}
	plaintext, err := gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func refreshTokenGCM(key string) (cipher.AEAD, error) {
	raw := []byte(key)
	switch len(raw) {
	case 16, 24, 32:
	default:
		return nil, errors.New("token encryption key must be 16, 24, or 32 bytes")
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
