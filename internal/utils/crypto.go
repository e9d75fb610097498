package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Provider API keys are stored encrypted at rest: AES-256-GCM with a key
// derived from ENCRYPTION_KEY via SHA-256. Serialized form is
// base64(iv):base64(sealed payload).

var (
	keyOnce   sync.Once
	cachedKey []byte
	keyErr    error
)

func encryptionKey() ([]byte, error) {
	keyOnce.Do(func() {
		secret := os.Getenv("ENCRYPTION_KEY")
		if secret == "" {
			keyErr = fmt.Errorf("ENCRYPTION_KEY environment variable is required")
			return
		}
		if len(secret) < 32 {
			keyErr = fmt.Errorf("ENCRYPTION_KEY must be at least 32 characters")
			return
		}
		sum := sha256.Sum256([]byte(secret))
		cachedKey = sum[:]
	})
	return cachedKey, keyErr
}

func Encrypt(plaintext string) (string, error) {
	key, err := encryptionKey()
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(iv) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

func Decrypt(encrypted string) (string, error) {
	key, err := encryptionKey()
	if err != nil {
		return "", err
	}
	parts := strings.Split(encrypted, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid encrypted string format")
	}
	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("invalid encrypted string format")
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("invalid encrypted string format")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(iv) != gcm.NonceSize() {
		return "", fmt.Errorf("invalid encrypted string format")
	}
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt api key: %w", err)
	}
	return string(plain), nil
}
