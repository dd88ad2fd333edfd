package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"

	"vpnrotator/internal/support"
)

const (
	secretEncryptionKeyEnv = "SECRET_ENCRYPTION_KEY"
	SecretEncryptionPrefix = "enc:"

	keyDerivationInfo = "vpnrotator settings secret v1"
)

var (
	ErrEncryptionKeyMissing = errors.New("secret encryption key not set: " + secretEncryptionKeyEnv)

	secretCipherOnce sync.Once
	secretCipherInst cipher.AEAD
	secretCipherErr  error
)

func getSecretCipher() (cipher.AEAD, error) {
	secretCipherOnce.Do(func() {
		rawKey := strings.TrimSpace(support.GetEnv(secretEncryptionKeyEnv, ""))
		if rawKey == "" {
			secretCipherErr = ErrEncryptionKeyMissing
			return
		}

		key, err := deriveKey(rawKey)
		if err != nil {
			secretCipherErr = fmt.Errorf("derive secret key: %w", err)
			return
		}

		block, err := aes.NewCipher(key)
		if err != nil {
			secretCipherErr = fmt.Errorf("create cipher: %w", err)
			return
		}

		gcm, err := cipher.NewGCM(block)
		if err != nil {
			secretCipherErr = fmt.Errorf("create gcm: %w", err)
			return
		}

		secretCipherInst = gcm
	})

	return secretCipherInst, secretCipherErr
}

// deriveKey stretches the configured passphrase (raw or base64) into an
// AES-256 key.
func deriveKey(raw string) ([]byte, error) {
	material := []byte(raw)
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) > 0 {
		material = decoded
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, []byte(keyDerivationInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func EncryptSecret(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	gcm, err := getSecretCipher()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	payload := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return SecretEncryptionPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// DecryptSecret returns the plain value and whether it was stored unencrypted.
func DecryptSecret(value string) (string, bool, error) {
	if value == "" {
		return "", false, nil
	}

	if !IsSecretEncrypted(value) {
		return value, true, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SecretEncryptionPrefix))
	if err != nil {
		return "", false, fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := getSecretCipher()
	if err != nil {
		return "", false, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) <= nonceSize {
		return "", false, errors.New("ciphertext too short")
	}

	plain, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", false, fmt.Errorf("decrypt ciphertext: %w", err)
	}

	return string(plain), false, nil
}

func IsSecretEncrypted(value string) bool {
	return strings.HasPrefix(value, SecretEncryptionPrefix)
}

func ResetSecretCipherForTests() {
	secretCipherOnce = sync.Once{}
	secretCipherInst = nil
	secretCipherErr = nil
}
