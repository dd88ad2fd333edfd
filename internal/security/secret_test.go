package security

import (
	"errors"
	"testing"
)

const testEncryptionKey = "unit-test-encryption-key"

func TestEncryptDecryptSecret(t *testing.T) {
	t.Setenv(secretEncryptionKeyEnv, testEncryptionKey)
	ResetSecretCipherForTests()

	cipherText, err := EncryptSecret("gemini-key")
	if err != nil {
		t.Fatalf("EncryptSecret returned error: %v", err)
	}
	if !IsSecretEncrypted(cipherText) {
		t.Fatalf("ciphertext %q is not marked as encrypted", cipherText)
	}

	plain, legacy, err := DecryptSecret(cipherText)
	if err != nil {
		t.Fatalf("DecryptSecret returned error: %v", err)
	}
	if legacy {
		t.Fatal("DecryptSecret flagged encrypted value as legacy")
	}
	if plain != "gemini-key" {
		t.Fatalf("DecryptSecret returned %q, want gemini-key", plain)
	}
}

func TestEncryptSecretUsesFreshNonce(t *testing.T) {
	t.Setenv(secretEncryptionKeyEnv, testEncryptionKey)
	ResetSecretCipherForTests()

	first, _ := EncryptSecret("same")
	second, _ := EncryptSecret("same")
	if first == second {
		t.Fatal("two encryptions of the same value produced identical ciphertext")
	}
}

func TestDecryptPlainSecret(t *testing.T) {
	t.Setenv(secretEncryptionKeyEnv, "")
	ResetSecretCipherForTests()

	plain, legacy, err := DecryptSecret("plain-key")
	if err != nil {
		t.Fatalf("DecryptSecret returned error: %v", err)
	}
	if !legacy || plain != "plain-key" {
		t.Fatalf("DecryptSecret returned (%q, %v), want (plain-key, true)", plain, legacy)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	t.Setenv(secretEncryptionKeyEnv, testEncryptionKey)
	ResetSecretCipherForTests()
	cipherText, err := EncryptSecret("gemini-key")
	if err != nil {
		t.Fatalf("EncryptSecret returned error: %v", err)
	}

	t.Setenv(secretEncryptionKeyEnv, "another-key")
	ResetSecretCipherForTests()
	if _, _, err := DecryptSecret(cipherText); err == nil {
		t.Fatal("expected decryption with a different key to fail")
	}
}

func TestEncryptSecretMissingKey(t *testing.T) {
	t.Setenv(secretEncryptionKeyEnv, "")
	ResetSecretCipherForTests()
	t.Cleanup(ResetSecretCipherForTests)

	if _, err := EncryptSecret("secret"); !errors.Is(err, ErrEncryptionKeyMissing) {
		t.Fatalf("expected ErrEncryptionKeyMissing, got %v", err)
	}
}
