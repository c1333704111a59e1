package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCredentialManager(t *testing.T) {
	mock := NewMockStore()
	manager := NewManagerWithStores(mock)

	cred := &Credential{Name: "work", Backend: "anthropic", APIKey: "sk-ant-test-0123456789"}
	if err := manager.Store(cred); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if cred.LastModified.IsZero() {
		t.Error("Expected LastModified to be stamped")
	}

	key, err := manager.APIKey("work")
	if err != nil {
		t.Fatalf("Failed to get API key: %v", err)
	}
	if key != cred.APIKey {
		t.Errorf("API key mismatch: got %s, want %s", key, cred.APIKey)
	}

	creds, err := manager.List()
	if err != nil || len(creds) != 1 {
		t.Errorf("Expected one listed credential, got %d (%v)", len(creds), err)
	}

	if err := manager.Delete("work"); err != nil {
		t.Fatalf("Failed to delete credential: %v", err)
	}
	if _, err := manager.Retrieve("work"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if mock.Count() != 0 {
		t.Errorf("Expected empty store, got %d", mock.Count())
	}
}

func TestManagerValidation(t *testing.T) {
	manager := NewManagerWithStores(NewMockStore())

	if err := manager.Store(&Credential{APIKey: "x"}); err == nil {
		t.Error("Expected an error for a missing name")
	}
	if err := manager.Store(&Credential{Name: "x"}); err == nil {
		t.Error("Expected an error for a missing key")
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	fallback := NewMockStore()
	manager := NewManagerWithStores(broken, fallback)

	if err := manager.Store(&Credential{Name: DefaultAccount, APIKey: "fallback-key-123"}); err != nil {
		t.Fatalf("Expected fallback store to succeed: %v", err)
	}
	if !fallback.Exists(DefaultAccount) {
		t.Error("Expected credential in fallback store")
	}

	key, err := manager.APIKey("")
	if err != nil || key != "fallback-key-123" {
		t.Errorf("Expected default account key, got %q (%v)", key, err)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("REPHRASE_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	cred := &Credential{Name: "default", Backend: "anthropic", APIKey: "sk-ant-secret-value"}
	if err := store.Store(cred); err != nil {
		t.Fatalf("Failed to store: %v", err)
	}

	retrieved, err := store.Retrieve("default")
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if retrieved.APIKey != cred.APIKey {
		t.Errorf("API key mismatch after encryption round trip")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("sk-ant-secret-value")) {
		t.Error("File contains the plaintext key")
	}

	// A different passphrase cannot read the file
	t.Setenv("REPHRASE_PASSPHRASE", "another_passphrase")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("default"); err == nil {
		t.Error("Expected decryption to fail with the wrong passphrase")
	}

	t.Setenv("REPHRASE_PASSPHRASE", "test_passphrase_123")
	if err := store.Delete("default"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected the file to be removed with its last credential")
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv("REPHRASE_PASSPHRASE", "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Store(&Credential{Name: "a", APIKey: "key-a-123456"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Expected generated passphrase file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected passphrase file mode 0600, got %v", info.Mode().Perm())
	}

	// A second store in the same directory reuses the passphrase
	again, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if !again.Exists("a") {
		t.Error("Expected credential to be readable with the persisted passphrase")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("REPHRASE_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	store := NewEnvironmentStore()

	if store.Exists("") {
		t.Error("Expected no environment credential")
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic-key")
	cred, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if cred.APIKey != "env-anthropic-key" || cred.Backend != "anthropic" || cred.Name != DefaultAccount {
		t.Errorf("Unexpected credential %+v", cred)
	}

	t.Setenv("REPHRASE_API_KEY", "env-rephrase-key")
	cred, _ = store.Retrieve("work")
	if cred.APIKey != "env-rephrase-key" {
		t.Errorf("Expected REPHRASE_API_KEY to win, got %s", cred.APIKey)
	}

	if err := store.Store(&Credential{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestSanitizeCredential(t *testing.T) {
	cred := &Credential{Name: "n", APIKey: "sk-ant-abcdefghijkl"}
	sanitized := SanitizeCredential(cred)
	if sanitized.APIKey != "sk-a...ijkl" {
		t.Errorf("Unexpected mask %s", sanitized.APIKey)
	}
	if MaskString("short") != "********" {
		t.Error("Expected short values to be fully masked")
	}
	if SanitizeCredential(nil) != nil {
		t.Error("Expected nil for nil input")
	}
}
