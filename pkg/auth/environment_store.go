package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and answers for any name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// envAPIKey checks REPHRASE_API_KEY, then ANTHROPIC_API_KEY
func envAPIKey() (key, backend string) {
	if key := os.Getenv("REPHRASE_API_KEY"); key != "" {
		return key, os.Getenv("REPHRASE_BACKEND")
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, "anthropic"
	}
	return "", ""
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the key from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	key, backend := envAPIKey()
	if key == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultAccount
	}

	return &Credential{
		Name:         name,
		Backend:      backend,
		APIKey:       key,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the environment provides one
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment key is set
func (e *EnvironmentStore) Exists(name string) bool {
	key, _ := envAPIKey()
	return key != ""
}
