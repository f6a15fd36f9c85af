package auth

import (
	"os"
	"time"
)

const (
	envSessionID = "FCSYNC_SESSION_ID"
	envUserAgent = "FCSYNC_USER_AGENT"

	// EnvAccountName names the account read from FCSYNC_SESSION_ID
	EnvAccountName = "env"
)

// EnvironmentStore is a read-only CredentialStore over FCSYNC_SESSION_ID and
// FCSYNC_USER_AGENT
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Retrieve matches the empty name and EnvAccountName
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	session := os.Getenv(envSessionID)
	if session == "" || (name != "" && name != EnvAccountName) {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         EnvAccountName,
		SessionID:    session,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	if account, err := e.Retrieve(""); err == nil {
		return []*Account{account}, nil
	}
	return []*Account{}, nil
}

func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

func (e *EnvironmentStore) Store(*Account) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Delete(string) error { return ErrStoreUnavailable }
