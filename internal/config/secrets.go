package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const (
	accountAPIToken     = "api_token"
	accountGeminiAPIKey = "gemini_api_key"

	envAPIToken = "AURA_API_TOKEN"
)

// ErrSecretNotFound is returned when the secrets file has no such account.
var ErrSecretNotFound = errors.New("secret not found")

// Secrets is a JSON file of account/value pairs readable only by the owner.
type Secrets struct {
	path string
	mu   sync.Mutex
}

// NewSecrets returns the secrets store at path.
func NewSecrets(path string) *Secrets {
	return &Secrets{path: path}
}

// DefaultSecrets returns the secrets store in the data directory.
func DefaultSecrets() *Secrets {
	return NewSecrets(secretsFilePath())
}

func (s *Secrets) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	secrets := map[string]string{}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

// Get returns the value stored for account.
func (s *Secrets) Get(account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := secrets[account]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, account)
	}
	return v, nil
}

// Set stores value for account.
func (s *Secrets) Set(account, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	secrets, err := s.read()
	if err != nil {
		return err
	}
	secrets[account] = value

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}

// GetAPIToken returns the bearer token of the HTTP API. AURA_API_TOKEN wins;
// otherwise the token is read from the secrets file and generated on first
// use.
func GetAPIToken(s *Secrets) (string, error) {
	if tok := os.Getenv(envAPIToken); tok != "" {
		return tok, nil
	}
	tok, err := s.Get(accountAPIToken)
	if err == nil && tok != "" {
		return tok, nil
	}
	if err != nil && !errors.Is(err, ErrSecretNotFound) {
		return "", err
	}
	tok = uuid.NewString()
	if err := s.Set(accountAPIToken, tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
