package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const (
	keyringServiceName = "sensorlink"
	tokenKey           = "api.token"
	keyringDirectory   = "~/.config/sensorlink/keyring"
)

// KeyringOptions selects the keyring backend; an empty Backend lets keyring pick.
type KeyringOptions struct {
	Backend  string             `yaml:"backend" mapstructure:"backend"`
	FileDir  string             `yaml:"file_dir" mapstructure:"file_dir"`
	Password keyring.PromptFunc `yaml:"-" mapstructure:"-"`
}

// TokenStore keeps the API bearer token in a keyring.
type TokenStore struct {
	kr keyring.Keyring
}

func NewTokenStore(kr keyring.Keyring) *TokenStore {
	return &TokenStore{kr: kr}
}

// OpenTokenStore opens the system keyring under the sensorlink service name.
func OpenTokenStore(opts KeyringOptions) (*TokenStore, error) {
	cfg := keyring.Config{
		ServiceName:              keyringServiceName,
		KeychainTrustApplication: true,
		KeyCtlScope:              "user",
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         opts.Password,
	}
	if cfg.FileDir == "" {
		cfg.FileDir = keyringDirectory
	}
	if opts.Backend != "" {
		backend := keyring.BackendType(opts.Backend)
		if !backendAvailable(backend) {
			return nil, fmt.Errorf("unsupported keyring backend %q (available: %s)", opts.Backend, availableBackends())
		}
		cfg.AllowedBackends = []keyring.BackendType{backend}
	}

	kr, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewTokenStore(kr), nil
}

// Get returns an empty token and no error when none is stored.
func (s *TokenStore) Get() (string, error) {
	item, err := s.kr.Get(tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("could not load token: %w", err)
	}
	return strings.TrimSpace(string(item.Data)), nil
}

func (s *TokenStore) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if err := s.kr.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "sensorlink API token",
	}); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// Clear removes the token; clearing an empty store is not an error.
func (s *TokenStore) Clear() error {
	if err := s.kr.Remove(tokenKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove token from keyring: %w", err)
	}
	return nil
}

func backendAvailable(b keyring.BackendType) bool {
	for _, name := range keyring.AvailableBackends() {
		if name == b {
			return true
		}
	}
	return false
}

func availableBackends() string {
	var names []string
	for _, name := range keyring.AvailableBackends() {
		names = append(names, string(name))
	}
	return strings.Join(names, "|")
}
