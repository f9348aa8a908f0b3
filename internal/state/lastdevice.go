// Package state keeps the little that survives a process restart: the last
// used device descriptor and the API bearer token.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/srg/sensorlink/internal/device"
	"gopkg.in/yaml.v3"
)

// LastDeviceStore persists the last selected descriptor as a YAML file.
type LastDeviceStore struct {
	path string
}

// NewLastDeviceStore returns a store at path; a leading "~/" expands to the home directory.
func NewLastDeviceStore(path string) (*LastDeviceStore, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if expanded == "" {
		return nil, errors.New("state path is empty")
	}
	return &LastDeviceStore{path: expanded}, nil
}

func (s *LastDeviceStore) Path() string {
	return s.path
}

// Load returns nil and no error when nothing has been saved yet.
func (s *LastDeviceStore) Load() (*device.Descriptor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read last device: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var desc device.Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse last device %s: %w", s.path, err)
	}
	desc.EnsureID()
	return &desc, nil
}

func (s *LastDeviceStore) Save(desc device.Descriptor) error {
	desc.EnsureID()
	data, err := yaml.Marshal(desc)
	if err != nil {
		return fmt.Errorf("encode last device: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write last device: %w", err)
	}
	return nil
}

// Clear removes the saved descriptor; a missing file is not an error.
func (s *LastDeviceStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
