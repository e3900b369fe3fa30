package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoCredentials      = errors.New("no stored credentials")
	ErrCorruptCredentials = errors.New("stored credentials could not be read")
)

// DefaultPath is where the credentials live when nothing else is configured
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "autosign", "config.json"), nil
}

// FileStore keeps a single username and password as json on disk.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *log.Entry
}

func NewFileStore(path string, logger *log.Entry) *FileStore {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &FileStore{
		path:   path,
		logger: logger.WithFields(log.Fields{"job": "credentials", "path": path}),
	}
}

func (s *FileStore) Path() string { return s.path }

// Load returns ErrNoCredentials when nothing usable is stored. A file that can
// not be decoded is removed.
func (s *FileStore) Load() (services.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var creds services.Credentials
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return creds, ErrNoCredentials
	}
	if err != nil {
		return creds, fmt.Errorf("read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &creds); err != nil {
		s.logger.WithError(err).Warn("Removing unreadable credentials")
		if rmErr := s.remove(); rmErr != nil {
			return services.Credentials{}, errors.Join(ErrCorruptCredentials, err, rmErr)
		}
		return services.Credentials{}, errors.Join(ErrCorruptCredentials, err)
	}
	if creds.Empty() {
		return creds, ErrNoCredentials
	}
	return creds, nil
}

func (s *FileStore) Save(creds services.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(creds, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	s.logger.WithField("username", creds.Username).Info("Saved credentials")
	return nil
}

// Delete removes the stored credentials, it is fine if there are none.
func (s *FileStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.remove(); err != nil {
		return err
	}
	s.logger.Info("Deleted credentials")
	return nil
}

func (s *FileStore) remove() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
