package google

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultAccount is the account used when a caller names none.
	DefaultAccount = "default"

	// ClientSecretFile is the OAuth client description inside the store.
	ClientSecretFile = "client_secret.json"

	credentialsPrefix = "credentials"
	credentialsExt    = ".json"
)

var accountNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateAccountName checks that an account name maps to a safe file name.
func ValidateAccountName(account string) error {
	if !accountNamePattern.MatchString(account) {
		return fmt.Errorf("%w %q: use letters, digits, hyphens and underscores", ErrInvalidAccount, account)
	}
	return nil
}

// Store is a directory holding client_secret.json and per-account
// credentials files.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// the first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDir returns the per-user configuration directory for gapi.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(base, "gapi"), nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// ClientSecretPath returns the location of client_secret.json.
func (s *Store) ClientSecretPath() string {
	return filepath.Join(s.dir, ClientSecretFile)
}

// HasClientSecret reports whether client_secret.json exists.
func (s *Store) HasClientSecret() bool {
	_, err := os.Stat(s.ClientSecretPath())
	return err == nil
}

// CredentialsPath returns the credentials file for account. The default
// account uses credentials.json; others use credentials-<account>.json.
func (s *Store) CredentialsPath(account string) (string, error) {
	if err := ValidateAccountName(account); err != nil {
		return "", err
	}
	if account == DefaultAccount {
		return filepath.Join(s.dir, credentialsPrefix+credentialsExt), nil
	}
	return filepath.Join(s.dir, credentialsPrefix+"-"+account+credentialsExt), nil
}

// Load reads the credentials for account.
func (s *Store) Load(account string) (*Credentials, error) {
	path, err := s.CredentialsPath(account)
	if err != nil {
		return nil, err
	}
	return LoadCredentials(path)
}

// Save persists the credentials for account.
func (s *Store) Save(account string, c *Credentials) error {
	path, err := s.CredentialsPath(account)
	if err != nil {
		return err
	}
	return SaveCredentials(path, c)
}

// Has reports whether a credentials file exists for account.
func (s *Store) Has(account string) bool {
	path, err := s.CredentialsPath(account)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Delete removes the credentials for account. Deleting a missing file is not
// an error.
func (s *Store) Delete(account string) error {
	path, err := s.CredentialsPath(account)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete credentials for account %s: %w", account, err)
	}
	return nil
}

// Accounts lists the accounts that have a credentials file, sorted by name.
func (s *Store) Accounts() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials directory: %w", err)
	}

	var accounts []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, credentialsPrefix) || !strings.HasSuffix(name, credentialsExt) {
			continue
		}
		stem := strings.TrimSuffix(strings.TrimPrefix(name, credentialsPrefix), credentialsExt)
		switch {
		case stem == "":
			accounts = append(accounts, DefaultAccount)
		case strings.HasPrefix(stem, "-") && ValidateAccountName(stem[1:]) == nil:
			accounts = append(accounts, stem[1:])
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

// AccountForPath maps a credentials file path back to its account name.
func (s *Store) AccountForPath(path string) (string, bool) {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(s.dir) {
		return "", false
	}
	name := filepath.Base(path)
	if name == credentialsPrefix+credentialsExt {
		return DefaultAccount, true
	}
	if !strings.HasPrefix(name, credentialsPrefix+"-") || !strings.HasSuffix(name, credentialsExt) {
		return "", false
	}
	account := strings.TrimSuffix(strings.TrimPrefix(name, credentialsPrefix+"-"), credentialsExt)
	if ValidateAccountName(account) != nil {
		return "", false
	}
	return account, true
}
