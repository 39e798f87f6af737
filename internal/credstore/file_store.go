package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

const (
	fileStoreDirMode  = 0o700
	fileStoreFileMode = 0o600
)

var errEmptyFilePath = errors.New("credstore.file.empty_path")

// FileStore keeps the credential pair in a single JSON document.
type FileStore struct {
	mutex sync.Mutex
	path  string
}

// NewFileStore constructs a store writing to path. The file is created on first Set.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("credstore.file.open: %w", errEmptyFilePath)
	}
	return &FileStore{path: filepath.Clean(path)}, nil
}

// Path reports the backing file location.
func (store *FileStore) Path() string {
	return store.path
}

// Get reads the stored pair.
func (store *FileStore) Get(ctx context.Context) (apiclient.Credentials, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	contents, err := os.ReadFile(store.path)
	if errors.Is(err, fs.ErrNotExist) {
		return apiclient.Credentials{}, apiclient.ErrNoCredentials
	}
	if err != nil {
		return apiclient.Credentials{}, fmt.Errorf("credstore.file.read: %w", err)
	}
	var credentials apiclient.Credentials
	if err := json.Unmarshal(contents, &credentials); err != nil {
		return apiclient.Credentials{}, fmt.Errorf("credstore.file.decode: %w", err)
	}
	if !credentials.Complete() {
		return apiclient.Credentials{}, apiclient.ErrNoCredentials
	}
	return credentials, nil
}

// Set replaces the file contents atomically.
func (store *FileStore) Set(ctx context.Context, credentials apiclient.Credentials) error {
	if !credentials.Complete() {
		return apiclient.ErrIncompleteCredentials
	}
	encoded, err := json.MarshalIndent(credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore.file.encode: %w", err)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	directory := filepath.Dir(store.path)
	if err := os.MkdirAll(directory, fileStoreDirMode); err != nil {
		return fmt.Errorf("credstore.file.mkdir: %w", err)
	}
	tempFile, err := os.CreateTemp(directory, ".credentials-*")
	if err != nil {
		return fmt.Errorf("credstore.file.create_temp: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() { _ = os.Remove(tempPath) }()

	if err := tempFile.Chmod(fileStoreFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("credstore.file.chmod: %w", err)
	}
	if _, err := tempFile.Write(encoded); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("credstore.file.write: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("credstore.file.close: %w", err)
	}
	if err := os.Rename(tempPath, store.path); err != nil {
		return fmt.Errorf("credstore.file.rename: %w", err)
	}
	return nil
}

// Clear deletes the file. A missing file is not an error.
func (store *FileStore) Clear(ctx context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if err := os.Remove(store.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credstore.file.remove: %w", err)
	}
	return nil
}
