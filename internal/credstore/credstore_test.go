package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

// exerciseStore checks the contract every CredentialStore implementation shares.
func exerciseStore(t *testing.T, store apiclient.CredentialStore) {
	t.Helper()
	ctx := context.Background()

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear on empty store: %v", err)
	}
	if _, err := store.Get(ctx); !errors.Is(err, apiclient.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
	if err := store.Set(ctx, apiclient.Credentials{AccessToken: "only-access"}); !errors.Is(err, apiclient.ErrIncompleteCredentials) {
		t.Fatalf("expected ErrIncompleteCredentials, got %v", err)
	}
	if err := store.Set(ctx, apiclient.Credentials{AccessToken: "access-1", RefreshToken: "refresh-1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, apiclient.Credentials{AccessToken: "access-2", RefreshToken: "refresh-2"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	credentials, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if credentials.AccessToken != "access-2" || credentials.RefreshToken != "refresh-2" {
		t.Fatalf("expected rotated pair, got %+v", credentials)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Get(ctx); !errors.Is(err, apiclient.ErrNoCredentials) {
		t.Fatalf("expected cleared store, got %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear must be idempotent: %v", err)
	}
}

func TestFileStoreContract(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseStore(t, store)
}

func TestFileStorePermissions(t *testing.T) {
	directory := filepath.Join(t.TempDir(), "taxpilot")
	store, err := NewFileStore(filepath.Join(directory, "credentials.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := store.Set(context.Background(), apiclient.Credentials{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	fileInfo, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fileInfo.Mode().Perm() != fileStoreFileMode {
		t.Fatalf("expected 0600, got %o", fileInfo.Mode().Perm())
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files must not linger, found %d entries", len(entries))
	}
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	_, err = store.Get(context.Background())
	if err == nil || errors.Is(err, apiclient.ErrNoCredentials) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(" "); !errors.Is(err, errEmptyFilePath) {
		t.Fatalf("expected errEmptyFilePath, got %v", err)
	}
}

func TestDatabaseStoreContract(t *testing.T) {
	store, err := NewDatabaseStore(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("new database store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Driver() != "sqlite" {
		t.Fatalf("expected sqlite driver, got %s", store.Driver())
	}
	exerciseStore(t, store)
}

func TestDatabaseStoreRecordsUpdateTime(t *testing.T) {
	store, err := NewDatabaseStore(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("new database store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	store.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	if err := store.Set(context.Background(), apiclient.Credentials{AccessToken: "a", RefreshToken: "r"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var records []credentialRecord
	if err := store.db.Order("key").Find(&records).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two rows, got %d", len(records))
	}
	for _, record := range records {
		if record.UpdatedUnix != 1700000000 {
			t.Fatalf("unexpected update time for %s: %d", record.Key, record.UpdatedUnix)
		}
	}
}

func TestDatabaseStoreConcurrentWriters(t *testing.T) {
	store, err := NewDatabaseStore(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("new database store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var group sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		group.Add(1)
		go func(worker int) {
			defer group.Done()
			pair := apiclient.Credentials{AccessToken: "access", RefreshToken: "refresh"}
			pair.AccessToken += string(rune('a' + worker))
			pair.RefreshToken += string(rune('a' + worker))
			_ = store.Set(context.Background(), pair)
		}(worker)
	}
	group.Wait()

	credentials, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if credentials.AccessToken[len(credentials.AccessToken)-1] != credentials.RefreshToken[len(credentials.RefreshToken)-1] {
		t.Fatalf("pair must come from a single writer, got %+v", credentials)
	}
}

func TestRedisStoreContract(t *testing.T) {
	address := os.Getenv("TAXPILOT_TEST_REDIS_ADDR")
	if address == "" {
		t.Skip("TAXPILOT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: address})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "taxpilot-test-"+t.Name())
	exerciseStore(t, store)
}

func TestNewRedisStoreKey(t *testing.T) {
	testCases := []struct {
		prefix   string
		expected string
	}{
		{prefix: "", expected: "taxpilot:credentials"},
		{prefix: "team:", expected: "team:credentials"},
		{prefix: " dev ", expected: "dev:credentials"},
	}
	for _, testCase := range testCases {
		if got := NewRedisStore(nil, testCase.prefix).Key(); got != testCase.expected {
			t.Fatalf("prefix %q: expected %q, got %q", testCase.prefix, testCase.expected, got)
		}
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	logger := zaptest.NewLogger(t)
	directory := t.TempDir()

	testCases := []struct {
		name        string
		storeURL    string
		description string
	}{
		{name: "memory", storeURL: "memory://", description: "memory"},
		{name: "file", storeURL: "file://" + filepath.Join(directory, "credentials.json"), description: "file:" + filepath.Join(directory, "credentials.json")},
		{name: "sqlite", storeURL: "sqlite://" + filepath.Join(directory, "credentials.db"), description: "sqlite"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			handle, err := Open(context.Background(), testCase.storeURL, logger)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			t.Cleanup(func() { _ = handle.Close() })
			if handle.Description != testCase.description {
				t.Fatalf("expected %q, got %q", testCase.description, handle.Description)
			}
			exerciseStore(t, handle)
		})
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "etcd://localhost:2379", nil); !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
	if _, err := Open(context.Background(), "", nil); !errors.Is(err, ErrEmptyStoreURL) {
		t.Fatalf("expected ErrEmptyStoreURL, got %v", err)
	}
}
