package credstorepg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"

	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	store := NewStore(mock)
	store.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return store, mock
}

func TestStoreGetReturnsPair(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`(?s)SELECT.*FROM credentials`).
		WithArgs(apiclient.AccessTokenKey, apiclient.RefreshTokenKey).
		WillReturnRows(pgxmock.NewRows([]string{"access_token", "refresh_token"}).AddRow("access", "refresh"))

	credentials, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if credentials.AccessToken != "access" || credentials.RefreshToken != "refresh" {
		t.Fatalf("unexpected pair %+v", credentials)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreGetTreatsHalfPairAsMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`(?s)SELECT.*FROM credentials`).
		WithArgs(apiclient.AccessTokenKey, apiclient.RefreshTokenKey).
		WillReturnRows(pgxmock.NewRows([]string{"access_token", "refresh_token"}).AddRow("access", ""))

	if _, err := store.Get(context.Background()); !errors.Is(err, apiclient.ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestStoreSetUpsertsInTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO credentials`).
		WithArgs(apiclient.AccessTokenKey, "access-2", apiclient.RefreshTokenKey, "refresh-2", int64(1700000000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	if err := store.Set(context.Background(), apiclient.Credentials{AccessToken: "access-2", RefreshToken: "refresh-2"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreSetRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO credentials`).
		WithArgs(apiclient.AccessTokenKey, "access-2", apiclient.RefreshTokenKey, "refresh-2", int64(1700000000)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Set(context.Background(), apiclient.Credentials{AccessToken: "access-2", RefreshToken: "refresh-2"})
	if err == nil {
		t.Fatalf("expected failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreSetRejectsIncompletePair(t *testing.T) {
	store, mock := newMockStore(t)
	if err := store.Set(context.Background(), apiclient.Credentials{RefreshToken: "refresh"}); !errors.Is(err, apiclient.ErrIncompleteCredentials) {
		t.Fatalf("expected ErrIncompleteCredentials, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statements expected: %v", err)
	}
}

func TestStoreClearDeletesBothRows(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM credentials`).
		WithArgs(apiclient.AccessTokenKey, apiclient.RefreshTokenKey).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	if err := store.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS credentials`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	if err := EnsureSchema(context.Background(), mock); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
