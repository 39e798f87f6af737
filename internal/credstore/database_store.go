package credstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tyemirov/taxpilot/internal/gormdb"
	"github.com/tyemirov/taxpilot/pkg/apiclient"
)

var credentialKeys = []string{apiclient.AccessTokenKey, apiclient.RefreshTokenKey}

type credentialRecord struct {
	Key         string `gorm:"column:key;primaryKey"`
	Value       string `gorm:"column:value;not null"`
	UpdatedUnix int64  `gorm:"column:updated_unix;not null"`
}

func (credentialRecord) TableName() string {
	return "credentials"
}

// DatabaseStore persists the credential pair as two rows using GORM.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
	now         func() time.Time
}

// NewDatabaseStore opens databaseURL (sqlite:// or postgres://) and migrates the credentials table.
func NewDatabaseStore(ctx context.Context, databaseURL string) (*DatabaseStore, error) {
	gormDB, driverLabel, err := gormdb.Open(ctx, databaseURL, &credentialRecord{})
	if err != nil {
		return nil, fmt.Errorf("credstore.database.open: %w", err)
	}
	return &DatabaseStore{
		db:          gormDB,
		driverLabel: driverLabel,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Driver exposes the selected database driver label.
func (store *DatabaseStore) Driver() string {
	return store.driverLabel
}

// Close releases the underlying connection pool.
func (store *DatabaseStore) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return fmt.Errorf("credstore.database.%s.close: %w", store.driverLabel, err)
	}
	return sqlDB.Close()
}

// Get loads both rows; a missing row yields apiclient.ErrNoCredentials.
func (store *DatabaseStore) Get(ctx context.Context) (apiclient.Credentials, error) {
	var records []credentialRecord
	if err := store.db.WithContext(ctx).Where("key IN ?", credentialKeys).Find(&records).Error; err != nil {
		return apiclient.Credentials{}, fmt.Errorf("credstore.database.%s.get: %w", store.driverLabel, err)
	}
	var credentials apiclient.Credentials
	for _, record := range records {
		switch record.Key {
		case apiclient.AccessTokenKey:
			credentials.AccessToken = record.Value
		case apiclient.RefreshTokenKey:
			credentials.RefreshToken = record.Value
		}
	}
	if !credentials.Complete() {
		return apiclient.Credentials{}, apiclient.ErrNoCredentials
	}
	return credentials, nil
}

// Set upserts both rows in one transaction.
func (store *DatabaseStore) Set(ctx context.Context, credentials apiclient.Credentials) error {
	if !credentials.Complete() {
		return apiclient.ErrIncompleteCredentials
	}
	updatedUnix := store.now().Unix()
	records := []credentialRecord{
		{Key: apiclient.AccessTokenKey, Value: credentials.AccessToken, UpdatedUnix: updatedUnix},
		{Key: apiclient.RefreshTokenKey, Value: credentials.RefreshToken, UpdatedUnix: updatedUnix},
	}
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_unix"}),
		}).Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("credstore.database.%s.set: %w", store.driverLabel, err)
	}
	return nil
}

// Clear deletes both rows in one transaction.
func (store *DatabaseStore) Clear(ctx context.Context) error {
	err := store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("key IN ?", credentialKeys).Delete(&credentialRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("credstore.database.%s.clear: %w", store.driverLabel, err)
	}
	return nil
}
