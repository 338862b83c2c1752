package store

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foldr/foldr-go/internal/offline"
)

type cacheEntryRow struct {
	PartitionName string `gorm:"primaryKey"`
	URL           string `gorm:"primaryKey"`
	Status        int
	Header        string
	Body          []byte
	StoredAt      time.Time
}

func (cacheEntryRow) TableName() string { return "cache_entries" }

// CacheStorage keeps the offline worker's partitions in the local database.
type CacheStorage struct {
	db *gorm.DB
}

var _ offline.Storage = (*CacheStorage)(nil)

// CacheStorage returns the store's offline.Storage.
func (s *Store) CacheStorage() *CacheStorage {
	return &CacheStorage{db: s.db}
}

func (c *CacheStorage) Get(ctx context.Context, partition, key string) (offline.Entry, bool, error) {
	var row cacheEntryRow
	err := c.db.WithContext(ctx).
		Where("partition_name = ? AND url = ?", partition, key).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return offline.Entry{}, false, nil
	}
	if err != nil {
		return offline.Entry{}, false, err
	}

	var header http.Header
	if row.Header != "" {
		if err := json.Unmarshal([]byte(row.Header), &header); err != nil {
			return offline.Entry{}, false, err
		}
	}
	return offline.Entry{Status: row.Status, Header: header, Body: row.Body, StoredAt: row.StoredAt}, true, nil
}

func (c *CacheStorage) Put(ctx context.Context, partition, key string, e offline.Entry) error {
	header, err := json.Marshal(e.Header)
	if err != nil {
		return err
	}
	row := cacheEntryRow{
		PartitionName: partition,
		URL:           key,
		Status:        e.Status,
		Header:        string(header),
		Body:          e.Body,
		StoredAt:      e.StoredAt,
	}
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

func (c *CacheStorage) Partitions(ctx context.Context) ([]string, error) {
	var names []string
	err := c.db.WithContext(ctx).
		Model(&cacheEntryRow{}).
		Distinct().
		Order("partition_name").
		Pluck("partition_name", &names).Error
	return names, err
}

func (c *CacheStorage) DropPartition(ctx context.Context, partition string) error {
	return c.db.WithContext(ctx).
		Where("partition_name = ?", partition).
		Delete(&cacheEntryRow{}).Error
}
