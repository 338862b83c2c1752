// Package store is the client's local SQLite database. One Store owns a data
// directory; a lock file keeps other processes out while it is open.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/foldr/foldr-go/internal/model"
)

const (
	DBFile   = "foldr.db"
	LockFile = "foldr.lock"
)

var (
	ErrLocked    = errors.New("data directory is in use by another foldr process")
	ErrNoSession = errors.New("no session")
)

type recordRow struct {
	Collection string `gorm:"primaryKey"`
	ID         string `gorm:"primaryKey"`
	TripID     string `gorm:"index"`
	Data       string `gorm:"not null"`
	UpdatedAt  time.Time
}

func (recordRow) TableName() string { return "records" }

type settingsRow struct {
	ID        int `gorm:"primaryKey"`
	Data      string
	UpdatedAt time.Time
}

func (settingsRow) TableName() string { return "settings" }

type sessionRow struct {
	ID        int `gorm:"primaryKey"`
	UserID    string
	Email     string
	Token     string
	CreatedAt time.Time
}

func (sessionRow) TableName() string { return "sessions" }

type tombstoneRow struct {
	Collection string `gorm:"primaryKey"`
	ID         string `gorm:"primaryKey"`
	CreatedAt  time.Time
}

func (tombstoneRow) TableName() string { return "tombstones" }

// Session is the signed-in user of this installation.
type Session struct {
	UserID string
	Email  string
	Token  string
}

// Store is the local database.
type Store struct {
	db   *gorm.DB
	lock *flock.Flock
	dir  string
}

// Open opens (creating if needed) the store in dir. It fails with ErrLocked
// when another process holds the directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, DBFile)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening local database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	// SQLite allows one writer; the worker and the syncer share this handle.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&recordRow{}, &settingsRow{}, &sessionRow{}, &tombstoneRow{}, &cacheEntryRow{}); err != nil {
		sqlDB.Close()
		lock.Unlock()
		return nil, fmt.Errorf("migrating local database: %w", err)
	}

	slog.Debug("local store opened", "dir", dir)
	return &Store{db: db, lock: lock, dir: dir}, nil
}

// Dir is the data directory.
func (s *Store) Dir() string { return s.dir }

// Close closes the database and releases the directory lock.
func (s *Store) Close() error {
	var errs []error
	if sqlDB, err := s.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	} else {
		errs = append(errs, err)
	}
	errs = append(errs, s.lock.Unlock())
	return errors.Join(errs...)
}

// Put inserts or replaces one record.
func (s *Store) Put(ctx context.Context, c model.Collection, rec model.Record) error {
	row := recordRow{Collection: string(c), ID: rec.ID, TripID: rec.TripID, Data: rec.Data}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, c model.Collection, id string) (model.Record, bool, error) {
	var row recordRow
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", string(c), id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, err
	}
	return row.record(), true, nil
}

// List returns every record of c ordered by id.
func (s *Store) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	var rows []recordRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", string(c)).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// Delete removes records of c. Missing ids are ignored.
func (s *Store) Delete(ctx context.Context, c model.Collection, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", string(c), ids).
		Delete(&recordRow{}).Error
}

// DeleteTrip removes a trip together with its blocks and returns the ids of
// the blocks removed.
func (s *Store) DeleteTrip(ctx context.Context, tripID string) ([]string, error) {
	var blockIDs []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&recordRow{}).
			Where("collection = ? AND trip_id = ?", string(model.Blocks), tripID).
			Order("id").
			Pluck("id", &blockIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("collection = ? AND trip_id = ?", string(model.Blocks), tripID).
			Delete(&recordRow{}).Error; err != nil {
			return err
		}
		return tx.Where("collection = ? AND id = ?", string(model.Trips), tripID).
			Delete(&recordRow{}).Error
	})
	if err != nil {
		return nil, err
	}
	return blockIDs, nil
}

// ReplaceCollection swaps the whole content of c for recs.
func (s *Store) ReplaceCollection(ctx context.Context, c model.Collection, recs []model.Record) error {
	rows := make([]recordRow, len(recs))
	for i, r := range recs {
		rows[i] = recordRow{Collection: string(c), ID: r.ID, TripID: r.TripID, Data: r.Data}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ?", string(c)).Delete(&recordRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 200).Error
	})
}

// Settings returns the settings blob, or nil when there is none.
func (s *Store) Settings(ctx context.Context) (*string, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Take(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row.Data, nil
}

// SetSettings stores data as the settings blob; nil removes it.
func (s *Store) SetSettings(ctx context.Context, data *string) error {
	db := s.db.WithContext(ctx)
	if data == nil {
		return db.Delete(&settingsRow{}, 1).Error
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&settingsRow{ID: 1, Data: *data}).Error
}

// Session returns the stored session or ErrNoSession.
func (s *Store) Session(ctx context.Context) (Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Take(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: row.UserID, Email: row.Email, Token: row.Token}, nil
}

// SaveSession replaces the stored session.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	row := sessionRow{ID: 1, UserID: sess.UserID, Email: sess.Email, Token: sess.Token}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// ClearSession forgets the session. Local records are kept.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.db.WithContext(ctx).Delete(&sessionRow{}, 1).Error
}

// AddTombstones queues deletions that still have to reach the server.
func (s *Store) AddTombstones(ctx context.Context, req model.DeleteRequest) error {
	rows := tombstoneRows(req)
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// Tombstones returns the queued deletions.
func (s *Store) Tombstones(ctx context.Context) (model.DeleteRequest, error) {
	var rows []tombstoneRow
	if err := s.db.WithContext(ctx).Order("collection, id").Find(&rows).Error; err != nil {
		return model.DeleteRequest{}, err
	}
	var req model.DeleteRequest
	for _, r := range rows {
		req.Add(model.Collection(r.Collection), r.ID)
	}
	return req, nil
}

// RemoveTombstones drops queued deletions once the server has them.
func (s *Store) RemoveTombstones(ctx context.Context, req model.DeleteRequest) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range model.Collections {
			ids := req.IDs(c)
			if len(ids) == 0 {
				continue
			}
			if err := tx.Where("collection = ? AND id IN ?", string(c), ids).
				Delete(&tombstoneRow{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func tombstoneRows(req model.DeleteRequest) []tombstoneRow {
	var rows []tombstoneRow
	for _, c := range model.Collections {
		for _, id := range req.IDs(c) {
			rows = append(rows, tombstoneRow{Collection: string(c), ID: id})
		}
	}
	return rows
}

func (r recordRow) record() model.Record {
	return model.Record{ID: r.ID, TripID: r.TripID, Data: r.Data}
}
