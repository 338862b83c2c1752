package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/foldr/foldr-go/internal/model"
)

// tables maps collections to their tables. Only names from this map are ever
// interpolated into SQL.
var tables = map[model.Collection]string{
	model.Trips:        "trips",
	model.Blocks:       "blocks",
	model.Todos:        "todos",
	model.PackingItems: "packing_items",
	model.Expenses:     "expenses",
}

func tableFor(c model.Collection) (string, error) {
	t, ok := tables[c]
	if !ok {
		return "", fmt.Errorf("unknown collection %q", c)
	}
	return t, nil
}

// Snapshot is a pushed set of records plus the optional settings blob.
type Snapshot struct {
	Records  map[model.Collection][]model.Record
	Settings *string
}

// RecordRepository stores user records as opaque JSON rows keyed by
// (user_id, id).
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// ListData returns the data column of every row of c owned by userID.
func (r *RecordRepository) ListData(ctx context.Context, c model.Collection, userID string) ([]string, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT data FROM %s WHERE user_id = ? ORDER BY id`, table))

	data := []string{}
	if err := r.db.SelectContext(ctx, &data, query, userID); err != nil {
		return nil, err
	}
	return data, nil
}

// GetSettings returns the settings blob of userID, or nil when none is stored.
func (r *RecordRepository) GetSettings(ctx context.Context, userID string) (*string, error) {
	query := r.db.Rebind(`SELECT data FROM settings WHERE user_id = ?`)

	var data string
	if err := r.db.GetContext(ctx, &data, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &data, nil
}

// PutSnapshot upserts every record of snap in one transaction. Blocks whose
// trip is neither part of the snapshot nor already stored for the user are
// skipped and counted.
func (r *RecordRepository) PutSnapshot(ctx context.Context, userID string, snap Snapshot) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	pushedTrips := make(map[string]bool, len(snap.Records[model.Trips]))
	for _, t := range snap.Records[model.Trips] {
		pushedTrips[t.ID] = true
	}

	var skipped int
	for _, c := range model.Collections {
		for _, rec := range snap.Records[c] {
			if c == model.Blocks && !pushedTrips[rec.TripID] {
				ok, err := r.tripExists(ctx, tx, userID, rec.TripID)
				if err != nil {
					return 0, err
				}
				if !ok {
					slog.Warn("skipping block: unknown trip", "user_id", userID, "block_id", rec.ID, "trip_id", rec.TripID)
					skipped++
					continue
				}
			}
			if err := r.upsertTx(ctx, tx, c, userID, rec); err != nil {
				return 0, fmt.Errorf("upsert %s %s: %w", c, rec.ID, err)
			}
		}
	}

	if snap.Settings != nil {
		if err := r.upsertSettingsTx(ctx, tx, userID, *snap.Settings); err != nil {
			return 0, fmt.Errorf("upsert settings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return skipped, nil
}

// Delete removes the rows of c with the given ids. Missing ids are not an
// error.
func (r *RecordRepository) Delete(ctx context.Context, c model.Collection, userID string, ids []string) (int64, error) {
	table, err := tableFor(c)
	if err != nil {
		return 0, err
	}
	return r.deleteIn(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = ? AND id IN (?)`, table), userID, ids)
}

// DeleteBlocksOfTrips removes every block attached to one of tripIDs.
func (r *RecordRepository) DeleteBlocksOfTrips(ctx context.Context, userID string, tripIDs []string) (int64, error) {
	return r.deleteIn(ctx, `DELETE FROM blocks WHERE user_id = ? AND trip_id IN (?)`, userID, tripIDs)
}

func (r *RecordRepository) deleteIn(ctx context.Context, query, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(query, userID, ids)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RecordRepository) tripExists(ctx context.Context, tx *sqlx.Tx, userID, tripID string) (bool, error) {
	query := tx.Rebind(`SELECT COUNT(*) FROM trips WHERE user_id = ? AND id = ?`)

	var n int
	if err := tx.GetContext(ctx, &n, query, userID, tripID); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RecordRepository) upsertTx(ctx context.Context, tx *sqlx.Tx, c model.Collection, userID string, rec model.Record) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	var query string
	args := []any{userID, rec.ID}
	switch {
	case c == model.Blocks && isPostgres(r.db):
		query = `INSERT INTO blocks (user_id, id, trip_id, data) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, id) DO UPDATE SET trip_id = EXCLUDED.trip_id, data = EXCLUDED.data, updated_at = NOW()`
		args = append(args, rec.TripID)
	case c == model.Blocks:
		query = `INSERT INTO blocks (user_id, id, trip_id, data) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE trip_id = VALUES(trip_id), data = VALUES(data)`
		args = append(args, rec.TripID)
	case isPostgres(r.db):
		query = fmt.Sprintf(`INSERT INTO %s (user_id, id, data) VALUES (?, ?, ?)
			ON CONFLICT (user_id, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, table)
	default:
		query = fmt.Sprintf(`INSERT INTO %s (user_id, id, data) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE data = VALUES(data)`, table)
	}
	args = append(args, rec.Data)

	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

func (r *RecordRepository) upsertSettingsTx(ctx context.Context, tx *sqlx.Tx, userID, data string) error {
	query := `INSERT INTO settings (user_id, data) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data)`
	if isPostgres(r.db) {
		query = `INSERT INTO settings (user_id, data) VALUES (?, ?)
			ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(query), userID, data)
	return err
}
