package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/repository"
)

// RecordStore is the per-user record persistence used by SyncService.
type RecordStore interface {
	ListData(ctx context.Context, c model.Collection, userID string) ([]string, error)
	GetSettings(ctx context.Context, userID string) (*string, error)
	PutSnapshot(ctx context.Context, userID string, snap repository.Snapshot) (int, error)
	Delete(ctx context.Context, c model.Collection, userID string, ids []string) (int64, error)
	DeleteBlocksOfTrips(ctx context.Context, userID string, tripIDs []string) (int64, error)
}

// SyncService implements full pull, snapshot push and delete propagation.
type SyncService struct {
	records RecordStore
}

// NewSyncService creates a new SyncService.
func NewSyncService(records RecordStore) *SyncService {
	return &SyncService{records: records}
}

// Pull returns every record of userID. Collections are JSON arrays encoded as
// strings, in id order.
func (s *SyncService) Pull(ctx context.Context, userID string) (model.PullResponse, error) {
	encoded := make([]string, len(model.Collections))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range model.Collections {
		g.Go(func() error {
			data, err := s.records.ListData(gctx, c, userID)
			if err != nil {
				return fmt.Errorf("listing %s: %w", c, err)
			}
			encoded[i] = "[" + strings.Join(data, ",") + "]"
			return nil
		})
	}

	var settings *string
	g.Go(func() error {
		var err error
		settings, err = s.records.GetSettings(gctx, userID)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.PullResponse{}, err
	}

	resp := model.PullResponse{Success: true, Settings: settings}
	for i, c := range model.Collections {
		resp.SetCollection(c, encoded[i])
	}
	return resp, nil
}

// Push upserts the pushed snapshot. Records without an id (or blocks without
// a tripId) are skipped, as are blocks whose trip is unknown. The number of
// skipped records is reported back.
func (s *SyncService) Push(ctx context.Context, userID string, req model.PushRequest) (model.PushResponse, error) {
	snap := repository.Snapshot{Records: make(map[model.Collection][]model.Record)}

	var skipped int
	for _, c := range model.Collections {
		for _, raw := range req.Collection(c) {
			id, tripID, err := model.RecordKeys(c, raw)
			if err != nil {
				slog.Warn("skipping pushed record", "user_id", userID, "collection", c, "error", err)
				skipped++
				continue
			}
			snap.Records[c] = append(snap.Records[c], model.Record{
				ID:     id,
				TripID: tripID,
				Data:   compact(raw),
			})
		}
	}

	if settings := bytes.TrimSpace(req.Settings); len(settings) > 0 && !bytes.Equal(settings, []byte("null")) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(settings, &obj); err != nil || obj == nil {
			return model.PushResponse{}, newError(ErrValidation, "Settings must be a JSON object")
		}
		data := compact(settings)
		snap.Settings = &data
	}

	n, err := s.records.PutSnapshot(ctx, userID, snap)
	if err != nil {
		return model.PushResponse{}, err
	}
	return model.PushResponse{Success: true, Skipped: skipped + n}, nil
}

// Delete removes the listed ids of every collection. Deleting a trip also
// deletes its blocks. Each statement runs on its own; ids that do not exist
// are ignored, and failures are collected rather than stopping the batch.
func (s *SyncService) Delete(ctx context.Context, userID string, req model.DeleteRequest) error {
	var errs []error

	if trips := req.IDs(model.Trips); len(trips) > 0 {
		if _, err := s.records.DeleteBlocksOfTrips(ctx, userID, trips); err != nil {
			errs = append(errs, fmt.Errorf("deleting blocks of trips: %w", err))
		}
	}

	for _, c := range model.Collections {
		ids := req.IDs(c)
		if len(ids) == 0 {
			continue
		}
		n, err := s.records.Delete(ctx, c, userID, ids)
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", c, err))
			continue
		}
		slog.Debug("deleted records", "user_id", userID, "collection", c, "requested", len(ids), "deleted", n)
	}

	return errors.Join(errs...)
}

// compact strips insignificant whitespace so stored blobs join cleanly into
// arrays.
func compact(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
