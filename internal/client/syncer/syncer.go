package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/foldr/foldr-go/internal/client/api"
	"github.com/foldr/foldr-go/internal/client/store"
	"github.com/foldr/foldr-go/internal/model"
)

// ErrNotLoggedIn is returned by operations that need a session token when
// none is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Remote is the server API the syncer talks to.
type Remote interface {
	Signup(ctx context.Context, email, password, inviteCode string) (api.Session, error)
	Login(ctx context.Context, email, password string) (api.Session, error)
	Pull(ctx context.Context, token string) (model.PullResponse, error)
	Push(ctx context.Context, token string, req model.PushRequest) (model.PushResponse, error)
	Delete(ctx context.Context, token string, req model.DeleteRequest) error
}

// Local is the on-device store the syncer mirrors into.
type Local interface {
	Put(ctx context.Context, c model.Collection, rec model.Record) error
	List(ctx context.Context, c model.Collection) ([]model.Record, error)
	Delete(ctx context.Context, c model.Collection, ids ...string) error
	DeleteTrip(ctx context.Context, tripID string) ([]string, error)
	ReplaceCollection(ctx context.Context, c model.Collection, recs []model.Record) error
	Settings(ctx context.Context) (*string, error)
	SetSettings(ctx context.Context, data *string) error
	Session(ctx context.Context) (store.Session, error)
	SaveSession(ctx context.Context, sess store.Session) error
	ClearSession(ctx context.Context) error
	AddTombstones(ctx context.Context, req model.DeleteRequest) error
	Tombstones(ctx context.Context) (model.DeleteRequest, error)
	RemoveTombstones(ctx context.Context, req model.DeleteRequest) error
}

// PullResult reports what a full sync applied.
type PullResult struct {
	Applied []model.Collection
	Skipped map[model.Collection]error
}

// Status summarizes the local state for display.
type Status struct {
	LoggedIn bool
	Email    string
	Counts   map[model.Collection]int
	Pending  int
}

// Syncer moves data between the local store and the server.
type Syncer struct {
	remote Remote
	local  Local
}

func New(remote Remote, local Local) *Syncer {
	return &Syncer{remote: remote, local: local}
}

// Signup creates an account and stores the resulting session.
func (s *Syncer) Signup(ctx context.Context, email, password, inviteCode string) (store.Session, error) {
	sess, err := s.remote.Signup(ctx, email, password, inviteCode)
	if err != nil {
		return store.Session{}, err
	}
	return s.saveSession(ctx, email, sess)
}

// Login exchanges credentials for a token and stores the session.
func (s *Syncer) Login(ctx context.Context, email, password string) (store.Session, error) {
	sess, err := s.remote.Login(ctx, email, password)
	if err != nil {
		return store.Session{}, err
	}
	return s.saveSession(ctx, email, sess)
}

func (s *Syncer) saveSession(ctx context.Context, email string, sess api.Session) (store.Session, error) {
	local := store.Session{
		UserID: sess.UserID,
		Email:  strings.ToLower(strings.TrimSpace(email)),
		Token:  sess.Token,
	}
	if err := s.local.SaveSession(ctx, local); err != nil {
		return store.Session{}, fmt.Errorf("saving session: %w", err)
	}
	return local, nil
}

// Logout forgets the stored session. Local records are kept.
func (s *Syncer) Logout(ctx context.Context) error {
	return s.local.ClearSession(ctx)
}

func (s *Syncer) token(ctx context.Context) (string, error) {
	sess, err := s.local.Session(ctx)
	if errors.Is(err, store.ErrNoSession) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Save stores v as a record of collection c. v must marshal to a JSON object
// carrying an id (and a tripId for blocks).
func (s *Syncer) Save(ctx context.Context, c model.Collection, v any) (model.Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return model.Record{}, err
	}
	id, tripID, err := model.RecordKeys(c, raw)
	if err != nil {
		return model.Record{}, err
	}
	rec := model.Record{ID: id, TripID: tripID, Data: string(raw)}
	if err := s.local.Put(ctx, c, rec); err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

// FullSync replaces every local collection and the settings record with the
// server's snapshot. Queued deletions are sent first; ids still queued
// afterwards are left out of the snapshot so they are not brought back.
// Collections that fail to decode are left as they were. When the pull itself
// fails nothing is touched.
func (s *Syncer) FullSync(ctx context.Context) (PullResult, error) {
	token, err := s.token(ctx)
	if err != nil {
		return PullResult{}, err
	}
	if err := s.FlushDeletes(ctx); err != nil {
		slog.Warn("queued deletions not sent, filtering them from the pull", "error", err)
	}
	pending, err := s.local.Tombstones(ctx)
	if err != nil {
		return PullResult{}, err
	}
	resp, err := s.remote.Pull(ctx, token)
	if err != nil {
		return PullResult{}, err
	}

	decoded := make([][]model.Record, len(model.Collections))
	errs := make([]error, len(model.Collections))
	var g errgroup.Group
	for i, c := range model.Collections {
		g.Go(func() error {
			decoded[i], errs[i] = decodeCollection(c, resp.Collection(c))
			return nil
		})
	}
	g.Wait()

	result := PullResult{Skipped: map[model.Collection]error{}}
	for i, c := range model.Collections {
		if errs[i] != nil {
			slog.Warn("skipping collection", "collection", c, "error", errs[i])
			result.Skipped[c] = errs[i]
			continue
		}
		if err := s.local.ReplaceCollection(ctx, c, withoutPending(c, decoded[i], pending)); err != nil {
			return result, fmt.Errorf("replacing %s: %w", c, err)
		}
		result.Applied = append(result.Applied, c)
	}

	if err := s.local.SetSettings(ctx, resp.Settings); err != nil {
		return result, fmt.Errorf("replacing settings: %w", err)
	}
	slog.Info("full sync complete", "applied", len(result.Applied), "skipped", len(result.Skipped))
	return result, nil
}

// withoutPending drops records queued for deletion, and blocks of queued
// trips, from recs.
func withoutPending(c model.Collection, recs []model.Record, pending model.DeleteRequest) []model.Record {
	gone := make(map[string]bool)
	for _, id := range pending.IDs(c) {
		gone[id] = true
	}
	goneTrips := make(map[string]bool)
	if c == model.Blocks {
		for _, id := range pending.IDs(model.Trips) {
			goneTrips[id] = true
		}
	}
	if len(gone) == 0 && len(goneTrips) == 0 {
		return recs
	}

	out := make([]model.Record, 0, len(recs))
	for _, rec := range recs {
		if gone[rec.ID] || goneTrips[rec.TripID] {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func decodeCollection(c model.Collection, encoded string) ([]model.Record, error) {
	if encoded == "" {
		return nil, fmt.Errorf("%s: missing from response", c)
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		return nil, fmt.Errorf("%s: %w", c, err)
	}
	recs := make([]model.Record, 0, len(items))
	for _, raw := range items {
		id, tripID, err := model.RecordKeys(c, raw)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		recs = append(recs, model.Record{ID: id, TripID: tripID, Data: buf.String()})
	}
	return recs, nil
}

// PushDeletes sends req to the server right away.
func (s *Syncer) PushDeletes(ctx context.Context, req model.DeleteRequest) error {
	if req.Empty() {
		return nil
	}
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	return s.remote.Delete(ctx, token, req)
}

// Delete removes a record locally and on the server. Deleting a trip also
// removes its blocks. When the server cannot be reached the deletion is
// queued and the returned error wraps the cause.
func (s *Syncer) Delete(ctx context.Context, c model.Collection, id string) error {
	var req model.DeleteRequest
	req.Add(c, id)

	if c == model.Trips {
		blocks, err := s.local.DeleteTrip(ctx, id)
		if err != nil {
			return err
		}
		slog.Debug("trip deleted locally", "trip_id", id, "blocks", len(blocks))
	} else if err := s.local.Delete(ctx, c, id); err != nil {
		return err
	}

	if err := s.PushDeletes(ctx, req); err != nil {
		if qerr := s.local.AddTombstones(ctx, req); qerr != nil {
			return errors.Join(err, qerr)
		}
		slog.Info("deletion queued", "collection", c, "id", id, "error", err)
		return fmt.Errorf("delete queued: %w", err)
	}
	return nil
}

// FlushDeletes sends queued deletions and clears them once the server has
// accepted them.
func (s *Syncer) FlushDeletes(ctx context.Context) error {
	req, err := s.local.Tombstones(ctx)
	if err != nil {
		return err
	}
	if req.Empty() {
		return nil
	}
	if err := s.PushDeletes(ctx, req); err != nil {
		return err
	}
	return s.local.RemoveTombstones(ctx, req)
}

// Push uploads the full local snapshot, leaving out records queued for
// deletion.
func (s *Syncer) Push(ctx context.Context) (model.PushResponse, error) {
	token, err := s.token(ctx)
	if err != nil {
		return model.PushResponse{}, err
	}
	pending, err := s.local.Tombstones(ctx)
	if err != nil {
		return model.PushResponse{}, err
	}

	var req model.PushRequest
	for _, c := range model.Collections {
		recs, err := s.local.List(ctx, c)
		if err != nil {
			return model.PushResponse{}, err
		}
		recs = withoutPending(c, recs, pending)
		items := make([]json.RawMessage, 0, len(recs))
		for _, rec := range recs {
			items = append(items, json.RawMessage(rec.Data))
		}
		req.SetCollection(c, items)
	}
	settings, err := s.local.Settings(ctx)
	if err != nil {
		return model.PushResponse{}, err
	}
	if settings != nil {
		req.Settings = json.RawMessage(*settings)
	}

	resp, err := s.remote.Push(ctx, token, req)
	if err != nil {
		return model.PushResponse{}, err
	}
	if resp.Skipped > 0 {
		slog.Warn("server skipped records", "count", resp.Skipped)
	}
	return resp, nil
}

// SyncNow flushes queued deletions, pushes local state and then pulls the
// server snapshot back.
func (s *Syncer) SyncNow(ctx context.Context) (PullResult, error) {
	if err := s.FlushDeletes(ctx); err != nil {
		return PullResult{}, fmt.Errorf("flushing deletes: %w", err)
	}
	if _, err := s.Push(ctx); err != nil {
		return PullResult{}, fmt.Errorf("pushing: %w", err)
	}
	return s.FullSync(ctx)
}

// Status reports the session and local record counts.
func (s *Syncer) Status(ctx context.Context) (Status, error) {
	st := Status{Counts: map[model.Collection]int{}}

	sess, err := s.local.Session(ctx)
	switch {
	case err == nil:
		st.LoggedIn = true
		st.Email = sess.Email
	case !errors.Is(err, store.ErrNoSession):
		return st, err
	}

	for _, c := range model.Collections {
		recs, err := s.local.List(ctx, c)
		if err != nil {
			return st, err
		}
		st.Counts[c] = len(recs)
	}

	pending, err := s.local.Tombstones(ctx)
	if err != nil {
		return st, err
	}
	for _, c := range model.Collections {
		st.Pending += len(pending.IDs(c))
	}
	return st, nil
}
