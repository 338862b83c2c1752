package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/foldr/foldr-go/internal/model"
	"github.com/foldr/foldr-go/internal/repository"
)

// memRecords mimics RecordRepository for one process.
type memRecords struct {
	mu       sync.Mutex
	rows     map[string]map[model.Collection]map[string]model.Record
	settings map[string]string
	failOn   model.Collection
}

func newMemRecords() *memRecords {
	return &memRecords{
		rows:     make(map[string]map[model.Collection]map[string]model.Record),
		settings: make(map[string]string),
	}
}

func (m *memRecords) table(userID string, c model.Collection) map[string]model.Record {
	if m.rows[userID] == nil {
		m.rows[userID] = make(map[model.Collection]map[string]model.Record)
	}
	if m.rows[userID][c] == nil {
		m.rows[userID][c] = make(map[string]model.Record)
	}
	return m.rows[userID][c]
}

func (m *memRecords) ListData(_ context.Context, c model.Collection, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c == m.failOn {
		return nil, errors.New("list failed")
	}
	t := m.table(userID, c)
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data := []string{}
	for _, id := range ids {
		data = append(data, t[id].Data)
	}
	return data, nil
}

func (m *memRecords) GetSettings(_ context.Context, userID string) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memRecords) PutSnapshot(_ context.Context, userID string, snap repository.Snapshot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var skipped int
	trips := m.table(userID, model.Trips)
	for _, c := range model.Collections {
		for _, rec := range snap.Records[c] {
			if c == model.Blocks {
				if _, ok := trips[rec.TripID]; !ok {
					skipped++
					continue
				}
			}
			m.table(userID, c)[rec.ID] = rec
		}
	}
	if snap.Settings != nil {
		m.settings[userID] = *snap.Settings
	}
	return skipped, nil
}

func (m *memRecords) Delete(_ context.Context, c model.Collection, userID string, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c == m.failOn {
		return 0, errors.New("delete failed")
	}
	var n int64
	t := m.table(userID, c)
	for _, id := range ids {
		if _, ok := t[id]; ok {
			delete(t, id)
			n++
		}
	}
	return n, nil
}

func (m *memRecords) DeleteBlocksOfTrips(_ context.Context, userID string, tripIDs []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	blocks := m.table(userID, model.Blocks)
	for _, tripID := range tripIDs {
		for id, b := range blocks {
			if b.TripID == tripID {
				delete(blocks, id)
				n++
			}
		}
	}
	return n, nil
}

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestPull_Empty(t *testing.T) {
	svc := NewSyncService(newMemRecords())

	resp, err := svc.Pull(context.Background(), "u1")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	for _, c := range model.Collections {
		if got := resp.Collection(c); got != "[]" {
			t.Errorf("%s = %q, want []", c, got)
		}
	}
	if resp.Settings != nil {
		t.Errorf("settings = %q, want nil", *resp.Settings)
	}
}

func TestPushThenPull(t *testing.T) {
	svc := NewSyncService(newMemRecords())
	ctx := context.Background()

	push := model.PushRequest{
		Trips:    raws(`{"id":"t1", "name":"Lisbon"}`),
		Blocks:   raws(`{"id":"b1","tripId":"t1"}`, `{"id":"b2","tripId":"nope"}`, `{"tripId":"t1"}`),
		Todos:    raws(`{"id":"x2"}`, `{"id":"x1"}`, `"not an object"`),
		Settings: json.RawMessage(`{"currency": "EUR"}`),
	}
	resp, err := svc.Push(ctx, "u1", push)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	// One block without id, one todo that is not an object, one orphan block.
	if resp.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", resp.Skipped)
	}

	pull, err := svc.Pull(ctx, "u1")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if pull.Trips != `[{"id":"t1","name":"Lisbon"}]` {
		t.Errorf("trips = %s", pull.Trips)
	}
	if pull.Blocks != `[{"id":"b1","tripId":"t1"}]` {
		t.Errorf("blocks = %s", pull.Blocks)
	}
	if pull.Todos != `[{"id":"x1"},{"id":"x2"}]` {
		t.Errorf("todos = %s", pull.Todos)
	}
	if pull.Settings == nil || *pull.Settings != `{"currency":"EUR"}` {
		t.Errorf("settings = %v", pull.Settings)
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(pull.Todos), &decoded); err != nil {
		t.Errorf("todos not a JSON array: %v", err)
	}

	other, err := svc.Pull(ctx, "u2")
	if err != nil {
		t.Fatalf("pull u2: %v", err)
	}
	if other.Trips != "[]" {
		t.Errorf("u2 sees u1's trips: %s", other.Trips)
	}
}

func TestPush_OverlongIDSkipped(t *testing.T) {
	svc := NewSyncService(newMemRecords())
	ctx := context.Background()

	long := strings.Repeat("x", model.MaxIDLength+1)
	resp, err := svc.Push(ctx, "u1", model.PushRequest{
		Todos: raws(`{"id":"`+long+`"}`, `{"id":"ok"}`),
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if resp.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", resp.Skipped)
	}

	pull, err := svc.Pull(ctx, "u1")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if pull.Todos != `[{"id":"ok"}]` {
		t.Errorf("todos = %s", pull.Todos)
	}
}

func TestPush_SettingsMustBeObject(t *testing.T) {
	svc := NewSyncService(newMemRecords())

	for _, s := range []string{`[1]`, `"x"`, `42`} {
		_, err := svc.Push(context.Background(), "u1", model.PushRequest{Settings: json.RawMessage(s)})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("settings %s: got %v, want ErrValidation", s, err)
		}
	}

	if _, err := svc.Push(context.Background(), "u1", model.PushRequest{Settings: json.RawMessage(`null`)}); err != nil {
		t.Errorf("null settings: %v", err)
	}
}

func TestPull_Failure(t *testing.T) {
	store := newMemRecords()
	store.failOn = model.Expenses
	svc := NewSyncService(store)

	if _, err := svc.Pull(context.Background(), "u1"); err == nil {
		t.Error("expected error")
	}
}

func TestDelete_TripCascadesToBlocks(t *testing.T) {
	store := newMemRecords()
	svc := NewSyncService(store)
	ctx := context.Background()

	_, err := svc.Push(ctx, "u1", model.PushRequest{
		Trips:  raws(`{"id":"t1"}`, `{"id":"t2"}`),
		Blocks: raws(`{"id":"b1","tripId":"t1"}`, `{"id":"b2","tripId":"t1"}`, `{"id":"b3","tripId":"t2"}`),
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if err := svc.Delete(ctx, "u1", model.DeleteRequest{Trips: []string{"t1"}}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	pull, _ := svc.Pull(ctx, "u1")
	if pull.Trips != `[{"id":"t2"}]` {
		t.Errorf("trips = %s", pull.Trips)
	}
	if pull.Blocks != `[{"id":"b3","tripId":"t2"}]` {
		t.Errorf("blocks = %s", pull.Blocks)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	svc := NewSyncService(newMemRecords())
	ctx := context.Background()

	if _, err := svc.Push(ctx, "u1", model.PushRequest{Todos: raws(`{"id":"x1"}`)}); err != nil {
		t.Fatalf("push: %v", err)
	}

	req := model.DeleteRequest{Todos: []string{"x1"}, Expenses: []string{"never-existed"}}
	for i := 0; i < 2; i++ {
		if err := svc.Delete(ctx, "u1", req); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}
	if err := svc.Delete(ctx, "u1", model.DeleteRequest{}); err != nil {
		t.Errorf("empty delete: %v", err)
	}
}

func TestDelete_BestEffort(t *testing.T) {
	store := newMemRecords()
	store.failOn = model.Todos
	svc := NewSyncService(store)
	ctx := context.Background()

	if _, err := svc.Push(ctx, "u1", model.PushRequest{Expenses: raws(`{"id":"e1"}`)}); err != nil {
		t.Fatalf("push: %v", err)
	}

	err := svc.Delete(ctx, "u1", model.DeleteRequest{Todos: []string{"x1"}, Expenses: []string{"e1"}})
	if err == nil {
		t.Fatal("expected the todo failure to be reported")
	}
	if n := len(store.table("u1", model.Expenses)); n != 0 {
		t.Errorf("expenses left = %d, want 0", n)
	}
}
