package model

import (
	"encoding/json"
	"fmt"
)

// Collection names a user-partitioned record set. The values match the JSON
// keys of the sync endpoints.
type Collection string

const (
	Trips        Collection = "trips"
	Blocks       Collection = "blocks"
	Todos        Collection = "todos"
	PackingItems Collection = "packingItems"
	Expenses     Collection = "expenses"
)

// Collections lists every record collection. Trips come before blocks so
// that pushes can check block ownership against trips of the same snapshot.
var Collections = []Collection{Trips, Blocks, Todos, PackingItems, Expenses}

// ParseCollection validates a collection name.
func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", s)
}

// Record is one stored row: an opaque JSON object keyed by its client
// generated id. TripID is only set for blocks.
type Record struct {
	ID     string
	TripID string
	Data   string
}

// PullResponse is the body of GET /api/sync/pull. Each collection is a JSON
// array encoded as a string; Settings is a JSON object string or nil.
type PullResponse struct {
	Success      bool    `json:"success"`
	Trips        string  `json:"trips"`
	Blocks       string  `json:"blocks"`
	Todos        string  `json:"todos"`
	PackingItems string  `json:"packingItems"`
	Expenses     string  `json:"expenses"`
	Settings     *string `json:"settings"`
}

// Collection returns the encoded array for c.
func (p PullResponse) Collection(c Collection) string {
	switch c {
	case Trips:
		return p.Trips
	case Blocks:
		return p.Blocks
	case Todos:
		return p.Todos
	case PackingItems:
		return p.PackingItems
	case Expenses:
		return p.Expenses
	}
	return ""
}

// SetCollection stores the encoded array for c.
func (p *PullResponse) SetCollection(c Collection, encoded string) {
	switch c {
	case Trips:
		p.Trips = encoded
	case Blocks:
		p.Blocks = encoded
	case Todos:
		p.Todos = encoded
	case PackingItems:
		p.PackingItems = encoded
	case Expenses:
		p.Expenses = encoded
	}
}

// PushRequest is the body of POST /api/sync/push: the full local snapshot.
type PushRequest struct {
	Trips        []json.RawMessage `json:"trips"`
	Blocks       []json.RawMessage `json:"blocks"`
	Todos        []json.RawMessage `json:"todos"`
	PackingItems []json.RawMessage `json:"packingItems"`
	Expenses     []json.RawMessage `json:"expenses"`
	Settings     json.RawMessage   `json:"settings,omitempty"`
}

// Collection returns the pushed objects of c.
func (p PushRequest) Collection(c Collection) []json.RawMessage {
	switch c {
	case Trips:
		return p.Trips
	case Blocks:
		return p.Blocks
	case Todos:
		return p.Todos
	case PackingItems:
		return p.PackingItems
	case Expenses:
		return p.Expenses
	}
	return nil
}

// SetCollection replaces the pushed objects of c.
func (p *PushRequest) SetCollection(c Collection, items []json.RawMessage) {
	switch c {
	case Trips:
		p.Trips = items
	case Blocks:
		p.Blocks = items
	case Todos:
		p.Todos = items
	case PackingItems:
		p.PackingItems = items
	case Expenses:
		p.Expenses = items
	}
}

// PushResponse reports how many pushed records were rejected.
type PushResponse struct {
	Success bool `json:"success"`
	Skipped int  `json:"skipped"`
}

// DeleteRequest is the body of POST /api/sync/delete: ids per collection.
type DeleteRequest struct {
	Trips        []string `json:"trips,omitempty"`
	Blocks       []string `json:"blocks,omitempty"`
	Todos        []string `json:"todos,omitempty"`
	PackingItems []string `json:"packingItems,omitempty"`
	Expenses     []string `json:"expenses,omitempty"`
}

// IDs returns the ids to delete from c.
func (d DeleteRequest) IDs(c Collection) []string {
	switch c {
	case Trips:
		return d.Trips
	case Blocks:
		return d.Blocks
	case Todos:
		return d.Todos
	case PackingItems:
		return d.PackingItems
	case Expenses:
		return d.Expenses
	}
	return nil
}

// Add appends ids to c.
func (d *DeleteRequest) Add(c Collection, ids ...string) {
	switch c {
	case Trips:
		d.Trips = append(d.Trips, ids...)
	case Blocks:
		d.Blocks = append(d.Blocks, ids...)
	case Todos:
		d.Todos = append(d.Todos, ids...)
	case PackingItems:
		d.PackingItems = append(d.PackingItems, ids...)
	case Expenses:
		d.Expenses = append(d.Expenses, ids...)
	}
}

// Empty reports whether no id is listed.
func (d DeleteRequest) Empty() bool {
	for _, c := range Collections {
		if len(d.IDs(c)) > 0 {
			return false
		}
	}
	return true
}

// MaxIDLength is the longest record id or tripId the remote schema stores.
const MaxIDLength = 64

// RecordKeys extracts the id and, for blocks, the tripId of a raw JSON
// object. It fails when the payload is not an object or the keys are missing
// or longer than MaxIDLength.
func RecordKeys(c Collection, raw []byte) (id, tripID string, err error) {
	var keys struct {
		ID     *string `json:"id"`
		TripID *string `json:"tripId"`
	}
	if err := json.Unmarshal(raw, &keys); err != nil {
		return "", "", fmt.Errorf("%s record is not a JSON object: %w", c, err)
	}
	if keys.ID == nil || *keys.ID == "" {
		return "", "", fmt.Errorf("%s record has no id", c)
	}
	if len(*keys.ID) > MaxIDLength {
		return "", "", fmt.Errorf("%s record id is longer than %d bytes", c, MaxIDLength)
	}
	if c == Blocks {
		if keys.TripID == nil || *keys.TripID == "" {
			return "", "", fmt.Errorf("block %s has no tripId", *keys.ID)
		}
		if len(*keys.TripID) > MaxIDLength {
			return "", "", fmt.Errorf("block %s tripId is longer than %d bytes", *keys.ID, MaxIDLength)
		}
		tripID = *keys.TripID
	}
	return *keys.ID, tripID, nil
}
