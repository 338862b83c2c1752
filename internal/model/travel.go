package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar date format used by trips and blocks.
const DateLayout = "2006-01-02"

// TripStatus is derived from a trip's dates, never stored.
type TripStatus string

const (
	TripUpcoming TripStatus = "upcoming"
	TripActive   TripStatus = "active"
	TripPast     TripStatus = "past"
)

// BlockType tags the payload carried by a Block.
type BlockType string

const (
	BlockFlight     BlockType = "flight"
	BlockHotel      BlockType = "hotel"
	BlockLayover    BlockType = "layover"
	BlockWork       BlockType = "work"
	BlockTransport  BlockType = "transport"
	BlockScreenshot BlockType = "screenshot"
	BlockNote       BlockType = "note"
)

// Trip is the top-level aggregate; blocks belong to a trip.
type Trip struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Destination string   `json:"destination,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Color       string   `json:"color,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// NewTrip returns a trip with a fresh id and client-side timestamps.
func NewTrip(name, startDate, endDate string, now time.Time) (Trip, error) {
	if name == "" {
		return Trip{}, fmt.Errorf("trip name is required")
	}
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return Trip{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return Trip{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return Trip{}, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	stamp := Timestamp(now)
	return Trip{
		ID:        uuid.NewString(),
		Name:      name,
		StartDate: startDate,
		EndDate:   endDate,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}, nil
}

// Status derives the trip status for the calendar day of now in the trip's
// timezone (UTC when unset or unknown). Malformed dates count as upcoming.
func (t Trip) Status(now time.Time) TripStatus {
	loc := time.UTC
	if t.Timezone != "" {
		if l, err := time.LoadLocation(t.Timezone); err == nil {
			loc = l
		}
	}
	today := now.In(loc).Format(DateLayout)

	// DateLayout strings compare chronologically.
	switch {
	case t.StartDate == "" || today < t.StartDate:
		return TripUpcoming
	case t.EndDate != "" && today > t.EndDate:
		return TripPast
	default:
		return TripActive
	}
}

// Block is a typed entry of a trip's itinerary. Fields beyond the common
// header are type specific and optional.
type Block struct {
	ID        string    `json:"id"`
	TripID    string    `json:"tripId"`
	Type      BlockType `json:"type"`
	Date      string    `json:"date,omitempty"`
	Title     string    `json:"title,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`

	// flight, layover, transport
	Carrier       string `json:"carrier,omitempty"`
	Number        string `json:"number,omitempty"`
	From          string `json:"from,omitempty"`
	To            string `json:"to,omitempty"`
	DepartureTime string `json:"departureTime,omitempty"`
	ArrivalTime   string `json:"arrivalTime,omitempty"`

	// hotel, work
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	CheckIn  string `json:"checkIn,omitempty"`
	CheckOut string `json:"checkOut,omitempty"`

	// screenshot
	ImageURL string `json:"imageUrl,omitempty"`
	OCRText  string `json:"ocrText,omitempty"`
}

// Todo may be linked to several trips.
type Todo struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	TripIDs   []string `json:"tripIds,omitempty"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

type PackingItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Packed    bool   `json:"packed"`
	Category  string `json:"category,omitempty"`
	TripID    string `json:"tripId,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Expense struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
	Category    string  `json:"category,omitempty"`
	Date        string  `json:"date,omitempty"`
	TripID      string  `json:"tripId,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// Timestamp formats t the way clients stamp createdAt/updatedAt.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
