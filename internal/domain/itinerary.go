// Package domain contains core domain types for the TripCraft editing service.
package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Activity is a single scheduled item within a day plan. The ID is generated
// when the activity is created and never changes afterwards.
type Activity struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	TimeSlot string  `json:"time_slot"`
	Duration string  `json:"duration"`
	Cost     float64 `json:"cost"`
}

// DayPlan holds the ordered activities and optional lodging for one day.
type DayPlan struct {
	Activities []Activity `json:"activities"`
	Hotel      string     `json:"hotel,omitempty"`
}

// Clone returns a deep copy of the day plan.
func (d *DayPlan) Clone() *DayPlan {
	if d == nil {
		return nil
	}
	cp := &DayPlan{Hotel: d.Hotel}
	if d.Activities != nil {
		cp.Activities = make([]Activity, len(d.Activities))
		copy(cp.Activities, d.Activities)
	}
	return cp
}

// Itinerary is the structured travel document being edited. Days are keyed
// "day_N" with a 1-based day number. The document is owned by the itinerary
// store and mutated only through the edit applier.
type Itinerary struct {
	Destination  string
	TotalBudget  *float64
	DefaultHotel string
	Days         map[string]*DayPlan
}

var dayKeyPattern = regexp.MustCompile(`^day_(\d+)$`)

// DayKey returns the stable document key for a 1-based day number.
func DayKey(n int) string {
	return fmt.Sprintf("day_%d", n)
}

// IsDayKey reports whether key names a day record.
func IsDayKey(key string) bool {
	return dayKeyPattern.MatchString(key)
}

// NewItinerary returns an empty itinerary document.
func NewItinerary() *Itinerary {
	return &Itinerary{Days: make(map[string]*DayPlan)}
}

// Day returns the plan stored under the given day number, or nil.
func (it *Itinerary) Day(n int) *DayPlan {
	if it == nil || it.Days == nil {
		return nil
	}
	return it.Days[DayKey(n)]
}

// EnsureDay returns the plan for the given day number, creating an empty
// record when the day is absent.
func (it *Itinerary) EnsureDay(n int) *DayPlan {
	if it.Days == nil {
		it.Days = make(map[string]*DayPlan)
	}
	key := DayKey(n)
	if it.Days[key] == nil {
		it.Days[key] = &DayPlan{}
	}
	return it.Days[key]
}

// Clone returns a structural deep copy of the itinerary. Callers that need a
// trustworthy before-snapshot rely on this being a full value copy rather
// than a shared reference.
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	cp := &Itinerary{
		Destination:  it.Destination,
		DefaultHotel: it.DefaultHotel,
		Days:         make(map[string]*DayPlan, len(it.Days)),
	}
	if it.TotalBudget != nil {
		v := *it.TotalBudget
		cp.TotalBudget = &v
	}
	for key, day := range it.Days {
		cp.Days[key] = day.Clone()
	}
	return cp
}

// TopLevel returns the document viewed as its top-level keys: every day_N
// entry plus the scalar fields that are present. Day values are not copied;
// the view is read-only.
func (it *Itinerary) TopLevel() map[string]any {
	view := make(map[string]any)
	if it == nil {
		return view
	}
	for key, day := range it.Days {
		view[key] = day
	}
	if it.Destination != "" {
		view["destination"] = it.Destination
	}
	if it.TotalBudget != nil {
		view["total_budget"] = *it.TotalBudget
	}
	if it.DefaultHotel != "" {
		view["default_hotel"] = it.DefaultHotel
	}
	return view
}

// MarshalJSON flattens the day map into top-level day_N keys so the stored
// document matches the shape the frontend and the NLP service consume.
func (it *Itinerary) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(it.Days)+3)
	for key, day := range it.Days {
		doc[key] = day
	}
	if it.Destination != "" {
		doc["destination"] = it.Destination
	}
	if it.TotalBudget != nil {
		doc["total_budget"] = *it.TotalBudget
	}
	if it.DefaultHotel != "" {
		doc["default_hotel"] = it.DefaultHotel
	}
	return json.Marshal(doc)
}

// UnmarshalJSON accepts the flattened document form produced by MarshalJSON.
func (it *Itinerary) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode itinerary document: %w", err)
	}

	*it = Itinerary{Days: make(map[string]*DayPlan)}
	for key, value := range raw {
		switch {
		case IsDayKey(key):
			var day DayPlan
			if err := json.Unmarshal(value, &day); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			it.Days[key] = &day
		case key == "destination":
			if err := json.Unmarshal(value, &it.Destination); err != nil {
				return fmt.Errorf("decode destination: %w", err)
			}
		case key == "total_budget":
			var budget float64
			if err := json.Unmarshal(value, &budget); err != nil {
				return fmt.Errorf("decode total_budget: %w", err)
			}
			it.TotalBudget = &budget
		case key == "default_hotel":
			if err := json.Unmarshal(value, &it.DefaultHotel); err != nil {
				return fmt.Errorf("decode default_hotel: %w", err)
			}
		}
	}
	return nil
}

// ItineraryRecord is the stored row wrapping an itinerary document with its
// ownership and trip metadata.
type ItineraryRecord struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id,omitempty"`
	Destination string     `json:"destination,omitempty"`
	Interests   string     `json:"interests,omitempty"`
	Dates       string     `json:"dates,omitempty"`
	Content     *Itinerary `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
