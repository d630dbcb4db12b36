package edit

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"

	"github.com/tripcraft/tripcraft/internal/domain"
)

// DiffEntry describes one top-level key that differs between two snapshots.
// Value carries the added/removed value; Before/After carry both sides of a
// modification.
type DiffEntry struct {
	Key    string `json:"key"`
	Value  any    `json:"value,omitempty"`
	Before any    `json:"before,omitempty"`
	After  any    `json:"after,omitempty"`
	Reason string `json:"reason"`
}

// Delta is a structural delta between two itinerary snapshots, computed over
// top-level document keys only. Day containers are compared as whole values,
// not recursively. Entry order within each bucket is unspecified.
type Delta struct {
	Added    []DiffEntry `json:"added"`
	Removed  []DiffEntry `json:"removed"`
	Modified []DiffEntry `json:"modified"`
}

// IsEmpty reports whether the delta records no changes.
func (d Delta) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Diff computes the delta between two itinerary snapshots. Keys present only
// in after are added, keys present only in before are removed, keys present
// in both with deeply unequal values are modified.
func Diff(before, after *domain.Itinerary) Delta {
	beforeView := before.TopLevel()
	afterView := after.TopLevel()

	delta := Delta{
		Added:    []DiffEntry{},
		Removed:  []DiffEntry{},
		Modified: []DiffEntry{},
	}

	for _, key := range lo.Union(lo.Keys(beforeView), lo.Keys(afterView)) {
		beforeValue, inBefore := beforeView[key]
		afterValue, inAfter := afterView[key]

		switch {
		case !inBefore:
			delta.Added = append(delta.Added, DiffEntry{
				Key:    key,
				Value:  afterValue,
				Reason: fmt.Sprintf("%s was added", describeKey(key)),
			})
		case !inAfter:
			delta.Removed = append(delta.Removed, DiffEntry{
				Key:    key,
				Value:  beforeValue,
				Reason: fmt.Sprintf("%s was removed", describeKey(key)),
			})
		case !reflect.DeepEqual(beforeValue, afterValue):
			delta.Modified = append(delta.Modified, DiffEntry{
				Key:    key,
				Before: beforeValue,
				After:  afterValue,
				Reason: fmt.Sprintf("%s was changed", describeKey(key)),
			})
		}
	}

	return delta
}

// describeKey turns a document key into a human-readable noun phrase for
// reason strings.
func describeKey(key string) string {
	if domain.IsDayKey(key) {
		return "day " + strings.TrimPrefix(key, "day_")
	}
	switch key {
	case "total_budget":
		return "the total budget"
	case "default_hotel":
		return "the default hotel"
	case "destination":
		return "the destination"
	}
	return key
}
