package edit

import (
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/tripcraft/tripcraft/internal/domain"
)

// Applier is the document-mutation state machine. Apply never mutates its
// input and never returns an error: commands it has no mutation for degrade
// to a no-op, because on a conversational surface a wrong guess must not
// crash the session. Unmatched command shapes are counted and logged so the
// leniency stays observable.
type Applier struct {
	logger *slog.Logger
	noops  atomic.Int64

	// newID is swapped in tests to make generated activity ids predictable.
	newID func() string
}

// NewApplier creates an applier. A nil logger falls back to slog.Default.
func NewApplier(logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{logger: logger, newID: newActivityID}
}

// NoopCount reports how many commands fell through the dispatch table. A
// rising count under normal traffic points at an oracle emitting command
// shapes this engine does not recognize.
func (a *Applier) NoopCount() int64 {
	return a.noops.Load()
}

func newActivityID() string {
	u := uuid.New()
	return "act_" + hex.EncodeToString(u[:])[:8]
}

// dispatchKey pairs the command fields the state machine switches on.
type dispatchKey struct {
	Action domain.Action
	Target domain.Target
}

// Apply runs one command against an itinerary and returns the resulting
// document as a new value. The input is cloned up front so callers can keep
// using it as a trustworthy before-snapshot.
func (a *Applier) Apply(it *domain.Itinerary, cmd domain.EditCommand) *domain.Itinerary {
	updated := it.Clone()
	if updated == nil {
		updated = domain.NewItinerary()
	}

	switch (dispatchKey{cmd.Action, cmd.Target}) {
	case dispatchKey{domain.ActionAdd, domain.TargetActivity}:
		a.addActivity(updated, cmd)
	case dispatchKey{domain.ActionRemove, domain.TargetActivity}:
		a.removeActivity(updated, cmd)
	case dispatchKey{domain.ActionUpdate, domain.TargetBudget}:
		a.updateBudget(updated, cmd)
	case dispatchKey{domain.ActionUpdate, domain.TargetHotel}:
		a.updateHotel(updated, cmd)
	case dispatchKey{domain.ActionUpdate, domain.TargetTime}:
		a.updateTime(updated, cmd)

	case dispatchKey{domain.ActionMove, domain.TargetActivity},
		dispatchKey{domain.ActionUpdate, domain.TargetTransport},
		dispatchKey{domain.ActionCombine, domain.TargetDays},
		dispatchKey{domain.ActionSplit, domain.TargetDay}:
		// Recognized commands with no mutation defined in this engine.
		// The surrounding orchestration decides what to do with them.
		a.logger.Debug("edit command has no mutation", "action", cmd.Action, "target", cmd.Target)

	case dispatchKey{domain.ActionConfirm, domain.TargetNone},
		dispatchKey{domain.ActionCancel, domain.TargetNone},
		dispatchKey{domain.ActionClarify, domain.TargetNone},
		dispatchKey{domain.ActionUnknown, domain.TargetNone}:
		// Control-flow commands never touch the document.

	default:
		a.noops.Add(1)
		a.logger.Warn("unhandled edit command shape",
			"action", cmd.Action, "target", cmd.Target)
	}

	return updated
}

// addActivity appends a fresh activity to the addressed day, creating the
// day record when absent. Missing fields get defaults. Adding twice with
// identical parameters produces two distinct activities; add is not
// idempotent.
func (a *Applier) addActivity(it *domain.Itinerary, cmd domain.EditCommand) {
	day := 1
	if cmd.Day != nil {
		day = *cmd.Day
	}
	plan := it.EnsureDay(day)

	activity := domain.Activity{
		ID:       a.newID(),
		Name:     orDefault(cmd.POI, "New Activity"),
		TimeSlot: orDefault(cmd.TimeSlot, "morning"),
		Duration: orDefault(cmd.Duration, "2 hours"),
		Cost:     0,
	}
	plan.Activities = append(plan.Activities, activity)
}

// removeActivity drops every activity in the addressed day whose id equals
// ActivityID or whose name equals POI. The inclusive OR means a name
// collision can remove an unintended activity; that ambiguity is part of
// the contract, not something to fix silently. Without a day number the
// command does nothing.
func (a *Applier) removeActivity(it *domain.Itinerary, cmd domain.EditCommand) {
	if cmd.Day == nil {
		return
	}
	plan := it.Day(*cmd.Day)
	if plan == nil {
		return
	}
	plan.Activities = lo.Filter(plan.Activities, func(act domain.Activity, _ int) bool {
		byID := cmd.ActivityID != "" && act.ID == cmd.ActivityID
		byName := cmd.POI != "" && act.Name == cmd.POI
		return !byID && !byName
	})
}

// updateBudget sets the document budget when an amount was extracted and
// leaves the existing value untouched otherwise.
func (a *Applier) updateBudget(it *domain.Itinerary, cmd domain.EditCommand) {
	if cmd.Amount == nil {
		return
	}
	amount := *cmd.Amount
	it.TotalBudget = &amount
}

// updateHotel sets the addressed day's hotel (creating the day record when
// absent), or the document-level default hotel when no day was given.
func (a *Applier) updateHotel(it *domain.Itinerary, cmd domain.EditCommand) {
	if cmd.Day != nil {
		it.EnsureDay(*cmd.Day).Hotel = cmd.HotelName
		return
	}
	it.DefaultHotel = cmd.HotelName
}

// updateTime rewrites the time slot of the first activity in the addressed
// day whose name equals POI. Requires both a day and a new time; stops at
// the first match.
func (a *Applier) updateTime(it *domain.Itinerary, cmd domain.EditCommand) {
	if cmd.Day == nil || cmd.NewTime == "" {
		return
	}
	plan := it.Day(*cmd.Day)
	if plan == nil {
		return
	}
	for i := range plan.Activities {
		if plan.Activities[i].Name == cmd.POI {
			plan.Activities[i].TimeSlot = cmd.NewTime
			break
		}
	}
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
