// Package edit implements the intent-to-edit translation and
// itinerary-mutation engine: lowering parsed intents into canonical
// commands, routing them by confidence, applying them to itinerary
// documents, and keeping a reversible ledger of every applied change.
package edit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tripcraft/tripcraft/internal/domain"
)

var (
	digitRun   = regexp.MustCompile(`\d+`)
	decimalRun = regexp.MustCompile(`\d+\.?\d*`)
)

// Build lowers a parsed intent and its entities into a canonical EditCommand.
// It is total: every intent value, including unrecognized ones, yields a
// well-formed command. Unrecognized intents map to ActionUnknown rather than
// failing, so a bad oracle guess can never break the pipeline.
func Build(intent string, entities map[string]any) domain.EditCommand {
	switch intent {
	case "add_activity":
		return domain.EditCommand{
			Action:   domain.ActionAdd,
			Target:   domain.TargetActivity,
			POI:      entityString(entities["poi"]),
			Day:      parseDay(entities["day"]),
			TimeSlot: entityString(entities["time_slot"]),
			Duration: entityString(entities["duration"]),
		}
	case "remove_activity":
		return domain.EditCommand{
			Action:     domain.ActionRemove,
			Target:     domain.TargetActivity,
			POI:        entityString(entities["poi"]),
			Day:        parseDay(entities["day"]),
			TimeSlot:   entityString(entities["time_slot"]),
			ActivityID: entityString(entities["activity_id"]),
		}
	case "move_activity":
		return domain.EditCommand{
			Action:     domain.ActionMove,
			Target:     domain.TargetActivity,
			POI:        entityString(entities["poi"]),
			ActivityID: entityString(entities["activity_id"]),
			FromDay:    parseDay(entities["day"]),
			ToDay:      parseDay(listElement(entities["day"], 1)),
			FromTime:   entityString(entities["time_slot"]),
			ToTime:     entityString(listElement(entities["time_slot"], 1)),
		}
	case "change_time":
		return domain.EditCommand{
			Action:     domain.ActionUpdate,
			Target:     domain.TargetTime,
			POI:        entityString(entities["poi"]),
			ActivityID: entityString(entities["activity_id"]),
			Day:        parseDay(entities["day"]),
			NewTime:    entityString(entities["time_slot"]),
		}
	case "change_hotel":
		return domain.EditCommand{
			Action:    domain.ActionUpdate,
			Target:    domain.TargetHotel,
			Day:       parseDay(entities["day"]),
			HotelName: entityString(entities["hotel_name"]),
		}
	case "change_transport":
		return domain.EditCommand{
			Action:        domain.ActionUpdate,
			Target:        domain.TargetTransport,
			Day:           parseDay(entities["day"]),
			TransportMode: entityString(entities["transport_mode"]),
		}
	case "update_cost":
		return domain.EditCommand{
			Action: domain.ActionUpdate,
			Target: domain.TargetBudget,
			Amount: parseAmount(entities["amount"]),
		}
	case "combine_days":
		return domain.EditCommand{
			Action: domain.ActionCombine,
			Target: domain.TargetDays,
			Days:   parseDayList(entities["day"]),
		}
	case "split_day":
		return domain.EditCommand{
			Action: domain.ActionSplit,
			Target: domain.TargetDay,
			Day:    parseDay(entities["day"]),
		}
	case "confirm":
		return domain.EditCommand{Action: domain.ActionConfirm}
	case "cancel":
		return domain.EditCommand{Action: domain.ActionCancel}
	case "clarify":
		return domain.EditCommand{Action: domain.ActionClarify}
	}
	return domain.EditCommand{Action: domain.ActionUnknown}
}

// Preview renders a deterministic, human-readable summary of what the intent
// would do. It always returns a non-empty string, substituting placeholder
// nouns when entities are missing.
func Preview(intent string, entities map[string]any) string {
	switch intent {
	case "add_activity":
		poi := entityStringOr(entities["poi"], "activity")
		where := "itinerary"
		if day := entityString(entities["day"]); day != "" {
			where = "day " + day
		}
		if slot := entityString(entities["time_slot"]); slot != "" {
			return fmt.Sprintf("Add %s to %s in the %s", poi, where, slot)
		}
		return fmt.Sprintf("Add %s to %s", poi, where)
	case "remove_activity":
		poi := entityStringOr(entities["poi"], "activity")
		if day := entityString(entities["day"]); day != "" {
			return fmt.Sprintf("Remove %s from day %s", poi, day)
		}
		return fmt.Sprintf("Remove %s", poi)
	case "move_activity":
		return fmt.Sprintf("Move %s to a different time/day", entityStringOr(entities["poi"], "activity"))
	case "change_time":
		poi := entityStringOr(entities["poi"], "activity")
		return fmt.Sprintf("Change %s to %s", poi, entityStringOr(entities["time_slot"], "new time"))
	case "change_hotel":
		return fmt.Sprintf("Change accommodation to %s", entityStringOr(entities["hotel_name"], "new hotel"))
	case "change_transport":
		return fmt.Sprintf("Change transport to %s", entityStringOr(entities["transport_mode"], "new mode"))
	case "update_cost":
		return fmt.Sprintf("Update budget to %s", entityStringOr(entities["amount"], "amount"))
	case "combine_days":
		return "Combine multiple days"
	case "split_day":
		return fmt.Sprintf("Split %s into multiple parts", entityStringOr(entities["day"], "day"))
	}
	return "Process your request"
}

// parseDay extracts a 1-based day number from an entity value. Integers pass
// through; strings yield their first digit run. Anything else, including a
// digitless string like "day two", yields nil.
func parseDay(v any) *int {
	switch value := v.(type) {
	case nil:
		return nil
	case int:
		n := value
		return &n
	case float64:
		n := int(value)
		return &n
	case string:
		if m := digitRun.FindString(value); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				return &n
			}
		}
	}
	return nil
}

// parseDayList accepts a scalar or a list of day references.
func parseDayList(v any) []int {
	if v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		items = []any{v}
	}
	var days []int
	for _, item := range items {
		if n := parseDay(item); n != nil {
			days = append(days, *n)
		}
	}
	return days
}

// parseAmount extracts a monetary amount. Currency symbols and thousands
// separators are stripped before the first decimal run is parsed; an
// unparseable value yields nil, which downstream appliers treat as "leave
// unchanged".
func parseAmount(v any) *float64 {
	switch value := v.(type) {
	case nil:
		return nil
	case int:
		f := float64(value)
		return &f
	case float64:
		f := value
		return &f
	case string:
		cleaned := strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(value)
		if m := decimalRun.FindString(cleaned); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// listElement returns element i of a list-valued entity, or nil for scalars
// and out-of-range indexes.
func listElement(v any, i int) any {
	items, ok := v.([]any)
	if !ok || i >= len(items) {
		return nil
	}
	return items[i]
}

// entityString renders an entity value as a string. Lists yield their first
// element; missing values yield "".
func entityString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []any:
		if len(value) == 0 {
			return ""
		}
		return entityString(value[0])
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func entityStringOr(v any, fallback string) string {
	if s := entityString(v); s != "" {
		return s
	}
	return fallback
}
