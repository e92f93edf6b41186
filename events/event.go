package events

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Type names an event. Values are part of the wire shape and must not change.
type Type string

const (
	QuestCompleted     Type = "quest_completed"
	RequirementUpdated Type = "requirement_updated"
	ContributerAdded   Type = "contributer_added"
	ContributerRemoved Type = "contributer_removed"
	StepVolunteerAdded Type = "step_volunteer_added"
	CheckinConfirmed   Type = "checkin_confirmed"

	AchievementAwarded Type = "achievement_awarded"
)

// Event is an immutable notification. Events are never persisted or replayed.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	QuestID   uint                   `json:"questId,omitempty"`
	UserID    uint                   `json:"userId,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// New builds an event stamped with a fresh id and the current time.
func New(t Type, questID, userID uint, data map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		QuestID:   questID,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Predicate selects the events a subscriber wants.
type Predicate func(Event) bool

// OfType matches any of the given types.
func OfType(types ...Type) Predicate {
	set := make(map[Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(ev Event) bool {
		_, ok := set[ev.Type]
		return ok
	}
}

// All matches every event.
func All(Event) bool { return true }

// String returns Data[key] as a string, or "" when absent.
func (e Event) String(key string) string {
	v, ok := e.Data[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Uint reads Data[key] as an unsigned id. Payloads built in-process carry
// native integers; payloads that went through JSON carry float64.
func (e Event) Uint(key string) (uint, bool) {
	switch v := e.Data[key].(type) {
	case uint:
		return v, true
	case uint64:
		return uint(v), true
	case uint32:
		return uint(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint(v), true
	case *uint:
		if v == nil {
			return 0, false
		}
		return *v, true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	}
	return 0, false
}

// Int reads Data[key] as a signed integer, returning 0 when absent.
func (e Event) Int(key string) int {
	switch v := e.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
