// Package changes diffs the current record set against the previous
// one and emits typed change events. It only ever sees the rank-1 and
// rank-2 sets: a transition that was never the most recent one is not
// reported: the question answered here is "what changed since last
// run", not full history replay.
//
// Each policy is an independent pure pass over (current, previous);
// Diff combines them with ordered set subtraction so a key completed
// in this cycle is never also signalled as ongoing.
package changes

import (
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/courtwatch/flatten"
)

// Type classifies a change event.
type Type string

const (
	// TypeStateCompleted marks a null -> non-null transition of the
	// monitored field between previous and current.
	TypeStateCompleted Type = "state_completed"
	// TypeNewChild marks a child identifier present under a parent in
	// current but absent in previous.
	TypeNewChild Type = "new_child"
	// TypeStateOngoing marks a current row matching the ongoing
	// predicate, unless the same key completed this cycle.
	TypeStateOngoing Type = "state_ongoing"
)

// Event is one detected difference between two versions of an entity.
// Ephemeral: computed per diff invocation, never persisted.
type Event struct {
	Key                string         `json:"entity_key"`
	Type               Type           `json:"change_type"`
	ChildID            string         `json:"child_id,omitempty"`
	CurrentFields      map[string]any `json:"current_fields"`
	PreviousFields     map[string]any `json:"previous_fields,omitempty"`
	CurrentCapturedAt  time.Time      `json:"current_captured_at"`
	PreviousCapturedAt *time.Time     `json:"previous_captured_at,omitempty"`
}

// Policies selects which change-detection passes run. Zero values
// disable a pass.
type Policies struct {
	// CompletedField is the monitored field for state_completed.
	CompletedField string
	// Ongoing is the structural predicate for state_ongoing.
	Ongoing func(flatten.Record) bool
	// NewChildren enables child set-difference per parent key.
	NewChildren bool
}

// Diff runs the configured policies over the current and previous
// record sets and returns the combined event sequence, deterministic
// for identical inputs.
func Diff(current, previous []flatten.Record, p Policies) []Event {
	prevByKey := make(map[string]flatten.Record, len(previous))
	for _, r := range previous {
		prevByKey[r.Key] = r
	}

	var events []Event

	completed := map[string]bool{}
	if p.CompletedField != "" {
		for _, e := range stateCompleted(current, prevByKey, p.CompletedField) {
			completed[e.Key] = true
			events = append(events, e)
		}
	}
	if p.NewChildren {
		events = append(events, newChildren(current, previous)...)
	}
	if p.Ongoing != nil {
		events = append(events, stateOngoing(current, prevByKey, p.Ongoing, completed)...)
	}

	sortEvents(events)
	return events
}

// stateCompleted emits one event per key whose monitored field is null
// in previous and non-null in current. A key with no previous version
// emits nothing: a populated field on first observation is not a
// transition.
func stateCompleted(current []flatten.Record, prevByKey map[string]flatten.Record, field string) []Event {
	var events []Event
	for _, cur := range current {
		prev, ok := prevByKey[cur.Key]
		if !ok {
			continue
		}
		if prev.IsNull(field) && !cur.IsNull(field) {
			events = append(events, event(TypeStateCompleted, cur, &prev))
		}
	}
	return events
}

// newChildren emits one event per child identifier present under a
// parent in current but absent in previous. Parents with no previous
// version emit nothing (no baseline, no diff); consumers detect
// first-seen parents themselves.
func newChildren(current, previous []flatten.Record) []Event {
	prevChildren := make(map[string]map[string]bool)
	for _, r := range previous {
		if r.Parent == "" {
			continue
		}
		if prevChildren[r.Parent] == nil {
			prevChildren[r.Parent] = make(map[string]bool)
		}
		prevChildren[r.Parent][childID(r)] = true
	}

	var events []Event
	for _, cur := range current {
		if cur.Parent == "" {
			continue
		}
		baseline, ok := prevChildren[cur.Parent]
		if !ok {
			continue
		}
		id := childID(cur)
		if baseline[id] {
			continue
		}
		e := event(TypeNewChild, cur, nil)
		e.Key = cur.Parent
		e.ChildID = id
		events = append(events, e)
	}
	return events
}

// stateOngoing emits one event per current row matching the predicate,
// excluding keys already completed in the same cycle.
func stateOngoing(current []flatten.Record, prevByKey map[string]flatten.Record, pred func(flatten.Record) bool, completed map[string]bool) []Event {
	var events []Event
	for _, cur := range current {
		if completed[cur.Key] || !pred(cur) {
			continue
		}
		var prev *flatten.Record
		if p, ok := prevByKey[cur.Key]; ok {
			prev = &p
		}
		events = append(events, event(TypeStateOngoing, cur, prev))
	}
	return events
}

func event(t Type, cur flatten.Record, prev *flatten.Record) Event {
	e := Event{
		Key:               cur.Key,
		Type:              t,
		CurrentFields:     cur.Fields,
		CurrentCapturedAt: cur.CapturedAt,
	}
	if prev != nil {
		e.PreviousFields = prev.Fields
		at := prev.CapturedAt
		e.PreviousCapturedAt = &at
	}
	return e
}

// childID is the child's own identifier: the key with the parent
// prefix stripped.
func childID(r flatten.Record) string {
	return strings.TrimPrefix(r.Key, r.Parent+"/")
}

var typeOrder = map[Type]int{TypeStateCompleted: 0, TypeNewChild: 1, TypeStateOngoing: 2}

func sortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if typeOrder[events[i].Type] != typeOrder[events[j].Type] {
			return typeOrder[events[i].Type] < typeOrder[events[j].Type]
		}
		if events[i].Key != events[j].Key {
			return events[i].Key < events[j].Key
		}
		return events[i].ChildID < events[j].ChildID
	})
}
