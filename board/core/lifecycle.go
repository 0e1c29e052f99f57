// ABOUTME: Card lifecycle states and the legal transitions between them.
// ABOUTME: developing -> idle on develop, idle -> editing on request, editing -> idle on response.
package core

// Status is the lifecycle state of a card.
type Status string

const (
	StatusDeveloping Status = "developing"
	StatusIdle       Status = "idle"
	StatusEditing    Status = "editing"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDeveloping, StatusIdle, StatusEditing:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle edge.
// Staying in the same state is not a transition and is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return next.Valid()
	}
	switch s {
	case StatusDeveloping:
		return next == StatusIdle
	case StatusIdle:
		return next == StatusEditing
	case StatusEditing:
		return next == StatusIdle
	}
	return false
}
