// Package session drives bounded study walks over flashcards and quiz
// questions as explicit state machines, independent of any transport.
package session

import (
	"encoding/json"
	"errors"
)

var (
	// ErrNoItems means the due/random set came back empty; a session is
	// never started with zero items.
	ErrNoItems = errors.New("no items available to start a session")

	// ErrNotStarted means the session has no bound item set yet.
	ErrNotStarted = errors.New("session has not been started")

	// ErrNotRevealed means answer was called on a flashcard whose answer
	// side is still hidden.
	ErrNotRevealed = errors.New("cannot record an answer before revealing the card")

	// ErrCompleted means the session has already walked past its last item.
	ErrCompleted = errors.New("session is already completed")

	// ErrAlreadyStarted means start was called twice on the same session;
	// a restart requires a fresh session object.
	ErrAlreadyStarted = errors.New("session already started, create a new one to restart")
)

// State is the lifecycle position of a study session.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its string form.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Progress is a point-in-time snapshot of a session's position and score.
type Progress struct {
	State State `json:"state"`
	Index int   `json:"index"`
	Total int   `json:"total"`
	Score int   `json:"score"`
}
