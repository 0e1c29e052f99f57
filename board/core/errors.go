// ABOUTME: Sentinel errors for board operations.
// ABOUTME: Callers match with errors.Is; detail is added by wrapping with %w.
package core

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrInvalidCard indicates a create request is missing required fields.
	ErrInvalidCard = errors.New("invalid card")

	// ErrEditRejected indicates an edit request was refused before any work started.
	ErrEditRejected = errors.New("edit rejected")

	// ErrEditFailed indicates the edit collaborator returned an error.
	ErrEditFailed = errors.New("edit failed")

	// ErrCaptureUnavailable indicates the capture source produced no payload.
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrIllegalTransition indicates an update tried to move a card along an edge the lifecycle forbids.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")

	// ErrPointerBusy indicates the pointer is already driving an interaction.
	ErrPointerBusy = errors.New("pointer already active")

	// ErrCardBusy indicates another pointer is already dragging the card.
	ErrCardBusy = errors.New("card held by another pointer")

	// ErrLoopClosed indicates the session loop has shut down.
	ErrLoopClosed = errors.New("session loop closed")
)

// CardNotFoundError indicates the referenced card doesn't exist.
type CardNotFoundError struct {
	CardID ulid.ULID
}

func (e *CardNotFoundError) Error() string {
	return fmt.Sprintf("card not found: %s", e.CardID)
}
