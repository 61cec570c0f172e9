package game

import "errors"

// Category groups engine failures. Every failure aborts the whole action.
type Category string

const (
	CategoryUnauthorized Category = "unauthorized"
	CategoryAdmission    Category = "admission"
	CategoryFunding      Category = "funding"
	CategoryStage        Category = "stage"
	CategoryCheating     Category = "cheating"
	CategoryConfig       Category = "config"
	CategoryInvalid      Category = "invalid"
	CategoryInternal     Category = "internal"
)

// Error is a categorised engine failure. The exported Err* values are the
// sentinels; handlers wrap them with context using fmt.Errorf and %w.
type Error struct {
	Category Category
	msg      string
}

func (e *Error) Error() string { return e.msg }

func newError(c Category, msg string) *Error {
	return &Error{Category: c, msg: msg}
}

var (
	ErrNotOwner = newError(CategoryUnauthorized, "caller is not the owner")

	ErrAlreadyInLobby    = newError(CategoryAdmission, "player is already in the lobby")
	ErrNotInLobby        = newError(CategoryAdmission, "player is not in the lobby")
	ErrLobbyFull         = newError(CategoryAdmission, "lobby is full")
	ErrGameInProgress    = newError(CategoryAdmission, "game is in progress")
	ErrGameNotInProgress = newError(CategoryAdmission, "game is not in progress")

	ErrInsufficientBet = newError(CategoryFunding, "not enough value for the bet")
	ErrAmountOverflow  = newError(CategoryFunding, "amount overflow")
	ErrSettlement      = newError(CategoryFunding, "settlement failed")

	ErrNotEligibleToMove = newError(CategoryStage, "player cannot make a move right now")
	ErrNotEnoughPlayers  = newError(CategoryStage, "not enough players in the lobby to start")
	ErrRevealStage       = newError(CategoryStage, "moves are closed, it is reveal time")
	ErrNotRevealStage    = newError(CategoryStage, "it is not the reveal stage")
	ErrAlreadyRevealed   = newError(CategoryStage, "player has already revealed")
	ErrNotInRevealStage  = newError(CategoryStage, "player has no move to reveal")

	ErrCheating = newError(CategoryCheating, "revealed move does not match the commitment")

	ErrTimeoutTooLow      = newError(CategoryConfig, "timeout is too low")
	ErrPlayersLimitTooLow = newError(CategoryConfig, "players count limit is too low")

	ErrUnknownMove         = newError(CategoryInvalid, "unknown move")
	ErrMalformedCommitment = newError(CategoryInvalid, "malformed commitment")
	ErrUnknownAction       = newError(CategoryInvalid, "unknown action")

	ErrInternal    = newError(CategoryInternal, "internal invariant violated")
	ErrPotMismatch = newError(CategoryInternal, "pot does not match the game account")
)

// CategoryOf returns the category of err. Errors that did not originate in
// the engine are reported as internal.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}
