package bracket

import "errors"

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("state conflict")
	ErrNotFound    = errors.New("not found")
	ErrConcurrency = errors.New("concurrent modification")
)

var (
	ErrTournamentNotFound  = wrap(ErrNotFound, "tournament not found")
	ErrMatchNotFound       = wrap(ErrNotFound, "match not found")
	ErrParticipantNotFound = wrap(ErrNotFound, "participant not found")

	ErrNotEnoughParticipants = wrap(ErrValidation, "not enough participants")
	ErrAlreadyRegistered     = wrap(ErrValidation, "player is already registered")
	ErrSeedTaken             = wrap(ErrValidation, "seed is already taken")
	ErrWinnerNotInMatch      = wrap(ErrValidation, "winner is not part of this match")
	ErrInvalidScore          = wrap(ErrValidation, "invalid score")
	ErrUnsupportedFormat     = wrap(ErrValidation, "operation not supported for this format")

	ErrTournamentNotActive = wrap(ErrConflict, "tournament not active")
	ErrRegistrationClosed  = wrap(ErrConflict, "tournament registration is closed")
	ErrTournamentFull      = wrap(ErrConflict, "tournament is full")
	ErrMatchNotReady       = wrap(ErrConflict, "match is waiting for players")
	ErrMatchCompleted      = wrap(ErrConflict, "match already completed with a different winner")
	ErrRoundNotComplete    = wrap(ErrConflict, "current round still has unfinished matches")
)

type kindError struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Kind reports which error kind err belongs to, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrConcurrency} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
