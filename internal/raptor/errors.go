package raptor

import "errors"

var (
	// ErrRoundOutOfRange is a caller bug: the round was never computed.
	ErrRoundOutOfRange = errors.New("raptor: round out of range")
	// ErrNoJourney means the stop was not reached by that round.
	ErrNoJourney = errors.New("raptor: no journey")
	// ErrCyclicJourney means a predecessor chain loops; the state is corrupt.
	ErrCyclicJourney = errors.New("raptor: cyclic journey")

	ErrInvalidRounds    = errors.New("raptor: rounds must be at least 1")
	ErrInvalidWalkSpeed = errors.New("raptor: walk speed must be positive")
	ErrUnknownCriterion = errors.New("raptor: unknown criterion")
	ErrNotRun           = errors.New("raptor: search has not run")
)
