package services

import (
	"errors"
)

// Expected business outcomes are sentinel errors so handlers can map
// them to distinct responses; anything else bubbling out of a service
// is a store failure that left no state behind and is safe to retry.
var (
	ErrValidation           = errors.New("validation_error")
	ErrTournamentNotFound   = errors.New("tournament_not_found")
	ErrTournamentInactive   = errors.New("tournament_inactive")
	ErrTournamentFull       = errors.New("tournament_full")
	ErrRegistrationNotFound = errors.New("registration_not_found")
	ErrUnauthorized         = errors.New("unauthorized")
)
