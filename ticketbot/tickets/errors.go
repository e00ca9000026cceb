package tickets

import (
	"errors"
	"fmt"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

// Every operation reports failures as one of these conditions so the command
// layer can answer with a specific message instead of a stack trace.
var (
	ErrNotFound          = errors.New("no ticket is associated with this channel")
	ErrInvalidTransition = errors.New("ticket status does not allow this operation")
	ErrPermissionDenied  = errors.New("you do not have permission to do that")
	ErrLimitExceeded     = errors.New("limit exceeded")
	ErrBlacklisted       = errors.New("you are blacklisted from opening tickets")
	ErrExternalFailure   = errors.New("external service call failed")

	ErrTicketAlreadyOpen  = errors.New("you already have an open ticket")
	ErrNoScheduledClose   = errors.New("no scheduled close is pending")
	ErrAlreadyRated       = errors.New("this ticket has already been rated")
	ErrTagExists          = errors.New("tag is already set on this ticket")
	ErrTagMissing         = errors.New("tag is not set on this ticket")
	ErrWatcherExists      = errors.New("user is already watching this ticket")
	ErrWatcherMissing     = errors.New("user is not watching this ticket")
	ErrBotWatcher         = errors.New("bots cannot watch tickets")
	ErrMergeTargetClosed  = errors.New("cannot merge into a closed ticket")
	ErrInvalidPriority    = errors.New("priority must be between 1 and 4")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrInvalidCloseDelay  = errors.New("close delay must be between 1 and 60 minutes")
)

// AlreadyClaimedError reports the losing side of a claim race, carrying the
// staff member that won.
type AlreadyClaimedError struct {
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("ticket is already claimed by <@%s>", e.ClaimedBy)
}

func (e *AlreadyClaimedError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// TransitionError reports a status precondition failure with both sides of
// the attempted transition.
type TransitionError struct {
	From models.TicketStatus
	To   models.TicketStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move ticket from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
