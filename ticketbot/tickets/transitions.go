package tickets

import "github.com/ticketeer-bot/ticketeer/ticketbot/database/models"

// validTransitions is the single source of truth for the status state
// machine. Every status-changing operation validates its snapshot against
// it before attempting the conditional update; the update's WHERE clause
// then settles concurrent races.
//
//	open     -> claimed, closed, archived
//	claimed  -> open (unclaim), closed, archived
//	closed   -> open (reopen), archived
//	archived -> open (reopen)
var validTransitions = map[models.TicketStatus][]models.TicketStatus{
	models.TicketStatusOpen:     {models.TicketStatusClaimed, models.TicketStatusClosed, models.TicketStatusArchived},
	models.TicketStatusClaimed:  {models.TicketStatusOpen, models.TicketStatusClosed, models.TicketStatusArchived},
	models.TicketStatusClosed:   {models.TicketStatusOpen, models.TicketStatusArchived},
	models.TicketStatusArchived: {models.TicketStatusOpen},
}

func CanTransition(from, to models.TicketStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a TransitionError when the move is illegal.
func ValidateTransition(from, to models.TicketStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}
