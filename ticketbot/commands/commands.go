package commands

import (
	"github.com/disgoorg/disgo/discord"
)

// Commands is the full slash-command surface registered on startup.
var Commands = []discord.ApplicationCommandCreate{
	Ticket,
	Claim,
	Unclaim,
	Close,
	CancelClose,
	Reopen,
	Archive,
	Transfer,
	Merge,
	Priority,
	Tag,
	Watch,
	Rate,
	Tickets,
	SLAStatus,
	KB,
	Suggest,
	Remind,
	Transcript,
	TicketAdmin,
}
