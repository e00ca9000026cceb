// Package config holds display constants shared across commands and
// components.
package config

const (
	SuccessColor = 0x57f287
	ErrorColor   = 0xed4245
	WarningColor = 0xfee75c
	InfoColor    = 0x5865f2
	NeutralColor = 0x2b2d31
)

// TicketsPerPage is the page size of the paginated ticket list.
const TicketsPerPage = 8

// PriorityLabels maps priority levels to their display names.
var PriorityLabels = map[int]string{
	1: "🟢 Low",
	2: "🟡 Medium",
	3: "🟠 High",
	4: "🔴 Urgent",
}
