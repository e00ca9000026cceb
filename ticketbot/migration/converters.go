package migration

import (
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

func convertTicket(mt MongoTicket) *models.Ticket {
	ticket := &models.Ticket{
		GuildID:      mt.Guild,
		ChannelID:    mt.Channel,
		OwnerID:      mt.Opener,
		TicketNumber: int(mt.Number),
		Status:       convertStatus(mt.Status),
		Priority:     convertPriority(mt.Priority),
		ClaimedBy:    mt.ClaimedBy,
		Subject:      mt.Subject,
		Tags:         mt.Tags,
		CreatedAt:    mt.CreatedAt,
		ClaimedAt:    mt.ClaimedAt,
		ClosedAt:     mt.ClosedAt,
		ClosedBy:     mt.ClosedBy,
		CloseReason:  mt.CloseReason,
		UpdatedAt:    time.Now(),
	}

	ticket.LastActivityAt = mt.CreatedAt
	if mt.LastMessage != nil {
		ticket.LastActivityAt = *mt.LastMessage
	}
	if mt.Rating >= 1 && mt.Rating <= 5 {
		rating := int(mt.Rating)
		ticket.Rating = &rating
	}
	// The old bot had no distinct claimed status; infer it.
	if ticket.Status == models.TicketStatusOpen && ticket.ClaimedBy != "" {
		ticket.Status = models.TicketStatusClaimed
	}
	return ticket
}

func convertStatus(status string) models.TicketStatus {
	switch status {
	case "open":
		return models.TicketStatusOpen
	case "claimed":
		return models.TicketStatusClaimed
	case "archived":
		return models.TicketStatusArchived
	default:
		return models.TicketStatusClosed
	}
}

func convertPriority(priority int32) int {
	if priority < models.PriorityLow || priority > models.PriorityUrgent {
		return models.PriorityMedium
	}
	return int(priority)
}

func convertGuildConfig(mc MongoGuildConfig) *models.GuildConfig {
	cfg := models.NewGuildConfig(mc.Guild)
	cfg.StaffRoles = mc.StaffRoles
	cfg.TicketCategoryID = mc.Category
	cfg.LogChannelID = mc.LogChannel
	if mc.MaxTickets > 0 {
		cfg.MaxTicketsPerUser = int(mc.MaxTickets)
	}
	if mc.AutoClose > 0 {
		cfg.AutoCloseHours = int(mc.AutoClose)
	}
	return cfg
}

func convertBlacklistEntry(mb MongoBlacklistEntry) *models.BlacklistEntry {
	return &models.BlacklistEntry{
		GuildID:   mb.Guild,
		UserID:    mb.User,
		Reason:    mb.Reason,
		AddedBy:   mb.AddedBy,
		CreatedAt: mb.AddedAt,
	}
}

func convertArticle(ma MongoArticle) *models.KBArticle {
	return &models.KBArticle{
		GuildID:   ma.Guild,
		Title:     ma.Title,
		Content:   ma.Content,
		Keywords:  ma.Keywords,
		AuthorID:  ma.Author,
		Uses:      int(ma.Uses),
		CreatedAt: ma.CreatedAt,
		UpdatedAt: ma.CreatedAt,
	}
}
