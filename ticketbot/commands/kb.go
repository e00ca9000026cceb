package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/config"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

var KB = discord.SlashCommandCreate{
	Name:        "kb",
	Description: "📚 Knowledge base",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "search",
			Description: "Search the knowledge base",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "query",
					Description: "What to look for",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Add an article (staff only)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "title",
					Description: "Article title",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "content",
					Description: "Article body",
					Required:    true,
				},
				discord.ApplicationCommandOptionString{
					Name:        "keywords",
					Description: "Comma-separated search keywords",
					Required:    false,
				},
			},
		},
	},
}

var Suggest = discord.SlashCommandCreate{
	Name:        "suggest",
	Description: "🤖 Draft a reply suggestion for this ticket (staff only)",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "question",
			Description: "The user's question to answer",
			Required:    true,
		},
	},
}

func KBHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "This command only works inside a server.")
		}
		guildID := e.GuildID().String()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		switch *data.SubCommandName {
		case "search":
			return kbSearch(ctx, b, e, guildID, data.String("query"))
		case "add":
			return kbAdd(ctx, b, e, guildID, data)
		}
		return nil
	}
}

func kbSearch(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, guildID, query string) error {
	articles, err := b.KBSearch.Find(ctx, guildID, query)
	if err != nil {
		return replyError(e, "Knowledge-base search failed, please try again.")
	}
	if len(articles) == 0 {
		return replyInfo(e, fmt.Sprintf("No articles match `%s`.", query))
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("📚 Knowledge Base").
		SetColor(config.InfoColor)
	for _, article := range articles {
		content := article.Content
		if len(content) > 200 {
			content = content[:200] + "…"
		}
		embed.AddField(article.Title, content, false)
		b.KBSearch.Use(ctx, article)
	}
	return e.CreateMessage(discord.MessageCreate{Embeds: []discord.Embed{embed.Build()}})
}

func kbAdd(ctx context.Context, b *ticketbot.Bot, e *handler.CommandEvent, guildID string, data discord.SlashCommandInteractionData) error {
	cfg, err := b.GuildConfigs.GetOrCreate(ctx, guildID)
	if err != nil {
		return replyError(e, "Failed to load the server configuration.")
	}
	actor := actorFromEvent(e)
	if !actor.IsAdmin && !cfg.HasStaffRole(actor.RoleIDs) {
		return replyError(e, "Only staff can add knowledge-base articles.")
	}

	var keywords []string
	if raw := data.String("keywords"); raw != "" {
		for _, keyword := range strings.Split(raw, ",") {
			if keyword = strings.TrimSpace(keyword); keyword != "" {
				keywords = append(keywords, keyword)
			}
		}
	}

	article := &models.KBArticle{
		GuildID:   guildID,
		Title:     data.String("title"),
		Content:   data.String("content"),
		Keywords:  keywords,
		AuthorID:  actor.UserID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := b.KBRepo.Create(ctx, article); err != nil {
		return replyError(e, "Failed to save the article, please try again.")
	}
	return replySuccess(e, fmt.Sprintf("Article **%s** added to the knowledge base.", article.Title))
}

func SuggestHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "This command only works inside a server.")
		}
		guildID := e.GuildID().String()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg, err := b.GuildConfigs.GetOrCreate(ctx, guildID)
		if err != nil {
			return replyError(e, "Failed to load the server configuration.")
		}
		actor := actorFromEvent(e)
		if !actor.IsAdmin && !cfg.HasStaffRole(actor.RoleIDs) {
			return replyError(e, "Only staff can request reply suggestions.")
		}
		if !cfg.AIEnabled || b.Suggester == nil {
			return replyError(e, "Reply suggestions are not enabled on this server.")
		}

		question := e.SlashCommandInteractionData().String("question")

		if err := e.DeferCreateMessage(true); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		// Ground the draft on matching knowledge-base articles.
		articles, err := b.KBSearch.Find(ctx, guildID, question)
		if err != nil {
			articles = nil
		}

		suggestion, err := b.Suggester.Suggest(ctx, cfg, question, articles)
		if err != nil {
			return updateOutcome(e, err, "")
		}
		_, uerr := e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "🤖 Suggested reply",
				Description: suggestion,
				Color:       config.InfoColor,
			}},
		})
		return uerr
	}
}
