// Package kb provides fuzzy search over a guild's knowledge-base articles.
package kb

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
)

const maxResults = 5

// articleItems implements fuzzy.Source over title plus keywords.
type articleItems []*models.KBArticle

func (items articleItems) Len() int { return len(items) }

func (items articleItems) String(i int) string {
	a := items[i]
	if len(a.Keywords) == 0 {
		return strings.ToLower(a.Title)
	}
	return strings.ToLower(a.Title + " " + strings.Join(a.Keywords, " "))
}

type Search struct {
	articles repositories.KBRepository
}

func NewSearch(articles repositories.KBRepository) *Search {
	return &Search{articles: articles}
}

// Find returns the best-matching articles for a query, most relevant first.
// An empty query returns the most-used articles instead.
func (s *Search) Find(ctx context.Context, guildID, query string) ([]*models.KBArticle, error) {
	articles, err := s.articles.ListByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}

	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		if len(articles) > maxResults {
			articles = articles[:maxResults]
		}
		return articles, nil
	}

	matches := fuzzy.FindFrom(query, articleItems(articles))
	results := make([]*models.KBArticle, 0, maxResults)
	for _, match := range matches {
		results = append(results, articles[match.Index])
		if len(results) == maxResults {
			break
		}
	}
	return results, nil
}

// Use records that an article was shown in a ticket.
func (s *Search) Use(ctx context.Context, article *models.KBArticle) {
	if err := s.articles.IncrementUses(ctx, article.ID); err != nil {
		slog.Warn("KB usage counter update failed",
			slog.Int64("article_id", article.ID), slog.Any("error", err))
	}
}
