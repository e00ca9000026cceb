// Package ai drafts reply suggestions for staff using an LLM, optionally
// grounded on matching knowledge-base articles.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

const (
	defaultModel = openai.GPT4oMini
	maxTokens    = 400
)

const systemPrompt = "You are a support assistant for a Discord server. " +
	"Draft a short, friendly reply a staff member could send to the user. " +
	"Stick to the provided knowledge-base excerpts when they are relevant; " +
	"if they are not, say what additional information staff should ask for."

type Suggester struct {
	client *openai.Client
}

func NewSuggester(apiKey string) *Suggester {
	return &Suggester{client: openai.NewClient(apiKey)}
}

// Suggest drafts a reply for the given question. Articles are optional
// grounding material from the knowledge base.
func (s *Suggester) Suggest(ctx context.Context, cfg *models.GuildConfig, question string, articles []*models.KBArticle) (string, error) {
	model := cfg.AIModel
	if model == "" {
		model = defaultModel
	}

	var sb strings.Builder
	sb.WriteString("User question:\n")
	sb.WriteString(question)
	if len(articles) > 0 {
		sb.WriteString("\n\nKnowledge-base excerpts:\n")
		for _, article := range articles {
			fmt.Fprintf(&sb, "- %s: %s\n", article.Title, article.Content)
		}
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: 0.4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("suggestion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("suggestion request returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
