// Package transcripts renders a closed ticket's message history as plain
// text and uploads it to S3-compatible object storage.
package transcripts

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

// Page size of the message fetch; also the hard cap per transcript.
const (
	fetchPageSize = 100
	maxPages      = 20
)

type Config struct {
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Endpoint string `toml:"endpoint"`
}

// Archiver uploads ticket transcripts keyed by guild and ticket number.
type Archiver struct {
	client  bot.Client
	s3      *s3.Client
	bucket  string
	baseURL string
}

func NewArchiver(client bot.Client, cfg Config) (*Archiver, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{URL: cfg.Endpoint}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	return &Archiver{
		client:  client,
		s3:      s3.NewFromConfig(awsCfg),
		bucket:  cfg.Bucket,
		baseURL: fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket),
	}, nil
}

// Archive fetches the channel history, renders it oldest-first and uploads
// it. Returns the public URL of the stored transcript.
func (a *Archiver) Archive(ctx context.Context, ticket *models.Ticket) (string, error) {
	channelID, err := snowflake.Parse(ticket.ChannelID)
	if err != nil {
		return "", fmt.Errorf("invalid channel id %q: %w", ticket.ChannelID, err)
	}

	messages, err := a.fetchAll(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch channel history: %w", err)
	}

	body := render(ticket, messages)
	key := fmt.Sprintf("transcripts/%s/ticket-%04d.txt", ticket.GuildID, ticket.TicketNumber)

	_, err = a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript: %w", err)
	}

	return fmt.Sprintf("%s/%s", a.baseURL, key), nil
}

// fetchAll pages backwards through the channel and returns messages
// oldest-first.
func (a *Archiver) fetchAll(ctx context.Context, channelID snowflake.ID) ([]discord.Message, error) {
	var all []discord.Message
	var before snowflake.ID

	for page := 0; page < maxPages; page++ {
		batch, err := a.client.Rest().GetMessages(channelID, 0, before, 0, fetchPageSize, rest.WithCtx(ctx))
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		before = batch[len(batch)-1].ID
		if len(batch) < fetchPageSize {
			break
		}
	}

	// Discord returns newest-first.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func render(ticket *models.Ticket, messages []discord.Message) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Transcript of ticket #%04d\n", ticket.TicketNumber)
	fmt.Fprintf(&sb, "Guild: %s\nOwner: %s\nOpened: %s\n",
		ticket.GuildID, ticket.OwnerID, ticket.CreatedAt.Format(time.RFC3339))
	if ticket.ClosedAt != nil {
		fmt.Fprintf(&sb, "Closed: %s (%s)\n", ticket.ClosedAt.Format(time.RFC3339), ticket.CloseReason)
	}
	sb.WriteString(strings.Repeat("-", 60) + "\n")

	for _, msg := range messages {
		fmt.Fprintf(&sb, "[%s] %s: %s\n",
			msg.CreatedAt.Format("2006-01-02 15:04:05"),
			msg.Author.Username,
			msg.Content)
		for _, attachment := range msg.Attachments {
			fmt.Fprintf(&sb, "    [attachment] %s\n", attachment.URL)
		}
	}
	return []byte(sb.String())
}
