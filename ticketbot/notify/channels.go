package notify

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// Channels adapts the chat platform's channel API for the lifecycle manager.
// A ticket channel is visible to its owner, the staff roles and the bot;
// everyone else is denied at the default-role overwrite.
type Channels struct {
	client bot.Client
}

func NewChannels(client bot.Client) *Channels {
	return &Channels{client: client}
}

func (c *Channels) CreateTicketChannel(ctx context.Context, guildID, name, ownerID string, staffRoles []string, parentID string) (string, error) {
	guild, err := snowflake.Parse(guildID)
	if err != nil {
		return "", fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	owner, err := snowflake.Parse(ownerID)
	if err != nil {
		return "", fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}

	memberPerms := discord.PermissionViewChannel |
		discord.PermissionSendMessages |
		discord.PermissionReadMessageHistory |
		discord.PermissionAttachFiles

	overwrites := []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{
			RoleID: guild, // @everyone shares the guild id
			Deny:   discord.PermissionViewChannel,
		},
		discord.MemberPermissionOverwrite{
			UserID: owner,
			Allow:  memberPerms,
		},
		discord.MemberPermissionOverwrite{
			UserID: c.client.ApplicationID(),
			Allow:  memberPerms | discord.PermissionManageChannels,
		},
	}
	for _, roleID := range staffRoles {
		role, err := snowflake.Parse(roleID)
		if err != nil {
			continue
		}
		overwrites = append(overwrites, discord.RolePermissionOverwrite{
			RoleID: role,
			Allow:  memberPerms | discord.PermissionManageMessages,
		})
	}

	create := discord.GuildTextChannelCreate{
		Name:                 name,
		PermissionOverwrites: overwrites,
	}
	if parent, err := snowflake.Parse(parentID); err == nil && parentID != "" {
		create.ParentID = parent
	}

	channel, err := c.client.Rest().CreateGuildChannel(guild, create, rest.WithCtx(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create ticket channel: %w", err)
	}
	return channel.ID().String(), nil
}

func (c *Channels) RenameChannel(ctx context.Context, channelID, name string) error {
	id, err := snowflake.Parse(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	_, err = c.client.Rest().UpdateChannel(id, discord.GuildTextChannelUpdate{
		Name: &name,
	}, rest.WithCtx(ctx))
	return err
}

func (c *Channels) DeleteChannel(ctx context.Context, channelID string) error {
	id, err := snowflake.Parse(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	return c.client.Rest().DeleteChannel(id, rest.WithCtx(ctx))
}

// MakeReadOnly rewrites the overwrite set so the owner and the default role
// can read but not write. Staff keeps full access for archived records.
func (c *Channels) MakeReadOnly(ctx context.Context, guildID, channelID, ownerID string, staffRoles []string) error {
	guild, err := snowflake.Parse(guildID)
	if err != nil {
		return fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	channel, err := snowflake.Parse(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	owner, err := snowflake.Parse(ownerID)
	if err != nil {
		return fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}

	writePerms := discord.PermissionSendMessages |
		discord.PermissionAddReactions |
		discord.PermissionCreatePublicThreads |
		discord.PermissionCreatePrivateThreads

	overwrites := []discord.PermissionOverwrite{
		discord.RolePermissionOverwrite{
			RoleID: guild,
			Deny:   discord.PermissionViewChannel | writePerms,
		},
		discord.MemberPermissionOverwrite{
			UserID: owner,
			Allow:  discord.PermissionViewChannel | discord.PermissionReadMessageHistory,
			Deny:   writePerms,
		},
		discord.MemberPermissionOverwrite{
			UserID: c.client.ApplicationID(),
			Allow: discord.PermissionViewChannel |
				discord.PermissionSendMessages |
				discord.PermissionManageChannels,
		},
	}
	for _, roleID := range staffRoles {
		role, err := snowflake.Parse(roleID)
		if err != nil {
			continue
		}
		overwrites = append(overwrites, discord.RolePermissionOverwrite{
			RoleID: role,
			Allow: discord.PermissionViewChannel |
				discord.PermissionSendMessages |
				discord.PermissionReadMessageHistory,
		})
	}

	_, err = c.client.Rest().UpdateChannel(channel, discord.GuildTextChannelUpdate{
		PermissionOverwrites: &overwrites,
	}, rest.WithCtx(ctx))
	return err
}
