package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordPlatform adapts a discordgo session to the executor's platform
// contract and to the log router's notifier.
type discordPlatform struct {
	session *discordgo.Session
}

func newDiscordPlatform(session *discordgo.Session) *discordPlatform {
	return &discordPlatform{session: session}
}

func (p *discordPlatform) Ban(ctx context.Context, guildID, userID, reason string, purgeDays int) error {
	return p.session.GuildBanCreateWithReason(guildID, userID, reason, purgeDays, discordgo.WithContext(ctx))
}

func (p *discordPlatform) Unban(ctx context.Context, guildID, userID, reason string) error {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	return p.session.GuildBanDelete(guildID, userID, opts...)
}

func (p *discordPlatform) Kick(ctx context.Context, guildID, userID, reason string) error {
	return p.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (p *discordPlatform) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	opts := []discordgo.RequestOption{discordgo.WithContext(ctx)}
	if reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(reason))
	}
	return p.session.GuildMemberTimeout(guildID, userID, &until, opts...)
}

func (p *discordPlatform) ClearTimeout(ctx context.Context, guildID, userID string) error {
	return p.session.GuildMemberTimeout(guildID, userID, nil, discordgo.WithContext(ctx))
}

// LockChannel denies send-messages for @everyone, preserving the channel's
// existing overwrite bits.
func (p *discordPlatform) LockChannel(ctx context.Context, guildID, channelID, reason string) error {
	allow, deny, err := p.everyoneOverwrite(ctx, guildID, channelID)
	if err != nil {
		return err
	}
	deny |= discordgo.PermissionSendMessages
	allow &^= discordgo.PermissionSendMessages
	return p.session.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole, allow, deny, discordgo.WithContext(ctx))
}

func (p *discordPlatform) UnlockChannel(ctx context.Context, guildID, channelID, reason string) error {
	allow, deny, err := p.everyoneOverwrite(ctx, guildID, channelID)
	if err != nil {
		return err
	}
	deny &^= discordgo.PermissionSendMessages
	return p.session.ChannelPermissionSet(channelID, guildID, discordgo.PermissionOverwriteTypeRole, allow, deny, discordgo.WithContext(ctx))
}

// ChannelLocked reports whether @everyone is currently denied
// send-messages in the channel.
func (p *discordPlatform) ChannelLocked(ctx context.Context, guildID, channelID string) (bool, error) {
	_, deny, err := p.everyoneOverwrite(ctx, guildID, channelID)
	if err != nil {
		return false, err
	}
	return deny&discordgo.PermissionSendMessages != 0, nil
}

func (p *discordPlatform) everyoneOverwrite(ctx context.Context, guildID, channelID string) (allow, deny int64, err error) {
	channel, err := p.session.State.Channel(channelID)
	if err != nil {
		channel, err = p.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return 0, 0, err
		}
	}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == guildID {
			return overwrite.Allow, overwrite.Deny, nil
		}
	}
	return 0, 0, nil
}

// PurgeMessages bulk-deletes up to limit recent messages and returns a
// printable line per deleted message for the audit trail. Messages older
// than the platform's two-week bulk-delete window are skipped.
func (p *discordPlatform) PurgeMessages(ctx context.Context, channelID string, limit int) ([]string, error) {
	messages, err := p.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-14 * 24 * time.Hour)
	var ids []string
	var lines []string
	for _, msg := range messages {
		if msg.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, msg.ID)
		author := "unknown"
		if msg.Author != nil {
			author = msg.Author.Username
		}
		lines = append(lines, fmt.Sprintf("%s: %s", author, msg.Content))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := p.session.ChannelMessagesBulkDelete(channelID, ids, discordgo.WithContext(ctx)); err != nil {
		return nil, err
	}
	return lines, nil
}

func (p *discordPlatform) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := p.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}
