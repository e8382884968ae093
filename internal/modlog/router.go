package modlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/storage"
)

const embedColor = 0x5848CE

// Entry carries the context of one completed moderation action. Which
// fields are meaningful depends on the category being logged.
type Entry struct {
	GuildID     string
	UserID      string
	ChannelID   string
	ModeratorID string

	// Display metadata for the footer, resolved by the caller when
	// available. ModeratorID is used on its own otherwise.
	ModeratorName   string
	ModeratorAvatar string

	Reason   string
	Duration string
	CaseID   int
	Points   int

	MessagesDeleted int
	Messages        []string

	RemovedWarns []RemovedWarn
}

// RemovedWarn is one warning inside a batch removal.
type RemovedWarn struct {
	UserID string
	CaseID int
	Points int
}

// SettingsReader is the slice of the settings store the router needs.
type SettingsReader interface {
	GetGuildSettings(ctx context.Context, guildID string, defaults storage.GuildSettings) (storage.GuildSettings, error)
}

// Notifier delivers a rendered notification to a channel.
type Notifier interface {
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// Router decides whether and where a moderation action gets logged. A guild
// with no configured log channel, or with the action's category disabled in
// its mask, produces no delivery. Delivery failures are logged and swallowed
// so they never fail the action that triggered them.
type Router struct {
	settings SettingsReader
	notifier Notifier
	defaults storage.GuildSettings
	logger   *zap.Logger
}

func NewRouter(settings SettingsReader, notifier Notifier, defaults storage.GuildSettings, logger *zap.Logger) *Router {
	return &Router{
		settings: settings,
		notifier: notifier,
		defaults: defaults,
		logger:   logger,
	}
}

func (r *Router) Log(ctx context.Context, category Category, entry Entry) {
	settings, err := r.settings.GetGuildSettings(ctx, entry.GuildID, r.defaults)
	if err != nil {
		r.logger.Error("loading guild settings for log routing",
			zap.String("guild_id", entry.GuildID),
			zap.Stringer("category", category),
			zap.Error(err))
		return
	}
	if settings.LogChannel == "" {
		return
	}
	if !Mask(settings.LogTypes).Has(category) {
		return
	}

	embed := buildEmbed(category, entry, time.Now())
	if err := r.notifier.SendEmbed(ctx, settings.LogChannel, embed); err != nil {
		r.logger.Warn("log delivery failed",
			zap.String("guild_id", entry.GuildID),
			zap.String("channel_id", settings.LogChannel),
			zap.Stringer("category", category),
			zap.Error(err))
	}
}

func buildEmbed(category Category, entry Entry, now time.Time) *discordgo.MessageEmbed {
	var title, description string

	switch category {
	case ClearMessages:
		title = fmt.Sprintf("%d Messages Purged", entry.MessagesDeleted)
		content := "Could not log messages"
		if len(entry.Messages) > 0 {
			content = strings.Join(entry.Messages, "\n")
		}
		description = fmt.Sprintf("`Channel:` <#%s>\n\n```%s```", entry.ChannelID, content)
	case ClearChannel:
		title = "Channel nuked"
		description = fmt.Sprintf("`Channel:` <#%s>\n\n```All messages purged```", entry.ChannelID)
	case Mute:
		title = "User Muted"
		description = fmt.Sprintf("`User:` <@%s>\n`Reason:` %s\n`Duration:` %s\n`Case ID:` %d",
			entry.UserID, reasonOrDefault(entry.Reason), durationOrDefault(entry.Duration), entry.CaseID)
	case Unmute:
		title = "User Unmuted"
		description = fmt.Sprintf("`User:` <@%s>", entry.UserID)
	case Kick:
		title = "User Kicked"
		description = fmt.Sprintf("`User:` <@%s>\n`Reason:` %s\n`Case ID:` %d",
			entry.UserID, reasonOrDefault(entry.Reason), entry.CaseID)
	case Lock:
		title = "Channel Locked"
		description = fmt.Sprintf("`Channel:` <#%s>\n`Reason:` **%s**", entry.ChannelID, reasonOrDefault(entry.Reason))
	case Unlock:
		title = "Channel Unlocked"
		description = fmt.Sprintf("`Channel:` <#%s>\n`Reason:` **%s**", entry.ChannelID, reasonOrDefault(entry.Reason))
	case Ban:
		title = "User Banned"
		description = fmt.Sprintf("`User:` <@%s>\n`Reason:` %s\n`Duration:` %s\n`Case ID:` %d",
			entry.UserID, reasonOrDefault(entry.Reason), durationOrDefault(entry.Duration), entry.CaseID)
	case Unban:
		title = "User Unbanned"
		description = fmt.Sprintf("`User:` <@%s>", entry.UserID)
	case Warn:
		title = "User Warned"
		description = fmt.Sprintf("`User:` <@%s>\n`Reason:` %s\n`Points:` %d\n`Case ID:` #%d",
			entry.UserID, reasonOrDefault(entry.Reason), entry.Points, entry.CaseID)
	case RemoveWarn:
		title = "Warning Removed"
		description = fmt.Sprintf("`User:` <@%s>\n`Points:` %d", entry.UserID, entry.Points)
	case RemoveMultipleWarns:
		title = "Multiple Warnings Removed"
		description = "`Warnings Removed:`\n" + formatRemovedWarns(entry.RemovedWarns)
	default:
		title = "Moderation Action"
	}

	footer := fmt.Sprintf("Action by: %s", entry.ModeratorID)
	if entry.ModeratorName != "" {
		footer = fmt.Sprintf("Action by: %s (%s)", entry.ModeratorName, entry.ModeratorID)
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       embedColor,
		Timestamp:   now.UTC().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text:    footer,
			IconURL: entry.ModeratorAvatar,
		},
	}
}

// formatRemovedWarns groups the batch by user, preserving the order users
// first appear in.
func formatRemovedWarns(warns []RemovedWarn) string {
	var order []string
	grouped := make(map[string][]RemovedWarn)
	for _, w := range warns {
		if _, seen := grouped[w.UserID]; !seen {
			order = append(order, w.UserID)
		}
		grouped[w.UserID] = append(grouped[w.UserID], w)
	}

	blocks := make([]string, 0, len(order))
	for _, userID := range order {
		lines := make([]string, 0, len(grouped[userID]))
		for _, w := range grouped[userID] {
			lines = append(lines, fmt.Sprintf("  Case #%d: %d points", w.CaseID, w.Points))
		}
		blocks = append(blocks, fmt.Sprintf("<@%s>:\n%s", userID, strings.Join(lines, "\n")))
	}
	return strings.Join(blocks, "\n\n")
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return "No reason provided"
	}
	return reason
}

func durationOrDefault(duration string) string {
	if duration == "" {
		return "N/A"
	}
	return duration
}
