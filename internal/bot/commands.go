package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func perms(p int64) *int64 { return &p }

func number(n float64) *float64 { return &n }

var dmDisabled = false

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "ban",
			Description:              "Ban a user, permanently or for a duration",
			DefaultMemberPermissions: perms(discordgo.PermissionBanMembers),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "How long the ban lasts, e.g. 13d (omit for permanent)"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the ban"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "delete_message_days", Description: "Days of messages to delete (0-7)", MinValue: number(0), MaxValue: 7},
			},
		},
		{
			Name:                     "kick",
			Description:              "Kick a user from the server",
			DefaultMemberPermissions: perms(discordgo.PermissionKickMembers),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to kick", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the kick"},
			},
		},
		{
			Name:                     "mute",
			Description:              "Mute a user for a duration",
			DefaultMemberPermissions: perms(discordgo.PermissionModerateMembers),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to mute", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "How long the mute lasts, e.g. 1h", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the mute"},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Lift a user's active mute",
			DefaultMemberPermissions: perms(discordgo.PermissionModerateMembers),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to unmute", Required: true},
			},
		},
		{
			Name:                     "warn",
			Description:              "Warn a user",
			DefaultMemberPermissions: perms(discordgo.PermissionModerateMembers),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to warn", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the warning"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "points", Description: "Points this warning is worth", MinValue: number(1), MaxValue: 100},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "expire", Description: "Expire the warning after the configured number of days"},
			},
		},
		{
			Name:                     "clear",
			Description:              "Bulk delete recent messages in this channel",
			DefaultMemberPermissions: perms(discordgo.PermissionManageMessages),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "How many messages to delete", Required: true, MinValue: number(1), MaxValue: 100},
			},
		},
		{
			Name:                     "lock",
			Description:              "Prevent members from sending messages in this channel",
			DefaultMemberPermissions: perms(discordgo.PermissionManageChannels),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the lock"},
			},
		},
		{
			Name:                     "unlock",
			Description:              "Allow members to send messages in this channel again",
			DefaultMemberPermissions: perms(discordgo.PermissionManageChannels),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the unlock"},
			},
		},
		{
			Name:                     "cases",
			Description:              "View or remove moderation cases",
			DefaultMemberPermissions: perms(discordgo.PermissionModerateMembers),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "View cases, optionally filtered",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Only cases against this user"},
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: "A single case id", MinValue: number(1)},
						{Type: discordgo.ApplicationCommandOptionUser, Name: "moderator", Description: "Only cases created by this moderator"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove up to ten cases by id, reversing their effects",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "ids", Description: "Comma-separated case ids, e.g. 3,4,9", Required: true},
					},
				},
			},
		},
		{
			Name:                     "config",
			Description:              "Configure moderation for this server",
			DefaultMemberPermissions: perms(discordgo.PermissionAdministrator),
			DMPermission:             &dmDisabled,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "log_channel",
					Description: "Set the channel that receives moderation logs",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Log channel", Required: true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "log_types",
					Description: "Enable or disable moderation log categories",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "Enable or disable", Required: true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "enable", Value: "enable"},
								{Name: "disable", Value: "disable"},
							}},
						{Type: discordgo.ApplicationCommandOptionString, Name: "categories", Description: "Comma-separated category names, e.g. ban,mute,warn", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "warn_expire",
					Description: "Set how many days an expiring warning lasts",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "Days before an expiring warning is dropped", Required: true, MinValue: number(1)},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "language",
					Description: "Set the language the bot replies in",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "value", Description: "Language code", Required: true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "English", Value: "en"},
								{Name: "Français", Value: "fr"},
								{Name: "Polski", Value: "pl"},
							}},
					},
				},
			},
		},
	}
}

// registerCommands reconciles the registered global commands with the
// desired set: matching commands are edited in place, missing ones
// created, leftovers deleted. Stale guild-scoped commands from older
// deployments are removed as well.
func (b *Bot) registerCommands() error {
	appID := b.session.State.User.ID
	desired := commandDefinitions()

	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		b.logger.Warn("listing registered commands, creating from scratch", zap.Error(err))
		for _, cmd := range desired {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return fmt.Errorf("creating command %s: %w", cmd.Name, err)
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desiredNames := make(map[string]bool, len(desired))
	for _, cmd := range desired {
		desiredNames[cmd.Name] = true
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return fmt.Errorf("updating command %s: %w", cmd.Name, err)
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("creating command %s: %w", cmd.Name, err)
		}
	}

	for _, cmd := range existing {
		if desiredNames[cmd.Name] {
			continue
		}
		if err := b.session.ApplicationCommandDelete(appID, "", cmd.ID); err != nil {
			b.logger.Warn("deleting stale command", zap.String("command", cmd.Name), zap.Error(err))
		}
	}

	for _, guild := range b.session.State.Guilds {
		guildCommands, err := b.session.ApplicationCommands(appID, guild.ID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCommands {
			if err := b.session.ApplicationCommandDelete(appID, guild.ID, cmd.ID); err != nil {
				b.logger.Warn("deleting stale guild command",
					zap.String("guild_id", guild.ID),
					zap.String("command", cmd.Name),
					zap.Error(err))
			}
		}
	}

	return nil
}
