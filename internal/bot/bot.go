package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/locale"
	"warden/internal/moderation"
	"warden/internal/modlog"
	"warden/internal/storage"
	"warden/internal/sweeper"
)

// Bot wires the Discord gateway to the moderation engine: it owns the
// session, registers the slash commands, and dispatches interactions to
// the executor.
type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *storage.Store
	locale   *locale.Manager
	session  *discordgo.Session
	platform *discordPlatform
	router   *modlog.Router
	exec     *moderation.Executor
	sweep    *sweeper.Sweeper

	cancelSweep context.CancelFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, locales *locale.Manager) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsGuildMessages

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		locale:  locales,
		session: session,
	}

	defaults := b.guildDefaults()
	b.platform = newDiscordPlatform(session)
	b.router = modlog.NewRouter(store, b.platform, defaults, logger)
	b.exec = moderation.NewExecutor(store, b.platform, b.router, defaults, logger)
	return b, nil
}

// Start opens the gateway connection, synchronizes the slash commands and
// launches the expiry sweeper. It returns once the bot is serving.
func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		b.logger.Error("registering commands", zap.Error(err))
	}

	self := b.session.State.User
	b.sweep = sweeper.New(b.store, b.platform, b.router,
		moderation.Invoker{ID: self.ID, Name: self.Username, Avatar: self.AvatarURL("")},
		time.Duration(b.cfg.Sweep.BanIntervalSeconds)*time.Second,
		time.Duration(b.cfg.Sweep.WarnIntervalSeconds)*time.Second,
		b.logger)

	ctx, cancel := context.WithCancel(context.Background())
	b.cancelSweep = cancel
	go b.sweep.Run(ctx)

	return nil
}

func (b *Bot) Close() error {
	if b.cancelSweep != nil {
		b.cancelSweep()
	}
	return b.session.Close()
}

func (b *Bot) guildDefaults() storage.GuildSettings {
	return storage.GuildSettings{
		Language:       b.cfg.DefaultLanguage,
		LogChannel:     b.cfg.DefaultLogChannel,
		WarnExpireDays: b.cfg.WarnExpireDays,
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
	for _, g := range r.Guilds {
		b.ensureGuild(context.Background(), g.ID)
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.ensureGuild(context.Background(), g.ID)
}

func (b *Bot) ensureGuild(ctx context.Context, guildID string) {
	defaults := b.guildDefaults()
	defaults.GuildID = guildID
	if err := b.store.EnsureGuildSettings(ctx, defaults); err != nil {
		b.logger.Error("ensuring guild settings", zap.String("guild_id", guildID), zap.Error(err))
	}
}

// guildSettings loads the guild's settings, falling back to the configured
// defaults when the row is missing or the read fails.
func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	settings, err := b.store.GetGuildSettings(ctx, guildID, b.guildDefaults())
	if err != nil {
		b.logger.Warn("loading guild settings", zap.String("guild_id", guildID), zap.Error(err))
		return b.guildDefaults()
	}
	return settings
}

func (b *Bot) guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := b.session.State.Guild(guildID); err == nil {
		return guild, nil
	}
	return b.session.Guild(guildID)
}

func (b *Bot) member(guildID, userID string) (*discordgo.Member, error) {
	if member, err := b.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return b.session.GuildMember(guildID, userID)
}

// memberHasAdmin reports whether any of the member's roles (including
// @everyone) carries the administrator permission.
func memberHasAdmin(guild *discordgo.Guild, member *discordgo.Member) bool {
	var permissions int64
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			permissions |= role.Permissions
			continue
		}
		for _, id := range member.Roles {
			if id == role.ID {
				permissions |= role.Permissions
				break
			}
		}
	}
	return permissions&discordgo.PermissionAdministrator != 0
}

// highestRolePosition returns the top position among the member's roles;
// a member with no roles sits at the @everyone position of zero.
func highestRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	highest := 0
	for _, role := range guild.Roles {
		for _, id := range member.Roles {
			if id == role.ID && role.Position > highest {
				highest = role.Position
			}
		}
	}
	return highest
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("responding to interaction", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("responding to interaction", zap.Error(err))
	}
}
