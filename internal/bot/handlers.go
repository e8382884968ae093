package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/moderation"
	"warden/internal/modlog"
	"warden/internal/storage"
)

const caseEmbedColor = 0x5848CE

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.GuildID == "" || i.Member == nil {
		return
	}

	ctx := context.Background()
	data := i.ApplicationCommandData()
	settings := b.guildSettings(ctx, i.GuildID)
	lang := settings.Language

	switch data.Name {
	case "ban":
		b.handleBan(ctx, s, i, lang)
	case "kick":
		b.handleKick(ctx, s, i, lang)
	case "mute":
		b.handleMute(ctx, s, i, lang)
	case "unmute":
		b.handleUnmute(ctx, s, i, lang)
	case "warn":
		b.handleWarn(ctx, s, i, lang)
	case "clear":
		b.handleClear(ctx, s, i, lang)
	case "lock":
		b.handleLock(ctx, s, i, lang)
	case "unlock":
		b.handleUnlock(ctx, s, i, lang)
	case "cases":
		b.handleCases(ctx, s, i, lang)
	case "config":
		b.handleConfig(ctx, s, i, lang)
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// actionContext resolves the hierarchy facts a member-targeted action
// needs. A target that is no longer a guild member (banning by id, for
// example) gets a zero role position and no admin flag.
func (b *Bot) actionContext(i *discordgo.InteractionCreate, target *discordgo.User) (moderation.ActionContext, error) {
	guild, err := b.guild(i.GuildID)
	if err != nil {
		return moderation.ActionContext{}, fmt.Errorf("resolving guild: %w", err)
	}

	actor := i.Member
	ac := moderation.ActionContext{
		GuildID:      i.GuildID,
		GuildOwnerID: guild.OwnerID,
		Actor: moderation.Subject{
			ID:      actor.User.ID,
			IsBot:   actor.User.Bot,
			IsAdmin: memberHasAdmin(guild, actor),
			RolePos: highestRolePosition(guild, actor),
		},
		Target: moderation.Subject{
			ID:    target.ID,
			IsBot: target.Bot,
		},
		ActorName:   actor.User.Username,
		ActorAvatar: actor.User.AvatarURL(""),
	}
	if target.ID == b.session.State.User.ID {
		ac.Target.IsBot = true
	}

	if targetMember, err := b.member(i.GuildID, target.ID); err == nil {
		ac.Target.IsAdmin = memberHasAdmin(guild, targetMember)
		ac.Target.RolePos = highestRolePosition(guild, targetMember)
	}

	botMember, err := b.member(i.GuildID, b.session.State.User.ID)
	if err != nil {
		return moderation.ActionContext{}, fmt.Errorf("resolving own member: %w", err)
	}
	ac.BotRolePos = highestRolePosition(guild, botMember)

	return ac, nil
}

func (b *Bot) invoker(i *discordgo.InteractionCreate) moderation.Invoker {
	user := i.Member.User
	return moderation.Invoker{ID: user.ID, Name: user.Username, Avatar: user.AvatarURL("")}
}

// replyError translates a policy denial for the invoker; anything else is
// logged and reported generically.
func (b *Bot) replyError(s *discordgo.Session, i *discordgo.InteractionCreate, lang string, err error) {
	if d, ok := moderation.AsDenial(err); ok {
		b.respond(s, i, b.locale.Get(lang, d.Key), true)
		return
	}
	b.logger.Error("command failed",
		zap.String("guild_id", i.GuildID),
		zap.String("command", i.ApplicationCommandData().Name),
		zap.Error(err))
	b.respond(s, i, b.locale.Get(lang, "moderation.error.generic"), true)
}

func (b *Bot) reasonText(lang, reason string) string {
	if reason == "" {
		return b.locale.Get(lang, "commands.moderation.common.no_reason")
	}
	return reason
}

func (b *Bot) handleBan(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	target := opts["user"].UserValue(s)

	var reason, duration string
	var purgeDays int
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}
	if opt, ok := opts["duration"]; ok {
		duration = opt.StringValue()
	}
	if opt, ok := opts["delete_message_days"]; ok {
		purgeDays = int(opt.IntValue())
	}

	ac, err := b.actionContext(i, target)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	if _, err := b.exec.Ban(ctx, ac, reason, duration, purgeDays); err != nil {
		b.replyError(s, i, lang, err)
		return
	}

	durText := b.locale.Get(lang, "commands.moderation.common.permanently")
	if duration != "" {
		durText = b.locale.Get(lang, "commands.moderation.common.for_duration", duration)
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.ban.reply_success", target.Mention(), durText, b.reasonText(lang, reason)), false)
}

func (b *Bot) handleKick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	target := opts["user"].UserValue(s)

	var reason string
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	ac, err := b.actionContext(i, target)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	if _, err := b.exec.Kick(ctx, ac, reason); err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.kick.reply_success", target.Mention(), b.reasonText(lang, reason)), false)
}

func (b *Bot) handleMute(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	target := opts["user"].UserValue(s)
	duration := opts["duration"].StringValue()

	var reason string
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	ac, err := b.actionContext(i, target)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	if _, err := b.exec.Mute(ctx, ac, reason, duration); err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.mute.reply_success", target.Mention(), duration, b.reasonText(lang, reason)), false)
}

func (b *Bot) handleUnmute(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	target := opts["user"].UserValue(s)

	ac, err := b.actionContext(i, target)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	if err := b.exec.Unmute(ctx, ac); err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.unmute.reply_success", target.Mention()), false)
}

func (b *Bot) handleWarn(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	target := opts["user"].UserValue(s)

	var reason string
	points := 1
	expire := false
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}
	if opt, ok := opts["points"]; ok {
		points = int(opt.IntValue())
	}
	if opt, ok := opts["expire"]; ok {
		expire = opt.BoolValue()
	}

	ac, err := b.actionContext(i, target)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	_, total, err := b.exec.Warn(ctx, ac, reason, points, expire)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.warn.reply_success", target.Mention(), points, total, b.reasonText(lang, reason)), false)
}

func (b *Bot) handleClear(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	amount := int(opts["amount"].IntValue())

	deleted, err := b.exec.ClearMessages(ctx, i.GuildID, i.ChannelID, amount, b.invoker(i))
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	if deleted == 0 {
		b.respond(s, i, b.locale.Get(lang, "commands.moderation.clear.no_messages"), true)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.clear.reply_success", deleted), true)
}

func (b *Bot) handleLock(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	var reason string
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	if err := b.exec.Lock(ctx, i.GuildID, i.ChannelID, reason, b.invoker(i)); err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.channel.reply_locked", b.reasonText(lang, reason)), false)
}

func (b *Bot) handleUnlock(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	opts := optionMap(i.ApplicationCommandData().Options)
	var reason string
	if opt, ok := opts["reason"]; ok {
		reason = opt.StringValue()
	}

	if err := b.exec.Unlock(ctx, i.GuildID, i.ChannelID, reason, b.invoker(i)); err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	b.respond(s, i, b.locale.Get(lang, "commands.moderation.channel.reply_unlocked"), false)
}

func (b *Bot) handleCases(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "view":
		b.handleCasesView(ctx, s, i, lang, sub)
	case "remove":
		b.handleCasesRemove(ctx, s, i, lang, sub)
	}
}

func (b *Bot) handleCasesView(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(sub.Options)

	var filter storage.CaseFilter
	if opt, ok := opts["user"]; ok {
		filter.UserID = opt.UserValue(s).ID
	}
	if opt, ok := opts["id"]; ok {
		filter.CaseID = int(opt.IntValue())
	}
	if opt, ok := opts["moderator"]; ok {
		filter.ModeratorID = opt.UserValue(s).ID
	}

	cases, err := b.exec.ListCases(ctx, i.GuildID, filter)
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}
	if len(cases) == 0 {
		if filter.CaseID != 0 {
			b.respond(s, i, b.locale.Get(lang, "commands.moderation.cases.view_error_no_case", filter.CaseID), true)
			return
		}
		b.respond(s, i, b.locale.Get(lang, "commands.moderation.cases.view_error_no_cases"), true)
		return
	}

	if filter.CaseID != 0 {
		b.respondEmbed(s, i, b.caseEmbed(lang, cases[0]), false)
		return
	}

	title := b.locale.Get(lang, "commands.moderation.cases.view_cases_for_guild")
	switch {
	case filter.UserID != "":
		title = b.locale.Get(lang, "commands.moderation.cases.view_user_cases", "<@"+filter.UserID+">")
	case filter.ModeratorID != "":
		title = b.locale.Get(lang, "commands.moderation.cases.view_cases_for", "<@"+filter.ModeratorID+">")
	}
	b.respondEmbed(s, i, b.caseListEmbed(lang, title, cases), false)
}

// caseEmbed renders one case in full.
func (b *Bot) caseEmbed(lang string, c storage.Case) *discordgo.MessageEmbed {
	reason := c.Reason
	if reason == "" {
		reason = b.locale.Get(lang, "commands.moderation.cases.no_reason")
	}
	expires := b.locale.Get(lang, "commands.moderation.cases.never")
	if c.EndDate != nil {
		expires = fmt.Sprintf("<t:%d:R>", c.EndDate.Unix())
	}

	description := fmt.Sprintf("`User:` <@%s>\n`Moderator:` <@%s>\n`Type:` %s\n`Reason:` %s\n`Expires:` %s",
		c.UserID, c.ModeratorID, c.Type, reason, expires)
	if c.Type == storage.CaseWarn {
		description += fmt.Sprintf("\n`%s:` %d", b.locale.Get(lang, "commands.moderation.cases.view_points"), c.Points)
	}

	return &discordgo.MessageEmbed{
		Title:       b.locale.Get(lang, "commands.moderation.cases.view_case", c.CaseID),
		Description: description,
		Color:       caseEmbedColor,
		Timestamp:   c.CreatedAt.Format(time.RFC3339),
	}
}

const maxListedCases = 20

// caseListEmbed renders the cases grouped per user, one block per user in
// the order users first appear, cases in id order inside each block.
func (b *Bot) caseListEmbed(lang, title string, cases []storage.Case) *discordgo.MessageEmbed {
	overflow := 0
	if len(cases) > maxListedCases {
		overflow = len(cases) - maxListedCases
		cases = cases[:maxListedCases]
	}

	var order []string
	grouped := make(map[string][]storage.Case)
	for _, c := range cases {
		if _, seen := grouped[c.UserID]; !seen {
			order = append(order, c.UserID)
		}
		grouped[c.UserID] = append(grouped[c.UserID], c)
	}

	blocks := make([]string, 0, len(order))
	for _, userID := range order {
		lines := make([]string, 0, len(grouped[userID])+1)
		lines = append(lines, fmt.Sprintf("<@%s>", userID))
		for _, c := range grouped[userID] {
			reason := c.Reason
			if reason == "" {
				reason = b.locale.Get(lang, "commands.moderation.cases.no_reason")
			}
			lines = append(lines, fmt.Sprintf("`#%d` %s — %s", c.CaseID, c.Type, reason))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if overflow > 0 {
		blocks = append(blocks, fmt.Sprintf("… +%d", overflow))
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: strings.Join(blocks, "\n\n"),
		Color:       caseEmbedColor,
	}
}

func (b *Bot) handleCasesRemove(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string, sub *discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(sub.Options)
	raw := opts["ids"].StringValue()

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id < 1 {
			b.respond(s, i, b.locale.Get(lang, "commands.moderation.cases.remove_invalid_ids"), true)
			return
		}
		ids = append(ids, id)
	}

	reports, err := b.exec.RemoveCases(ctx, i.GuildID, ids, b.invoker(i))
	if err != nil {
		b.replyError(s, i, lang, err)
		return
	}

	removed := 0
	var lines []string
	for _, report := range reports {
		if report.Found {
			removed++
			continue
		}
		lines = append(lines, b.locale.Get(lang, "commands.moderation.cases.remove_not_found", report.CaseID))
	}
	if removed > 0 {
		lines = append([]string{b.locale.Get(lang, "commands.moderation.cases.remove_success", removed)}, lines...)
	}
	b.respond(s, i, strings.Join(lines, "\n"), false)
}

func (b *Bot) handleConfig(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, lang string) {
	sub := i.ApplicationCommandData().Options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "log_channel":
		channel := opts["channel"].ChannelValue(s)
		if err := b.store.UpdateLogChannel(ctx, i.GuildID, channel.ID); err != nil {
			b.replyError(s, i, lang, err)
			return
		}
		b.respond(s, i, b.locale.Get(lang, "commands.configuration.moderation.default_log_channel.done", channel.ID), true)

	case "log_types":
		enable := opts["action"].StringValue() == "enable"
		var categories []modlog.Category
		var names []string
		for _, part := range strings.Split(opts["categories"].StringValue(), ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			category, ok := modlog.CategoryFromName(part)
			if !ok {
				b.respond(s, i, b.locale.Get(lang, "commands.configuration.moderation.log_types.error_unknown", part), true)
				return
			}
			categories = append(categories, category)
			names = append(names, category.String())
		}
		if len(categories) == 0 {
			b.respond(s, i, b.locale.Get(lang, "commands.configuration.moderation.log_types.error_unknown", ""), true)
			return
		}

		settings := b.guildSettings(ctx, i.GuildID)
		mask := modlog.Mask(settings.LogTypes)
		if enable {
			mask = mask.With(categories...)
		} else {
			mask = mask.Without(categories...)
		}
		if err := b.store.UpdateLogTypes(ctx, i.GuildID, int(mask)); err != nil {
			b.replyError(s, i, lang, err)
			return
		}
		b.respond(s, i, b.locale.Get(lang, "commands.configuration.moderation.log_types.done", strings.Join(names, ", ")), true)

	case "warn_expire":
		days := int(opts["days"].IntValue())
		if days < 1 {
			b.respond(s, i, b.locale.Get(lang, "commands.configuration.moderation.warn_expire_time.error_too_low"), true)
			return
		}
		if err := b.store.UpdateWarnExpireDays(ctx, i.GuildID, days); err != nil {
			b.replyError(s, i, lang, err)
			return
		}
		b.respond(s, i, b.locale.Get(lang, "commands.configuration.moderation.warn_expire_time.done", days), true)

	case "language":
		value := opts["value"].StringValue()
		if !b.locale.Supported(value) {
			b.respond(s, i, b.locale.Get(lang, "commands.configuration.core.bot_language.error_unknown", value), true)
			return
		}
		if err := b.store.UpdateLanguage(ctx, i.GuildID, value); err != nil {
			b.replyError(s, i, lang, err)
			return
		}
		// Confirm in the language that was just selected.
		b.respond(s, i, b.locale.Get(value, "commands.configuration.core.bot_language.done", b.locale.Get(value, "languages."+value)), true)
	}
}
