package moderation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"warden/internal/modlog"
	"warden/internal/storage"
)

// Platform is the slice of the chat platform the executor mutates. All
// operations are idempotent from the executor's point of view; "already in
// the requested state" errors are handled by callers where they matter.
type Platform interface {
	Ban(ctx context.Context, guildID, userID, reason string, purgeDays int) error
	Unban(ctx context.Context, guildID, userID, reason string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	ClearTimeout(ctx context.Context, guildID, userID string) error
	LockChannel(ctx context.Context, guildID, channelID, reason string) error
	UnlockChannel(ctx context.Context, guildID, channelID, reason string) error
	ChannelLocked(ctx context.Context, guildID, channelID string) (bool, error)
	PurgeMessages(ctx context.Context, channelID string, limit int) ([]string, error)
}

// ActionLogger receives completed-action notifications for routing.
type ActionLogger interface {
	Log(ctx context.Context, category modlog.Category, entry modlog.Entry)
}

// ActionContext carries the resolved member data for one member-targeted
// action: who invoked it, who it targets, and the hierarchy facts the
// policy checks need.
type ActionContext struct {
	GuildID      string
	Actor        Subject
	Target       Subject
	GuildOwnerID string
	BotRolePos   int

	// Display metadata for log entries.
	ActorName   string
	ActorAvatar string
}

func (ac ActionContext) policy(requiresBotAction bool) PolicyRequest {
	return PolicyRequest{
		Actor:             ac.Actor,
		Target:            ac.Target,
		GuildOwnerID:      ac.GuildOwnerID,
		BotRolePos:        ac.BotRolePos,
		RequiresBotAction: requiresBotAction,
	}
}

func (ac ActionContext) entry() modlog.Entry {
	return modlog.Entry{
		GuildID:         ac.GuildID,
		UserID:          ac.Target.ID,
		ModeratorID:     ac.Actor.ID,
		ModeratorName:   ac.ActorName,
		ModeratorAvatar: ac.ActorAvatar,
	}
}

// Invoker identifies the acting moderator for channel-scoped actions,
// which have no target member and skip hierarchy checks.
type Invoker struct {
	ID     string
	Name   string
	Avatar string
}

// Executor runs one moderation action end to end: policy check, platform
// mutation, case persistence, log emission. Policy denials abort before
// any mutation; platform failures abort before persistence, so a failed
// external action never leaves an orphan case.
type Executor struct {
	store    *storage.Store
	platform Platform
	logs     ActionLogger
	defaults storage.GuildSettings
	logger   *zap.Logger
	now      func() time.Time
}

func NewExecutor(store *storage.Store, platform Platform, logs ActionLogger, defaults storage.GuildSettings, logger *zap.Logger) *Executor {
	return &Executor{
		store:    store,
		platform: platform,
		logs:     logs,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
	}
}

// Ban bans the target, optionally for a bounded duration ("13d" style).
// An empty duration means permanent. Returns the allocated case id.
func (e *Executor) Ban(ctx context.Context, ac ActionContext, reason, duration string, purgeDays int) (int, error) {
	if err := Evaluate(ac.policy(true)); err != nil {
		return 0, err
	}

	now := e.now()
	var endDate *time.Time
	if duration != "" {
		d, err := ParseDuration(duration)
		if err != nil {
			return 0, err
		}
		if d < MinActionDuration {
			return 0, ErrDurationTooShort
		}
		until := now.Add(d)
		endDate = &until
	}

	if err := e.platform.Ban(ctx, ac.GuildID, ac.Target.ID, reason, purgeDays); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExternalAction, err)
	}

	caseID, err := e.store.InsertCase(ctx, storage.Case{
		GuildID:     ac.GuildID,
		UserID:      ac.Target.ID,
		ModeratorID: ac.Actor.ID,
		Type:        storage.CaseBan,
		Reason:      reason,
		CreatedAt:   now,
		EndDate:     endDate,
	})
	if err != nil {
		return 0, e.divergence(ac, storage.CaseBan, err)
	}

	entry := ac.entry()
	entry.Reason = reason
	entry.Duration = duration
	entry.CaseID = caseID
	e.logs.Log(ctx, modlog.Ban, entry)
	return caseID, nil
}

func (e *Executor) Kick(ctx context.Context, ac ActionContext, reason string) (int, error) {
	if err := Evaluate(ac.policy(true)); err != nil {
		return 0, err
	}

	if err := e.platform.Kick(ctx, ac.GuildID, ac.Target.ID, reason); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExternalAction, err)
	}

	caseID, err := e.store.InsertCase(ctx, storage.Case{
		GuildID:     ac.GuildID,
		UserID:      ac.Target.ID,
		ModeratorID: ac.Actor.ID,
		Type:        storage.CaseKick,
		Reason:      reason,
		CreatedAt:   e.now(),
	})
	if err != nil {
		return 0, e.divergence(ac, storage.CaseKick, err)
	}

	entry := ac.entry()
	entry.Reason = reason
	entry.CaseID = caseID
	e.logs.Log(ctx, modlog.Kick, entry)
	return caseID, nil
}

// Mute times the target out for the given duration. Mutes are always
// time-bounded; a second mute while one is active is denied.
func (e *Executor) Mute(ctx context.Context, ac ActionContext, reason, duration string) (int, error) {
	if err := Evaluate(ac.policy(true)); err != nil {
		return 0, err
	}

	d, err := ParseDuration(duration)
	if err != nil {
		return 0, err
	}
	if d < MinActionDuration {
		return 0, ErrDurationTooShort
	}
	if d > MaxMuteDuration {
		return 0, ErrMuteTooLong
	}

	now := e.now()
	if _, active, err := e.store.ActiveMuteCase(ctx, ac.GuildID, ac.Target.ID, now); err != nil {
		return 0, fmt.Errorf("checking active mute: %w", err)
	} else if active {
		return 0, ErrAlreadyMuted
	}

	until := now.Add(d)
	if err := e.platform.Timeout(ctx, ac.GuildID, ac.Target.ID, until, reason); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExternalAction, err)
	}

	caseID, err := e.store.InsertCase(ctx, storage.Case{
		GuildID:     ac.GuildID,
		UserID:      ac.Target.ID,
		ModeratorID: ac.Actor.ID,
		Type:        storage.CaseMute,
		Reason:      reason,
		CreatedAt:   now,
		EndDate:     &until,
	})
	if err != nil {
		return 0, e.divergence(ac, storage.CaseMute, err)
	}

	entry := ac.entry()
	entry.Reason = reason
	entry.Duration = duration
	entry.CaseID = caseID
	e.logs.Log(ctx, modlog.Mute, entry)
	return caseID, nil
}

// Unmute lifts an active mute and removes its case so the user can be
// muted again later.
func (e *Executor) Unmute(ctx context.Context, ac ActionContext) error {
	if err := Evaluate(ac.policy(true)); err != nil {
		return err
	}

	muteCase, active, err := e.store.ActiveMuteCase(ctx, ac.GuildID, ac.Target.ID, e.now())
	if err != nil {
		return fmt.Errorf("checking active mute: %w", err)
	}
	if !active {
		return ErrNotMuted
	}

	if err := e.platform.ClearTimeout(ctx, ac.GuildID, ac.Target.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalAction, err)
	}

	if err := e.store.DeleteCase(ctx, ac.GuildID, muteCase.CaseID); err != nil {
		return e.divergence(ac, storage.CaseMute, err)
	}

	entry := ac.entry()
	entry.CaseID = muteCase.CaseID
	e.logs.Log(ctx, modlog.Unmute, entry)
	return nil
}

// Warn records a warning worth the given points (default 1) and returns
// the case id plus the target's new outstanding total. When expire is set
// the warning ends after the guild's configured expiry window.
func (e *Executor) Warn(ctx context.Context, ac ActionContext, reason string, points int, expire bool) (caseID, totalPoints int, err error) {
	if err := Evaluate(ac.policy(false)); err != nil {
		return 0, 0, err
	}
	if points <= 0 {
		points = 1
	}

	now := e.now()
	var endDate *time.Time
	var expireDays int
	if expire {
		settings, err := e.store.GetGuildSettings(ctx, ac.GuildID, e.defaults)
		if err != nil {
			return 0, 0, fmt.Errorf("loading guild settings: %w", err)
		}
		expireDays = settings.WarnExpireDays
		until := now.Add(time.Duration(expireDays) * 24 * time.Hour)
		endDate = &until
	}

	caseID, err = e.store.InsertCase(ctx, storage.Case{
		GuildID:     ac.GuildID,
		UserID:      ac.Target.ID,
		ModeratorID: ac.Actor.ID,
		Type:        storage.CaseWarn,
		Reason:      reason,
		CreatedAt:   now,
		EndDate:     endDate,
		Points:      points,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("inserting warn case: %w", err)
	}

	totalPoints, err = e.store.TotalWarnPoints(ctx, ac.GuildID, ac.Target.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("summing warn points: %w", err)
	}

	entry := ac.entry()
	entry.Reason = reason
	entry.Points = points
	entry.CaseID = caseID
	if expire {
		entry.Duration = strconv.Itoa(expireDays)
	}
	e.logs.Log(ctx, modlog.Warn, entry)
	return caseID, totalPoints, nil
}

// Lock denies message sending in the channel. A channel that is already
// locked is left untouched and produces no log entry. Channel actions are
// logged but not persisted as cases, so they cannot be removed later.
func (e *Executor) Lock(ctx context.Context, guildID, channelID, reason string, actor Invoker) error {
	locked, err := e.platform.ChannelLocked(ctx, guildID, channelID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalAction, err)
	}
	if locked {
		return ErrAlreadyLocked
	}

	if err := e.platform.LockChannel(ctx, guildID, channelID, reason); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalAction, err)
	}
	e.logs.Log(ctx, modlog.Lock, modlog.Entry{
		GuildID:         guildID,
		ChannelID:       channelID,
		ModeratorID:     actor.ID,
		ModeratorName:   actor.Name,
		ModeratorAvatar: actor.Avatar,
		Reason:          reason,
	})
	return nil
}

func (e *Executor) Unlock(ctx context.Context, guildID, channelID, reason string, actor Invoker) error {
	locked, err := e.platform.ChannelLocked(ctx, guildID, channelID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalAction, err)
	}
	if !locked {
		return ErrAlreadyUnlocked
	}

	if err := e.platform.UnlockChannel(ctx, guildID, channelID, reason); err != nil {
		return fmt.Errorf("%w: %v", ErrExternalAction, err)
	}
	e.logs.Log(ctx, modlog.Unlock, modlog.Entry{
		GuildID:         guildID,
		ChannelID:       channelID,
		ModeratorID:     actor.ID,
		ModeratorName:   actor.Name,
		ModeratorAvatar: actor.Avatar,
		Reason:          reason,
	})
	return nil
}

// ClearMessages bulk-deletes up to limit recent messages in the channel
// and returns how many were removed.
func (e *Executor) ClearMessages(ctx context.Context, guildID, channelID string, limit int, actor Invoker) (int, error) {
	messages, err := e.platform.PurgeMessages(ctx, channelID, limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExternalAction, err)
	}
	e.logs.Log(ctx, modlog.ClearMessages, modlog.Entry{
		GuildID:         guildID,
		ChannelID:       channelID,
		ModeratorID:     actor.ID,
		ModeratorName:   actor.Name,
		ModeratorAvatar: actor.Avatar,
		MessagesDeleted: len(messages),
		Messages:        messages,
	})
	return len(messages), nil
}

// divergence records a case write that failed after the platform mutation
// already succeeded. The two systems of record disagree until an operator
// reconciles them, so this is logged apart from ordinary failures.
func (e *Executor) divergence(ac ActionContext, caseType string, err error) error {
	e.logger.Error("case persistence failed after platform mutation",
		zap.String("guild_id", ac.GuildID),
		zap.String("user_id", ac.Target.ID),
		zap.String("moderator_id", ac.Actor.ID),
		zap.String("case_type", caseType),
		zap.Error(err))
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
