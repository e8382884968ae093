package sweeper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"warden/internal/moderation"
	"warden/internal/modlog"
	"warden/internal/storage"
)

// Reverser is the platform surface needed to undo an expired ban.
type Reverser interface {
	Unban(ctx context.Context, guildID, userID, reason string) error
}

// Sweeper reverses time-bounded cases once their end date passes: expired
// bans are lifted every BanInterval, expired warnings dropped every
// WarnInterval. Reversals are attributed to the bot itself and routed
// through the same log path as foreground actions. A case is deleted only
// after its reversal succeeds, so a failing item is retried on the next
// tick rather than lost.
type Sweeper struct {
	store    *storage.Store
	platform Reverser
	logs     moderation.ActionLogger
	bot      moderation.Invoker
	logger   *zap.Logger

	banInterval  time.Duration
	warnInterval time.Duration
	now          func() time.Time
}

func New(store *storage.Store, platform Reverser, logs moderation.ActionLogger, bot moderation.Invoker, banInterval, warnInterval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:        store,
		platform:     platform,
		logs:         logs,
		bot:          bot,
		logger:       logger,
		banInterval:  banInterval,
		warnInterval: warnInterval,
		now:          time.Now,
	}
}

// Run drives both expiry loops until the context is cancelled. Each loop
// sweeps immediately, then on its own ticker; a failing iteration is
// logged and the loop keeps going.
func (s *Sweeper) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.loop(ctx, s.banInterval, "ban expiry", s.SweepBans)
	}()
	go func() {
		defer wg.Done()
		s.loop(ctx, s.warnInterval, "warn expiry", s.SweepWarns)
	}()
	wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, interval time.Duration, name string, sweep func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := sweep(ctx); err != nil {
			s.logger.Error("sweep iteration failed", zap.String("sweep", name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepBans lifts every ban whose end date has passed. A platform failure
// on one case leaves that case in place for the next sweep and does not
// stop the rest of the batch.
func (s *Sweeper) SweepBans(ctx context.Context) error {
	expired, err := s.store.ExpiredCases(ctx, storage.CaseBan, s.now())
	if err != nil {
		return err
	}

	for _, c := range expired {
		if err := s.platform.Unban(ctx, c.GuildID, c.UserID, "Ban expired"); err != nil {
			s.logger.Warn("unbanning expired case",
				zap.String("guild_id", c.GuildID),
				zap.String("user_id", c.UserID),
				zap.Int("case_id", c.CaseID),
				zap.Error(err))
			continue
		}

		s.logs.Log(ctx, modlog.Unban, modlog.Entry{
			GuildID:         c.GuildID,
			UserID:          c.UserID,
			ModeratorID:     s.bot.ID,
			ModeratorName:   s.bot.Name,
			ModeratorAvatar: s.bot.Avatar,
			Reason:          "Expired ban",
			CaseID:          c.CaseID,
		})

		if err := s.store.DeleteCase(ctx, c.GuildID, c.CaseID); err != nil {
			s.logger.Error("deleting expired ban case",
				zap.String("guild_id", c.GuildID),
				zap.Int("case_id", c.CaseID),
				zap.Error(err))
		}
	}
	return nil
}

// SweepWarns drops every warning whose end date has passed, logging each
// removal with its point value.
func (s *Sweeper) SweepWarns(ctx context.Context) error {
	expired, err := s.store.ExpiredCases(ctx, storage.CaseWarn, s.now())
	if err != nil {
		return err
	}

	for _, c := range expired {
		s.logs.Log(ctx, modlog.RemoveWarn, modlog.Entry{
			GuildID:         c.GuildID,
			UserID:          c.UserID,
			ModeratorID:     s.bot.ID,
			ModeratorName:   s.bot.Name,
			ModeratorAvatar: s.bot.Avatar,
			Reason:          "Expired warn",
			CaseID:          c.CaseID,
			Points:          c.Points,
		})

		if err := s.store.DeleteCase(ctx, c.GuildID, c.CaseID); err != nil {
			s.logger.Error("deleting expired warn case",
				zap.String("guild_id", c.GuildID),
				zap.Int("case_id", c.CaseID),
				zap.Error(err))
		}
	}
	return nil
}
