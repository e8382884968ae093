package moderation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"warden/internal/modlog"
	"warden/internal/storage"
)

const maxRemoveBatch = 10

// RemoveReport is the per-id outcome of a batch removal.
type RemoveReport struct {
	CaseID int
	Found  bool
	UserID string
	Type   string
}

// ListCases returns the guild's cases with at most one filter applied.
// Combining filters is a usage error rejected before any query runs.
func (e *Executor) ListCases(ctx context.Context, guildID string, filter storage.CaseFilter) ([]storage.Case, error) {
	set := 0
	if filter.UserID != "" {
		set++
	}
	if filter.ModeratorID != "" {
		set++
	}
	if filter.CaseID != 0 {
		set++
	}
	if set > 1 {
		return nil, deny("commands.moderation.cases.view_error_exclusive_filters")
	}
	return e.store.ListCases(ctx, guildID, filter)
}

// RemoveCases removes up to ten cases by id, reversing each one's platform
// side effect first: active mutes are lifted, bans are revoked, removed
// warnings are logged as a single entry (grouped when more than one). Ids
// that match nothing are reported back individually without failing the
// batch. Platform state that is already reversed (user left, ban lifted by
// hand) is tolerated; the case is still removed.
func (e *Executor) RemoveCases(ctx context.Context, guildID string, caseIDs []int, actor Invoker) ([]RemoveReport, error) {
	if len(caseIDs) == 0 || len(caseIDs) > maxRemoveBatch {
		return nil, ErrBatchSize
	}

	found, err := e.store.CasesByIDs(ctx, guildID, caseIDs)
	if err != nil {
		return nil, fmt.Errorf("loading cases: %w", err)
	}
	byID := make(map[int]storage.Case, len(found))
	for _, c := range found {
		byID[c.CaseID] = c
	}

	base := modlog.Entry{
		GuildID:         guildID,
		ModeratorID:     actor.ID,
		ModeratorName:   actor.Name,
		ModeratorAvatar: actor.Avatar,
	}

	reports := make([]RemoveReport, 0, len(caseIDs))
	var removedWarns []modlog.RemovedWarn
	var foundIDs []int

	for _, id := range caseIDs {
		c, ok := byID[id]
		if !ok {
			reports = append(reports, RemoveReport{CaseID: id})
			continue
		}
		foundIDs = append(foundIDs, id)

		switch c.Type {
		case storage.CaseMute:
			if err := e.platform.ClearTimeout(ctx, guildID, c.UserID); err != nil {
				e.logger.Warn("clearing timeout during case removal",
					zap.String("guild_id", guildID),
					zap.String("user_id", c.UserID),
					zap.Int("case_id", id),
					zap.Error(err))
			}
			entry := base
			entry.UserID = c.UserID
			entry.CaseID = id
			e.logs.Log(ctx, modlog.Unmute, entry)
		case storage.CaseBan:
			if err := e.platform.Unban(ctx, guildID, c.UserID, fmt.Sprintf("Case %d removed", id)); err != nil {
				e.logger.Warn("revoking ban during case removal",
					zap.String("guild_id", guildID),
					zap.String("user_id", c.UserID),
					zap.Int("case_id", id),
					zap.Error(err))
			}
			entry := base
			entry.UserID = c.UserID
			entry.CaseID = id
			e.logs.Log(ctx, modlog.Unban, entry)
		case storage.CaseWarn:
			removedWarns = append(removedWarns, modlog.RemovedWarn{
				UserID: c.UserID,
				CaseID: id,
				Points: c.Points,
			})
		}

		reports = append(reports, RemoveReport{CaseID: id, Found: true, UserID: c.UserID, Type: c.Type})
	}

	if err := e.store.DeleteCases(ctx, guildID, foundIDs); err != nil {
		return nil, fmt.Errorf("deleting cases: %w", err)
	}

	switch len(removedWarns) {
	case 0:
	case 1:
		entry := base
		entry.UserID = removedWarns[0].UserID
		entry.CaseID = removedWarns[0].CaseID
		entry.Points = removedWarns[0].Points
		e.logs.Log(ctx, modlog.RemoveWarn, entry)
	default:
		entry := base
		entry.RemovedWarns = removedWarns
		e.logs.Log(ctx, modlog.RemoveMultipleWarns, entry)
	}

	return reports, nil
}
