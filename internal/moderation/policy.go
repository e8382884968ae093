package moderation

// Subject is the already-fetched member data the policy checks run against.
// RolePos is the position of the member's highest role, 0 when roleless.
type Subject struct {
	ID      string
	IsBot   bool
	IsAdmin bool
	RolePos int
}

// PolicyRequest describes one attempted action for evaluation. The
// evaluator is pure; all role and permission data is resolved by the
// caller beforehand.
type PolicyRequest struct {
	Actor        Subject
	Target       Subject
	GuildOwnerID string

	// BotRolePos is the bot's own highest role position; checked only when
	// RequiresBotAction is set, since actions like warn touch no platform
	// state and work regardless of the bot's rank.
	BotRolePos        int
	RequiresBotAction bool
}

// Evaluate runs the hierarchy checks in order; the first failing check wins.
func Evaluate(req PolicyRequest) error {
	if req.Target.IsBot {
		return ErrTargetBot
	}
	if req.Target.ID == req.Actor.ID {
		return ErrTargetSelf
	}
	if req.Target.ID == req.GuildOwnerID {
		return ErrTargetOwner
	}
	if req.Target.IsAdmin {
		return ErrTargetAdmin
	}
	if req.RequiresBotAction && req.Target.RolePos >= req.BotRolePos {
		return ErrBotRank
	}
	if req.Actor.ID != req.GuildOwnerID && req.Target.RolePos >= req.Actor.RolePos {
		return ErrActorRank
	}
	return nil
}
