package moderation

import "errors"

// Denial is a policy rejection: user-facing, localized by the command layer
// through Key, never retried, and guaranteed to have caused no state change.
type Denial struct {
	Key string
}

func (d *Denial) Error() string {
	return "denied: " + d.Key
}

func deny(key string) *Denial {
	return &Denial{Key: key}
}

var (
	ErrTargetBot        = deny("moderation.error.target_bot")
	ErrTargetSelf       = deny("moderation.error.target_self")
	ErrTargetOwner      = deny("moderation.error.target_owner")
	ErrTargetAdmin      = deny("moderation.error.target_admin")
	ErrBotRank          = deny("moderation.error.bot_rank")
	ErrActorRank        = deny("moderation.error.actor_rank")
	ErrInvalidDuration  = deny("moderation.error.invalid_duration")
	ErrDurationTooShort = deny("moderation.error.duration_too_short")
	ErrMuteTooLong      = deny("moderation.error.mute_too_long")
	ErrAlreadyMuted     = deny("moderation.error.already_muted")
	ErrNotMuted         = deny("moderation.error.not_muted")
	ErrAlreadyLocked    = deny("commands.moderation.channel.error_already_locked")
	ErrAlreadyUnlocked  = deny("commands.moderation.channel.error_already_unlocked")
	ErrBatchSize        = deny("commands.moderation.cases.remove_invalid_ids")
)

// ErrExternalAction marks a platform mutation the external service rejected;
// nothing was persisted. ErrPersistence marks a case write that failed after
// the platform mutation already went through, leaving the two systems of
// record diverged until an operator reconciles them.
var (
	ErrExternalAction = errors.New("platform action failed")
	ErrPersistence    = errors.New("case persistence failed")
)

// AsDenial extracts a policy denial from an error chain.
func AsDenial(err error) (*Denial, bool) {
	var d *Denial
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}
