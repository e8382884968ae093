package moderation

import (
	"errors"
	"testing"
)

func baseRequest() PolicyRequest {
	return PolicyRequest{
		Actor:             Subject{ID: "actor", RolePos: 10},
		Target:            Subject{ID: "target", RolePos: 1},
		GuildOwnerID:      "owner",
		BotRolePos:        20,
		RequiresBotAction: true,
	}
}

func TestEvaluateAllows(t *testing.T) {
	if err := Evaluate(baseRequest()); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestEvaluateChecksInOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PolicyRequest)
		want   *Denial
	}{
		{"target bot", func(r *PolicyRequest) { r.Target.IsBot = true }, ErrTargetBot},
		{"target self", func(r *PolicyRequest) { r.Target.ID = r.Actor.ID }, ErrTargetSelf},
		{"target owner", func(r *PolicyRequest) { r.Target.ID = r.GuildOwnerID }, ErrTargetOwner},
		{"target admin", func(r *PolicyRequest) { r.Target.IsAdmin = true }, ErrTargetAdmin},
		{"bot outranked", func(r *PolicyRequest) { r.Target.RolePos = r.BotRolePos }, ErrBotRank},
		{"actor outranked", func(r *PolicyRequest) { r.Target.RolePos = r.Actor.RolePos }, ErrActorRank},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := baseRequest()
			tc.mutate(&req)
			if err := Evaluate(req); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEvaluateBotIsFirstFailingCheck(t *testing.T) {
	// A bot target that is also the actor's equal in rank reports the
	// bot denial, because checks short-circuit in order.
	req := baseRequest()
	req.Target.IsBot = true
	req.Target.RolePos = req.Actor.RolePos
	if err := Evaluate(req); !errors.Is(err, ErrTargetBot) {
		t.Fatalf("got %v, want %v", err, ErrTargetBot)
	}
}

func TestEvaluateOwnerBypassesActorRank(t *testing.T) {
	req := baseRequest()
	req.Actor.ID = req.GuildOwnerID
	req.Target.RolePos = 100
	req.BotRolePos = 200
	if err := Evaluate(req); err != nil {
		t.Fatalf("owner should bypass actor rank check, got %v", err)
	}
}

func TestEvaluateSkipsBotRankWhenNotRequired(t *testing.T) {
	req := baseRequest()
	req.RequiresBotAction = false
	req.BotRolePos = 0
	if err := Evaluate(req); err != nil {
		t.Fatalf("bot rank must be skipped for non-platform actions, got %v", err)
	}
}

func TestEvaluateActorRankProperty(t *testing.T) {
	// For every role-position pair, the action is denied iff the target's
	// position is at least the actor's, unless the actor owns the guild.
	for actorPos := 0; actorPos <= 5; actorPos++ {
		for targetPos := 0; targetPos <= 5; targetPos++ {
			req := baseRequest()
			req.Actor.RolePos = actorPos
			req.Target.RolePos = targetPos
			err := Evaluate(req)
			if targetPos >= actorPos {
				if !errors.Is(err, ErrActorRank) {
					t.Fatalf("actor=%d target=%d: got %v, want %v", actorPos, targetPos, err, ErrActorRank)
				}
			} else if err != nil {
				t.Fatalf("actor=%d target=%d: unexpected denial %v", actorPos, targetPos, err)
			}
		}
	}
}
