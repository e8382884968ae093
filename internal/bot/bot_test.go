package bot

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"warden/internal/locale"
	"warden/internal/storage"
)

func testGuild() *discordgo.Guild {
	return &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Position: 0, Permissions: discordgo.PermissionSendMessages},
			{ID: "mod", Position: 5, Permissions: discordgo.PermissionBanMembers},
			{ID: "admin", Position: 8, Permissions: discordgo.PermissionAdministrator},
			{ID: "cosmetic", Position: 2, Permissions: 0},
		},
	}
}

func TestMemberHasAdmin(t *testing.T) {
	guild := testGuild()

	admin := &discordgo.Member{Roles: []string{"cosmetic", "admin"}}
	if !memberHasAdmin(guild, admin) {
		t.Fatal("admin role not detected")
	}

	mod := &discordgo.Member{Roles: []string{"mod"}}
	if memberHasAdmin(guild, mod) {
		t.Fatal("ban permission mistaken for admin")
	}

	none := &discordgo.Member{}
	if memberHasAdmin(guild, none) {
		t.Fatal("@everyone mistaken for admin")
	}
}

func TestHighestRolePosition(t *testing.T) {
	guild := testGuild()

	member := &discordgo.Member{Roles: []string{"cosmetic", "mod"}}
	if got := highestRolePosition(guild, member); got != 5 {
		t.Fatalf("expected position 5, got %d", got)
	}

	none := &discordgo.Member{}
	if got := highestRolePosition(guild, none); got != 0 {
		t.Fatalf("expected position 0 for roleless member, got %d", got)
	}
}

func TestCommandDefinitionsWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for _, cmd := range commandDefinitions() {
		if seen[cmd.Name] {
			t.Fatalf("duplicate command name %q", cmd.Name)
		}
		seen[cmd.Name] = true

		// Required options must precede optional ones.
		assertOptionOrder(t, cmd.Name, cmd.Options)
	}
	for _, name := range []string{"ban", "kick", "mute", "unmute", "warn", "clear", "lock", "unlock", "cases", "config"} {
		if !seen[name] {
			t.Fatalf("command %q not defined", name)
		}
	}
}

func TestLockAndUnlockTakeReason(t *testing.T) {
	for _, cmd := range commandDefinitions() {
		if cmd.Name != "lock" && cmd.Name != "unlock" {
			continue
		}
		found := false
		for _, opt := range cmd.Options {
			if opt.Name == "reason" && opt.Type == discordgo.ApplicationCommandOptionString && !opt.Required {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: missing optional reason option", cmd.Name)
		}
	}
}

func TestCaseListEmbedGroupsPerUser(t *testing.T) {
	locales, err := locale.New("en")
	if err != nil {
		t.Fatalf("locale: %v", err)
	}
	b := &Bot{locale: locales}

	cases := []storage.Case{
		{CaseID: 1, UserID: "u1", Type: storage.CaseWarn, Reason: "spam"},
		{CaseID: 2, UserID: "u2", Type: storage.CaseBan, Reason: "raid"},
		{CaseID: 3, UserID: "u1", Type: storage.CaseMute},
	}
	embed := b.caseListEmbed("en", "title", cases)

	blocks := strings.Split(embed.Description, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected one block per user, got %d: %q", len(blocks), embed.Description)
	}
	if !strings.HasPrefix(blocks[0], "<@u1>") || !strings.HasPrefix(blocks[1], "<@u2>") {
		t.Fatalf("blocks not in first-appearance order: %q", embed.Description)
	}
	if !strings.Contains(blocks[0], "`#1` WARN — spam") || !strings.Contains(blocks[0], "`#3` MUTE — No reason provided") {
		t.Fatalf("u1 block missing its cases: %q", blocks[0])
	}
	if strings.Contains(blocks[0], "#2") || !strings.Contains(blocks[1], "`#2` BAN — raid") {
		t.Fatalf("u2's case misplaced: %q", embed.Description)
	}
}

func assertOptionOrder(t *testing.T, name string, options []*discordgo.ApplicationCommandOption) {
	t.Helper()
	sawOptional := false
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			assertOptionOrder(t, name+"."+opt.Name, opt.Options)
			continue
		}
		if !opt.Required && opt.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
			sawOptional = true
		} else if opt.Required && sawOptional {
			t.Fatalf("%s: required option %q after an optional one", name, opt.Name)
		}
	}
}
