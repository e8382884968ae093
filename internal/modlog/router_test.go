package modlog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/storage"
)

type fakeSettings struct {
	settings storage.GuildSettings
	err      error
}

func (f *fakeSettings) GetGuildSettings(_ context.Context, guildID string, _ storage.GuildSettings) (storage.GuildSettings, error) {
	if f.err != nil {
		return storage.GuildSettings{}, f.err
	}
	s := f.settings
	s.GuildID = guildID
	return s, nil
}

type fakeNotifier struct {
	channelIDs []string
	embeds     []*discordgo.MessageEmbed
	err        error
}

func (f *fakeNotifier) SendEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	f.channelIDs = append(f.channelIDs, channelID)
	f.embeds = append(f.embeds, embed)
	return f.err
}

func newTestRouter(settings *fakeSettings, notifier *fakeNotifier) *Router {
	return NewRouter(settings, notifier, storage.GuildSettings{}, zap.NewNop())
}

func TestRouterDeliversEnabledCategory(t *testing.T) {
	settings := &fakeSettings{settings: storage.GuildSettings{
		LogChannel: "log-chan",
		LogTypes:   int(Mask(0).With(Ban)),
	}}
	notifier := &fakeNotifier{}
	router := newTestRouter(settings, notifier)

	router.Log(context.Background(), Ban, Entry{GuildID: "g1", UserID: "u1", ModeratorID: "m1", CaseID: 4, Duration: "1d"})

	if len(notifier.embeds) != 1 {
		t.Fatalf("expected one delivery, got %d", len(notifier.embeds))
	}
	if notifier.channelIDs[0] != "log-chan" {
		t.Fatalf("delivered to wrong channel: %s", notifier.channelIDs[0])
	}
	embed := notifier.embeds[0]
	if embed.Title != "User Banned" {
		t.Fatalf("unexpected title: %q", embed.Title)
	}
	if !strings.Contains(embed.Description, "<@u1>") || !strings.Contains(embed.Description, "`Case ID:` 4") {
		t.Fatalf("unexpected description: %q", embed.Description)
	}
}

func TestRouterSkipsDisabledCategory(t *testing.T) {
	settings := &fakeSettings{settings: storage.GuildSettings{
		LogChannel: "log-chan",
		LogTypes:   int(Mask(0).With(Kick, Warn)),
	}}
	notifier := &fakeNotifier{}
	router := newTestRouter(settings, notifier)

	router.Log(context.Background(), Ban, Entry{GuildID: "g1", UserID: "u1"})

	if len(notifier.embeds) != 0 {
		t.Fatalf("expected no delivery for disabled category, got %d", len(notifier.embeds))
	}
}

func TestRouterSkipsWithoutChannel(t *testing.T) {
	settings := &fakeSettings{settings: storage.GuildSettings{
		LogTypes: int(Mask(0).With(Ban)),
	}}
	notifier := &fakeNotifier{}
	router := newTestRouter(settings, notifier)

	router.Log(context.Background(), Ban, Entry{GuildID: "g1", UserID: "u1"})

	if len(notifier.embeds) != 0 {
		t.Fatalf("expected no delivery without a channel, got %d", len(notifier.embeds))
	}
}

func TestRouterSwallowsDeliveryFailure(t *testing.T) {
	settings := &fakeSettings{settings: storage.GuildSettings{
		LogChannel: "log-chan",
		LogTypes:   int(Mask(0).With(Warn)),
	}}
	notifier := &fakeNotifier{err: errors.New("missing permissions")}
	router := newTestRouter(settings, notifier)

	// Must not panic or propagate; the triggering action already succeeded.
	router.Log(context.Background(), Warn, Entry{GuildID: "g1", UserID: "u1", Points: 2})
}

func TestRouterSwallowsSettingsFailure(t *testing.T) {
	settings := &fakeSettings{err: errors.New("db closed")}
	notifier := &fakeNotifier{}
	router := newTestRouter(settings, notifier)

	router.Log(context.Background(), Ban, Entry{GuildID: "g1", UserID: "u1"})

	if len(notifier.embeds) != 0 {
		t.Fatalf("expected no delivery on settings failure, got %d", len(notifier.embeds))
	}
}

func TestBuildEmbedGroupsRemovedWarnsByUser(t *testing.T) {
	entry := Entry{
		ModeratorID: "m1",
		RemovedWarns: []RemovedWarn{
			{UserID: "u1", CaseID: 1, Points: 2},
			{UserID: "u2", CaseID: 3, Points: 1},
			{UserID: "u1", CaseID: 5, Points: 4},
		},
	}
	embed := buildEmbed(RemoveMultipleWarns, entry, time.Now())

	if embed.Title != "Multiple Warnings Removed" {
		t.Fatalf("unexpected title: %q", embed.Title)
	}
	want := "`Warnings Removed:`\n<@u1>:\n  Case #1: 2 points\n  Case #5: 4 points\n\n<@u2>:\n  Case #3: 1 points"
	if embed.Description != want {
		t.Fatalf("unexpected description:\n%q\nwant:\n%q", embed.Description, want)
	}
}

func TestBuildEmbedClearMessages(t *testing.T) {
	entry := Entry{ChannelID: "c1", MessagesDeleted: 3, Messages: []string{"one", "two", "three"}, ModeratorID: "m1", ModeratorName: "mod"}
	embed := buildEmbed(ClearMessages, entry, time.Now())

	if embed.Title != "3 Messages Purged" {
		t.Fatalf("unexpected title: %q", embed.Title)
	}
	if !strings.Contains(embed.Description, "<#c1>") || !strings.Contains(embed.Description, "one\ntwo\nthree") {
		t.Fatalf("unexpected description: %q", embed.Description)
	}
	if embed.Footer == nil || embed.Footer.Text != "Action by: mod (m1)" {
		t.Fatalf("unexpected footer: %+v", embed.Footer)
	}
}
