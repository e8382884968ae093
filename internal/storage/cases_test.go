package storage

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestInsertCaseAssignsSequentialIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		id, err := store.InsertCase(ctx, Case{
			GuildID:     "g1",
			UserID:      "u1",
			ModeratorID: "m1",
			Type:        CaseKick,
			CreatedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("insert case %d: %v", i, err)
		}
		if id != i {
			t.Fatalf("expected case id %d, got %d", i, id)
		}
	}

	// Allocation is guild-scoped: another guild starts back at 1.
	id, err := store.InsertCase(ctx, Case{GuildID: "g2", UserID: "u1", ModeratorID: "m1", Type: CaseKick, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("insert case: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected case id 1 for new guild, got %d", id)
	}
}

func TestInsertCaseConcurrentAllocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 20
	ids := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.InsertCase(ctx, Case{
				GuildID:     "g1",
				UserID:      "u1",
				ModeratorID: "m1",
				Type:        CaseWarn,
				Points:      1,
				CreatedAt:   time.Now(),
			})
			if err != nil {
				t.Errorf("insert case: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	var got []int
	for id := range ids {
		got = append(got, id)
	}
	sort.Ints(got)
	if len(got) != workers {
		t.Fatalf("expected %d ids, got %d", workers, len(got))
	}
	for i, id := range got {
		if id != i+1 {
			t.Fatalf("expected dense ids 1..%d, got %v", workers, got)
		}
	}
}

func TestCaseIDNotReusedAfterDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: CaseKick, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u2", ModeratorID: "m1", Type: CaseKick, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.DeleteCase(ctx, "g1", first); err != nil {
		t.Fatalf("delete: %v", err)
	}

	third, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u3", ModeratorID: "m1", Type: CaseKick, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if third != second+1 {
		t.Fatalf("expected id %d after delete, got %d", second+1, third)
	}
}

func TestExpiredCases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: CaseBan, CreatedAt: now.Add(-2 * time.Hour), EndDate: &past}); err != nil {
		t.Fatalf("insert expired ban: %v", err)
	}
	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u2", ModeratorID: "m1", Type: CaseBan, CreatedAt: now, EndDate: &future}); err != nil {
		t.Fatalf("insert active ban: %v", err)
	}
	// Permanent ban, no end date: never expires.
	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u3", ModeratorID: "m1", Type: CaseBan, CreatedAt: now}); err != nil {
		t.Fatalf("insert permanent ban: %v", err)
	}
	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u4", ModeratorID: "m1", Type: CaseWarn, Points: 2, CreatedAt: now.Add(-2 * time.Hour), EndDate: &past}); err != nil {
		t.Fatalf("insert expired warn: %v", err)
	}

	expired, err := store.ExpiredCases(ctx, CaseBan, now)
	if err != nil {
		t.Fatalf("expired cases: %v", err)
	}
	if len(expired) != 1 || expired[0].UserID != "u1" {
		t.Fatalf("expected single expired ban for u1, got %+v", expired)
	}

	expiredWarns, err := store.ExpiredCases(ctx, CaseWarn, now)
	if err != nil {
		t.Fatalf("expired warns: %v", err)
	}
	if len(expiredWarns) != 1 || expiredWarns[0].Points != 2 {
		t.Fatalf("expected single expired warn with 2 points, got %+v", expiredWarns)
	}
}

func TestActiveMuteCase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: CaseMute, CreatedAt: now, EndDate: &future}); err != nil {
		t.Fatalf("insert mute: %v", err)
	}
	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u2", ModeratorID: "m1", Type: CaseMute, CreatedAt: now.Add(-2 * time.Hour), EndDate: &past}); err != nil {
		t.Fatalf("insert expired mute: %v", err)
	}

	if _, ok, err := store.ActiveMuteCase(ctx, "g1", "u1", now); err != nil || !ok {
		t.Fatalf("expected active mute for u1, ok=%t err=%v", ok, err)
	}
	if _, ok, err := store.ActiveMuteCase(ctx, "g1", "u2", now); err != nil || ok {
		t.Fatalf("expected no active mute for u2, ok=%t err=%v", ok, err)
	}
	// Guild-scoped: same user in another guild is not muted.
	if _, ok, err := store.ActiveMuteCase(ctx, "g2", "u1", now); err != nil || ok {
		t.Fatalf("expected no active mute in g2, ok=%t err=%v", ok, err)
	}
}

func TestTotalWarnPoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, points := range []int{1, 2, 3} {
		if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: CaseWarn, Points: points, CreatedAt: now}); err != nil {
			t.Fatalf("insert warn: %v", err)
		}
	}
	// A ban carries no points and must not contribute.
	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: CaseBan, CreatedAt: now}); err != nil {
		t.Fatalf("insert ban: %v", err)
	}

	total, err := store.TotalWarnPoints(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("total warn points: %v", err)
	}
	if total != 6 {
		t.Fatalf("expected 6 points, got %d", total)
	}

	cases, err := store.ListCases(ctx, "g1", CaseFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("list cases: %v", err)
	}
	if err := store.DeleteCases(ctx, "g1", []int{cases[0].CaseID}); err != nil {
		t.Fatalf("delete case: %v", err)
	}
	total, err = store.TotalWarnPoints(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("total warn points: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected 5 points after removal, got %d", total)
	}
}

func TestListCasesFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u1", ModeratorID: "m1", Type: CaseKick, CreatedAt: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertCase(ctx, Case{GuildID: "g1", UserID: "u2", ModeratorID: "m2", Type: CaseBan, CreatedAt: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	byUser, err := store.ListCases(ctx, "g1", CaseFilter{UserID: "u2"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 1 || byUser[0].Type != CaseBan {
		t.Fatalf("unexpected result by user: %+v", byUser)
	}

	byMod, err := store.ListCases(ctx, "g1", CaseFilter{ModeratorID: "m1"})
	if err != nil {
		t.Fatalf("list by moderator: %v", err)
	}
	if len(byMod) != 1 || byMod[0].UserID != "u1" {
		t.Fatalf("unexpected result by moderator: %+v", byMod)
	}

	all, err := store.ListCases(ctx, "g1", CaseFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].CaseID != 1 || all[1].CaseID != 2 {
		t.Fatalf("expected ordered full list, got %+v", all)
	}
}
