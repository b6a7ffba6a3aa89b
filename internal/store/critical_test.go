package store

import (
	"context"
	"testing"
	"time"

	"github.com/lazypower/memorylayer/internal/health"
)

func TestCriticalRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	a := health.CriticalContext{ID: "a", Type: health.TypeDecision, Content: "use sqlite", Reason: "single binary", CreatedAt: now}
	b := health.CriticalContext{ID: "b", Type: health.TypeRequirement, Content: "p99 < 200ms", CreatedAt: now.Add(time.Second)}
	for _, it := range []health.CriticalContext{a, b} {
		if err := db.SaveCritical(ctx, it); err != nil {
			t.Fatalf("SaveCritical: %v", err)
		}
	}

	got, err := db.ListCritical(ctx)
	if err != nil {
		t.Fatalf("ListCritical: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("got = %+v", got)
	}
	if got[0].Type != a.Type || got[0].Reason != a.Reason || !got[0].CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("round trip = %+v, want %+v", got[0], a)
	}

	if err := db.DeleteCritical(ctx, "a"); err != nil {
		t.Fatalf("DeleteCritical: %v", err)
	}
	got, _ = db.ListCritical(ctx)
	if len(got) != 1 {
		t.Errorf("after delete: %+v", got)
	}
}

func TestCriticalManagerWithStore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	m := health.NewCriticalManager(health.WithCriticalStore(db))
	m.MarkCritical(ctx, "never force push main", health.TypeInstruction, "", "user")

	reloaded := health.NewCriticalManager(health.WithCriticalStore(db))
	if err := reloaded.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.IsCritical("never force push main") {
		t.Error("reloaded manager lost critical item")
	}
}
