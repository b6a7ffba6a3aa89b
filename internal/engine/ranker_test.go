package engine

import (
	"math"
	"testing"
	"time"

	"github.com/lazypower/memorylayer/internal/store"
)

func fixedRanker(now time.Time) *Ranker {
	return &Ranker{now: func() time.Time { return now }}
}

func TestRankBoosts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-72 * time.Hour)

	tests := []struct {
		name    string
		hit     store.CodeHit
		current string
		viewed  []string
		want    float64
	}{
		{"base", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: old}, "", nil, 0.5},
		{"same dir", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: old}, "a/y.go", nil, 0.75},
		{"other dir", store.CodeHit{File: "b/x.go", Similarity: 0.5, LastModified: old}, "a/y.go", nil, 0.5},
		{"viewed", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: old}, "", []string{"a/x.go"}, 0.65},
		{"just modified", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: now}, "", nil, 0.65},
		{"modified 12h ago", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: now.Add(-12 * time.Hour)}, "", nil, 0.575},
		{"modified exactly 24h ago", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: now.Add(-24 * time.Hour)}, "", nil, 0.5},
		{"modified in the future", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: now.Add(time.Hour)}, "", nil, 0.5},
		{"all boosts", store.CodeHit{File: "a/x.go", Similarity: 0.5, LastModified: now}, "a/y.go", []string{"a/x.go"}, 0.5 * 1.5 * 1.3 * 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixedRanker(now).Rank([]store.CodeHit{tt.hit}, tt.current, tt.viewed)
			if len(got) != 1 {
				t.Fatalf("len = %d", len(got))
			}
			if math.Abs(got[0].Score-tt.want) > 1e-9 {
				t.Errorf("score = %f, want %f", got[0].Score, tt.want)
			}
			if got[0].Similarity != tt.hit.Similarity {
				t.Error("ranking must not change the raw similarity")
			}
		})
	}
}

func TestRankOrderStable(t *testing.T) {
	now := time.Now()
	hits := []store.CodeHit{
		{File: "first.go", Similarity: 0.4},
		{File: "second.go", Similarity: 0.4},
		{File: "pkg/boosted.go", Similarity: 0.3},
		{File: "third.go", Similarity: 0.4},
	}
	got := fixedRanker(now).Rank(hits, "pkg/main.go", nil)

	want := []string{"pkg/boosted.go", "first.go", "second.go", "third.go"}
	for i, w := range want {
		if got[i].File != w {
			t.Errorf("rank[%d] = %s, want %s", i, got[i].File, w)
		}
	}
}
