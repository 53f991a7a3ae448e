package cache

import (
	"errors"
	"testing"
	"time"

	"klik-api/models"
	"klik-api/utils"
)

func TestGetProfilesLoadsOnlyMisses(t *testing.T) {
	c := New(time.Minute, time.Minute)
	var calls [][]string
	loader := func(names []string) (map[string]models.ProfileSummary, error) {
		calls = append(calls, names)
		out := make(map[string]models.ProfileSummary)
		for _, n := range names {
			if n == "ghost" {
				continue
			}
			out[n] = models.ProfileSummary{ID: "id-" + n, Username: n}
		}
		return out, nil
	}

	got, err := c.GetProfiles([]string{"ana", "ghost"}, loader)
	if err != nil {
		t.Fatal(err)
	}
	if got["ana"].ID != "id-ana" {
		t.Errorf("unexpected profile %+v", got["ana"])
	}
	if _, ok := got["ghost"]; ok {
		t.Error("unknown username should be absent")
	}

	got, err = c.GetProfiles([]string{"ANA", "bruno"}, loader)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || len(calls[1]) != 1 || calls[1][0] != "bruno" {
		t.Errorf("expected second load for bruno only, got %v", calls)
	}
	if got["ana"].ID != "id-ana" || got["bruno"].ID != "id-bruno" {
		t.Errorf("unexpected result %+v", got)
	}

	c.InvalidateProfile("Ana")
	c.GetProfiles([]string{"ana"}, loader)
	if len(calls) != 3 {
		t.Errorf("expected reload after invalidation, got %d calls", len(calls))
	}
}

func TestGetProfilesLoaderError(t *testing.T) {
	c := New(time.Minute, time.Minute)
	_, err := c.GetProfiles([]string{"ana"}, func([]string) (map[string]models.ProfileSummary, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Error("expected loader error")
	}
}

func TestTrendingTTL(t *testing.T) {
	c := New(time.Minute, time.Hour)
	calls := 0
	loader := func() ([]utils.HashtagCount, error) {
		calls++
		return []utils.HashtagCount{{Hashtag: "go", Count: calls}}, nil
	}

	c.GetTrending(loader)
	got, _ := c.GetTrending(loader)
	if calls != 1 || got[0].Count != 1 {
		t.Errorf("expected cached result, calls=%d", calls)
	}

	c.InvalidateTrending()
	got, _ = c.GetTrending(loader)
	if calls != 2 || got[0].Count != 2 {
		t.Errorf("expected reload after invalidation, calls=%d", calls)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	c := New(time.Nanosecond, time.Nanosecond)
	c.GetProfiles([]string{"ana"}, func(n []string) (map[string]models.ProfileSummary, error) {
		return map[string]models.ProfileSummary{"ana": {ID: "1"}}, nil
	})
	c.GetTrending(func() ([]utils.HashtagCount, error) { return nil, nil })
	time.Sleep(time.Millisecond)

	c.cleanup()
	if len(c.profileCache) != 0 || c.trendingCache != nil {
		t.Error("expected expired entries to be removed")
	}
}
