package feeds

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/config"
)

var splitQuotaTests = []struct {
	name             string
	ratio            float64
	followMax        int
	maxResult        int64
	expectedFollowed int64
	expectedBackfill int64
}{
	{"ratio splits the page", 0.5, 100, 20, 10, 10},
	{"follow max caps the followed quota", 0.5, 1, 20, 1, 19},
	{"ratio one takes the whole page", 1.0, 100, 25, 25, 0},
	{"ratio zero leaves everything to backfill", 0.0, 100, 25, 0, 25},
	{"quota never exceeds the page", 1.0, 100, 10, 10, 0},
}

func TestSplitQuota(t *testing.T) {
	for _, tt := range splitQuotaTests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.FeedConfig{
				FollowFeedRatio: tt.ratio,
				FollowFeedMax:   tt.followMax,
			}
			followed, backfill := splitQuota(cfg, tt.maxResult)
			if followed != tt.expectedFollowed {
				t.Errorf("followed: got %d, want %d", followed, tt.expectedFollowed)
			}
			if backfill != tt.expectedBackfill {
				t.Errorf("backfill: got %d, want %d", backfill, tt.expectedBackfill)
			}
		})
	}
}

func TestFollowedPoolPipelineExcludesBlockedAuthors(t *testing.T) {
	followed := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}
	blocked := []primitive.ObjectID{primitive.NewObjectID()}

	pipeline := followedPoolPipeline(followed, blocked, nil, 5)

	match := stageValue(t, pipeline[0], "$match").(bson.M)
	authorFilter, ok := match["author.id"].(bson.M)
	if !ok {
		t.Fatalf("match stage has no author filter: %v", match)
	}
	nin, ok := authorFilter["$nin"].([]primitive.ObjectID)
	if !ok || len(nin) != 1 || nin[0] != blocked[0] {
		t.Errorf("blocked author not excluded: %v", authorFilter)
	}
	if in, ok := authorFilter["$in"].([]primitive.ObjectID); !ok || len(in) != 2 {
		t.Errorf("followed authors not selected: %v", authorFilter)
	}
}

func TestFollowedPoolPipelineSamplesQuota(t *testing.T) {
	pipeline := followedPoolPipeline([]primitive.ObjectID{primitive.NewObjectID()}, nil, nil, 7)

	sample := stageValue(t, pipeline[1], "$sample").(bson.M)
	if size, ok := sample["size"].(int64); !ok || size != 7 {
		t.Errorf("got sample stage %v, want size 7", sample)
	}
}

func TestGlobalPoolPipelineExcludesGraphAndDecayedOut(t *testing.T) {
	viewer := primitive.NewObjectID()
	followed := primitive.NewObjectID()
	blocked := primitive.NewObjectID()
	excluded := primitive.NewObjectID()
	cutoff := time.Now().AddDate(0, 0, -7)

	pipeline := globalPoolPipeline(globalPoolQuery{
		ViewerUserID:    viewer,
		FollowedIDs:     []primitive.ObjectID{followed},
		BlockedIDs:      []primitive.ObjectID{blocked},
		ExcludeContents: []primitive.ObjectID{excluded},
		Cutoff:          cutoff,
		DecayDays:       7,
		Limit:           10,
	})

	match := stageValue(t, pipeline[0], "$match").(bson.M)
	nin := match["author.id"].(bson.M)["$nin"].([]primitive.ObjectID)
	for _, want := range []primitive.ObjectID{viewer, followed, blocked} {
		found := false
		for _, id := range nin {
			if id == want {
				found = true
			}
		}
		if !found {
			t.Errorf("author %s not excluded from global pool", want.Hex())
		}
	}

	createdAt := match["created_at"].(bson.M)
	if got := createdAt["$gte"].(time.Time); !got.Equal(cutoff) {
		t.Errorf("got decay cutoff %v, want %v", got, cutoff)
	}
	contentFilter := match["_id"].(bson.M)
	if nin := contentFilter["$nin"].([]primitive.ObjectID); len(nin) != 1 || nin[0] != excluded {
		t.Errorf("overexposed content not excluded: %v", contentFilter)
	}
}

func TestGlobalPoolPipelinePrefersLanguageAndCountry(t *testing.T) {
	pipeline := globalPoolPipeline(globalPoolQuery{
		ViewerUserID:    primitive.NewObjectID(),
		Cutoff:          time.Now(),
		DecayDays:       7,
		CountryCode:     "th",
		PreferLanguages: []string{"th", "en"},
		Limit:           10,
	})

	match := stageValue(t, pipeline[0], "$match").(bson.M)
	preference, ok := match["$or"].(bson.A)
	if !ok || len(preference) != 2 {
		t.Fatalf("expected language/country preference alternatives, got %v", match["$or"])
	}
}

func TestTrendingPipelineCountrySegmentation(t *testing.T) {
	pipeline := TrendingPipeline("th", time.Now(), 7, 50)
	match := stageValue(t, pipeline[0], "$match").(bson.M)
	if match["country_code"] != "th" {
		t.Errorf("country segment missing: %v", match)
	}

	// "en" is the catch-all segment.
	pipeline = TrendingPipeline("en", time.Now(), 7, 50)
	match = stageValue(t, pipeline[0], "$match").(bson.M)
	if _, ok := match["country_code"]; ok {
		t.Errorf("catch-all segment must not filter by country: %v", match)
	}
}

func stageValue(t *testing.T, stage bson.D, name string) interface{} {
	t.Helper()
	for _, element := range stage {
		if element.Key == name {
			return element.Value
		}
	}
	t.Fatalf("pipeline stage %s not found in %v", name, stage)
	return nil
}
