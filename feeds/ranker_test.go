package feeds

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/config"
	"castfeed/storage/models"
)

var sortCandidatesTests = []struct {
	name       string
	candidates []string
	scores     map[string]float64
	expected   []string
}{
	{
		"descending by score",
		[]string{"a", "b", "c"},
		map[string]float64{"a": 0.1, "b": 0.9, "c": 0.5},
		[]string{"b", "c", "a"},
	},
	{
		"content id breaks ties",
		[]string{"c", "a", "b"},
		map[string]float64{"a": 0.5, "b": 0.5, "c": 0.5},
		[]string{"a", "b", "c"},
	},
	{
		"nil scores keep candidate order",
		[]string{"c", "a", "b"},
		nil,
		[]string{"c", "a", "b"},
	},
	{
		"unscored candidates sink below scored ones",
		[]string{"a", "b", "c"},
		map[string]float64{"b": 1.0},
		[]string{"b", "a", "c"},
	},
}

func TestSortCandidates(t *testing.T) {
	for _, tt := range sortCandidatesTests {
		t.Run(tt.name, func(t *testing.T) {
			sorted := sortCandidates(tt.candidates, tt.scores)
			if len(sorted) != len(tt.expected) {
				t.Fatalf("got %d ids, want %d", len(sorted), len(tt.expected))
			}
			for i := range sorted {
				if sorted[i] != tt.expected[i] {
					t.Errorf("position %d: got %q, want %q", i, sorted[i], tt.expected[i])
				}
			}
		})
	}
}

func TestSortCandidatesDoesNotMutateInput(t *testing.T) {
	candidates := []string{"a", "b"}
	sortCandidates(candidates, map[string]float64{"b": 1.0})
	if candidates[0] != "a" || candidates[1] != "b" {
		t.Errorf("input slice was reordered: %v", candidates)
	}
}

func TestGuestPayloadPrefixesDefaults(t *testing.T) {
	pinnedFirst := models.Content{ID: primitive.NewObjectID(), Visibility: models.VisibilityPublish}
	pinnedSecond := models.Content{ID: primitive.NewObjectID(), Visibility: models.VisibilityPublish}
	ranked := models.Content{ID: primitive.NewObjectID(), Visibility: models.VisibilityPublish}

	items := []models.GuestFeedItem{
		{ID: primitive.NewObjectID(), Content: ranked.ID, Score: 99.0},
	}
	payload, pageIDs := guestPayload(
		[]*models.Content{&pinnedFirst, &pinnedSecond},
		items,
		map[primitive.ObjectID]*models.Content{ranked.ID: &ranked},
	)

	if len(payload) != 3 {
		t.Fatalf("got %d payload items, want 3", len(payload))
	}
	// Pinned entries come first regardless of ranked scores.
	if payload[0].Payload.ID != pinnedFirst.ID.Hex() || payload[1].Payload.ID != pinnedSecond.ID.Hex() {
		t.Errorf("pinned contents are not the payload prefix")
	}
	if payload[0].ID != DefaultPayloadID || payload[1].ID != DefaultPayloadID {
		t.Errorf("pinned entries must carry the default payload id")
	}
	if payload[2].Payload.ID != ranked.ID.Hex() {
		t.Errorf("ranked content missing after prefix")
	}
	// Cursors derive from the ranked page only.
	if len(pageIDs) != 1 || pageIDs[0] != items[0].ID {
		t.Errorf("page ids should cover ranked items only, got %v", pageIDs)
	}
}

func TestGuestPayloadEmptyFeed(t *testing.T) {
	payload, pageIDs := guestPayload(nil, nil, nil)
	if len(payload) != 0 {
		t.Errorf("got %d payload items, want 0", len(payload))
	}
	meta := buildMeta(pageIDs)
	if meta.ResultCount != 0 || meta.OldestID != "" || meta.NewestID != "" {
		t.Errorf("empty feed meta should be zero-valued, got %+v", meta)
	}
}

func TestGuestPayloadDropsUnhydratedItems(t *testing.T) {
	items := []models.GuestFeedItem{
		{ID: primitive.NewObjectID(), Content: primitive.NewObjectID()},
	}
	payload, pageIDs := guestPayload(nil, items, map[primitive.ObjectID]*models.Content{})
	if len(payload) != 0 || len(pageIDs) != 0 {
		t.Errorf("items without published content must drop out")
	}
}

func TestBuildMeta(t *testing.T) {
	first := primitive.NewObjectID()
	last := primitive.NewObjectID()

	meta := buildMeta([]primitive.ObjectID{first, last})
	if meta.ResultCount != 2 {
		t.Errorf("got resultCount %d, want 2", meta.ResultCount)
	}
	if meta.NewestID != first.Hex() {
		t.Errorf("got newestId %q, want first page entry", meta.NewestID)
	}
	if meta.OldestID != last.Hex() {
		t.Errorf("got oldestId %q, want last page entry", meta.OldestID)
	}
}

func TestMaxResultsClampsToLimit(t *testing.T) {
	r := &Ranker{cfg: config.FeedConfig{MaxResultsDefault: 25, MaxResultsLimit: 100}}

	tests := []struct {
		name      string
		requested int64
		expected  int64
	}{
		{"absent falls back to default", 0, 25},
		{"within limit passes through", 40, 40},
		{"above limit clamps", 5000, 100},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := r.maxResults(FeedQuery{MaxResults: test.requested}); got != test.expected {
				t.Errorf("got %d, want %d", got, test.expected)
			}
		})
	}
}
