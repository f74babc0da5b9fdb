package feeds

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"castfeed/config"
	"castfeed/storage"
	"castfeed/storage/models"
)

// CandidateParams identifies the viewer a candidate pool is built for.
type CandidateParams struct {
	AccountID       primitive.ObjectID
	UserID          primitive.ObjectID
	CountryCode     string
	PreferLanguages []string
	MaxResult       int64
}

// CandidatePipeline produces the unscored candidate content pool for a
// member feed: followed-author content up to a ratio-determined quota,
// backfilled from the global pool with age decay and language/geo
// preference. Blocked authors and overexposed contents never appear.
type CandidatePipeline struct {
	storageManager *storage.Manager
	cfg            config.FeedConfig
}

func NewCandidatePipeline(storageManager *storage.Manager, cfg config.FeedConfig) *CandidatePipeline {
	return &CandidatePipeline{
		storageManager: storageManager,
		cfg:            cfg,
	}
}

func (p *CandidatePipeline) GetFeedContents(ctx context.Context, params CandidateParams) ([]primitive.ObjectID, error) {
	followedIDs, err := p.storageManager.GetFollowedUserIDs(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	blockedIDs, err := p.storageManager.GetBlockedUserIDs(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	overexposedIDs, err := p.storageManager.OverexposedContentIDs(
		ctx, params.AccountID, p.cfg.DuplicateContentMax,
	)
	if err != nil {
		return nil, err
	}

	followQuota, backfillQuota := splitQuota(p.cfg, params.MaxResult)

	var followedContents []primitive.ObjectID
	if followQuota > 0 && len(followedIDs) > 0 {
		followedContents, err = p.storageManager.AggregateContentIDs(
			ctx,
			followedPoolPipeline(followedIDs, blockedIDs, overexposedIDs, followQuota),
		)
		if err != nil {
			return nil, err
		}
	}

	// Slots the followed pool could not fill go back to the global pool.
	backfillQuota += followQuota - int64(len(followedContents))

	if backfillQuota <= 0 {
		return followedContents, nil
	}

	exclude := append(overexposedIDs, followedContents...)
	cutoff := time.Now().AddDate(0, 0, -p.cfg.DecayDays)
	globalContents, err := p.storageManager.AggregateContentIDs(
		ctx,
		globalPoolPipeline(globalPoolQuery{
			ViewerUserID:    params.UserID,
			FollowedIDs:     followedIDs,
			BlockedIDs:      blockedIDs,
			ExcludeContents: exclude,
			Cutoff:          cutoff,
			DecayDays:       p.cfg.DecayDays,
			CountryCode:     params.CountryCode,
			PreferLanguages: params.PreferLanguages,
			Limit:           backfillQuota,
		}),
	)
	if err != nil {
		return nil, err
	}

	return append(followedContents, globalContents...), nil
}

// splitQuota derives the followed-author quota from the configured ratio,
// capped by FollowFeedMax and the page size. The remainder backfills from
// the global pool.
func splitQuota(cfg config.FeedConfig, maxResult int64) (followed, backfill int64) {
	followed = int64(math.Round(cfg.FollowFeedRatio * float64(maxResult)))
	if followed > int64(cfg.FollowFeedMax) {
		followed = int64(cfg.FollowFeedMax)
	}
	if followed > maxResult {
		followed = maxResult
	}
	if followed < 0 {
		followed = 0
	}
	return followed, maxResult - followed
}

// followedPoolPipeline samples published content from followed authors.
// Sampling, not recency, spreads the quota across the follow graph.
func followedPoolPipeline(
	followedIDs, blockedIDs []primitive.ObjectID,
	excludeContents []primitive.ObjectID,
	limit int64,
) mongo.Pipeline {
	match := bson.M{
		"author.id":  bson.M{"$in": followedIDs},
		"visibility": models.VisibilityPublish,
	}
	if len(blockedIDs) > 0 {
		match["author.id"] = bson.M{"$in": followedIDs, "$nin": blockedIDs}
	}
	if len(excludeContents) > 0 {
		match["_id"] = bson.M{"$nin": excludeContents}
	}
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$sample", Value: bson.M{"size": limit}}},
		bson.D{{Key: "$project", Value: bson.M{"_id": 1}}},
	}
}

type globalPoolQuery struct {
	ViewerUserID    primitive.ObjectID
	FollowedIDs     []primitive.ObjectID
	BlockedIDs      []primitive.ObjectID
	ExcludeContents []primitive.ObjectID
	Cutoff          time.Time
	DecayDays       int
	CountryCode     string
	PreferLanguages []string
	Limit           int64
}

// globalPoolPipeline ranks recent published content outside the viewer's
// follow graph by engagement with an age half-life, preferring the viewer's
// languages and country.
func globalPoolPipeline(q globalPoolQuery) mongo.Pipeline {
	excludedAuthors := append([]primitive.ObjectID{q.ViewerUserID}, q.FollowedIDs...)
	excludedAuthors = append(excludedAuthors, q.BlockedIDs...)

	match := bson.M{
		"author.id":  bson.M{"$nin": excludedAuthors},
		"visibility": models.VisibilityPublish,
		"created_at": bson.M{"$gte": q.Cutoff},
	}
	if len(q.ExcludeContents) > 0 {
		match["_id"] = bson.M{"$nin": q.ExcludeContents}
	}
	preference := bson.A{}
	if len(q.PreferLanguages) > 0 {
		preference = append(preference, bson.M{"language": bson.M{"$in": q.PreferLanguages}})
	}
	if q.CountryCode != "" {
		preference = append(preference, bson.M{"country_code": q.CountryCode})
	}
	if len(preference) > 0 {
		match["$or"] = preference
	}

	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$addFields", Value: bson.M{"decayed_weight": decayedWeightExpr(q.DecayDays)}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "decayed_weight", Value: -1}, {Key: "_id", Value: -1}}}},
		bson.D{{Key: "$limit", Value: q.Limit}},
		bson.D{{Key: "$project", Value: bson.M{"_id": 1}}},
	}
}

// decayedWeightExpr computes (1 + engagement) * exp(-ageDays / decayDays).
func decayedWeightExpr(decayDays int) bson.M {
	ageDays := bson.M{"$divide": bson.A{
		bson.M{"$subtract": bson.A{"$$NOW", "$created_at"}},
		int64(24 * time.Hour / time.Millisecond),
	}}
	return bson.M{"$multiply": bson.A{
		bson.M{"$add": bson.A{
			1,
			"$metrics.like_count",
			"$metrics.comment_count",
			"$metrics.recast_count",
		}},
		bson.M{"$exp": bson.M{"$divide": bson.A{
			bson.M{"$multiply": bson.A{-1, ageDays}},
			decayDays,
		}}},
	}}
}

// TrendingPipeline ranks recent published content for one country by
// decayed engagement. The guest feed builder persists its output as
// GuestFeedItem scores. Country "en" is the catch-all segment and applies
// no country filter.
func TrendingPipeline(countryCode string, cutoff time.Time, decayDays int, limit int64) mongo.Pipeline {
	match := bson.M{
		"visibility": models.VisibilityPublish,
		"created_at": bson.M{"$gte": cutoff},
	}
	if countryCode != "" && countryCode != "en" {
		match["country_code"] = countryCode
	}
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: match}},
		bson.D{{Key: "$addFields", Value: bson.M{"decayed_weight": decayedWeightExpr(decayDays)}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "decayed_weight", Value: -1}, {Key: "_id", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
		bson.D{{Key: "$project", Value: bson.M{"_id": 1, "decayed_weight": 1}}},
	}
}
