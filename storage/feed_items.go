package storage

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"castfeed/storage/models"
)

// InsertFeedItems bulk-inserts one scoring run's rows and returns them with
// their assigned ids, preserving input order.
func (m *Manager) InsertFeedItems(ctx context.Context, items []models.FeedItem) ([]models.FeedItem, error) {
	if len(items) == 0 {
		return items, nil
	}

	docs := make([]interface{}, len(items))
	for i := range items {
		docs[i] = items[i]
	}

	result, err := m.dbConnection.Collection("feeditems").InsertMany(ctx, docs)
	if err != nil {
		log.Errorf("Error inserting feed items for viewer '%s': %v", items[0].Viewer.Hex(), err)
		return nil, err
	}
	for i, insertedID := range result.InsertedIDs {
		items[i].ID = insertedID.(primitive.ObjectID)
	}
	return items, nil
}

// MarkSeen stamps a feed item's seen marker. The filter requires the field
// to be unset, so a second call is a no-op and the first timestamp wins.
func (m *Manager) MarkSeen(
	ctx context.Context,
	viewer primitive.ObjectID,
	feedItemID primitive.ObjectID,
	credentialID primitive.ObjectID,
) error {
	_, err := m.dbConnection.Collection("feeditems").UpdateOne(
		ctx,
		markSeenFilter(viewer, feedItemID),
		bson.M{"$set": bson.M{
			"seen_at":         time.Now(),
			"seen_credential": credentialID,
		}},
	)
	if err != nil {
		log.Errorf("Error marking feed item '%s' seen: %v", feedItemID.Hex(), err)
	}
	return err
}

// MarkOffScreen stamps the off-screen marker, same one-way semantics as
// MarkSeen.
func (m *Manager) MarkOffScreen(
	ctx context.Context,
	viewer primitive.ObjectID,
	feedItemID primitive.ObjectID,
) error {
	_, err := m.dbConnection.Collection("feeditems").UpdateOne(
		ctx,
		markOffScreenFilter(viewer, feedItemID),
		bson.M{"$set": bson.M{"off_screen_at": time.Now()}},
	)
	if err != nil {
		log.Errorf("Error marking feed item '%s' off-screen: %v", feedItemID.Hex(), err)
	}
	return err
}

// markSeenFilter matches a viewer's row only while its seen marker is
// unset, making the mark a one-way flag.
func markSeenFilter(viewer, feedItemID primitive.ObjectID) bson.M {
	return bson.M{
		"viewer":  viewer,
		"_id":     feedItemID,
		"seen_at": bson.M{"$exists": false},
	}
}

func markOffScreenFilter(viewer, feedItemID primitive.ObjectID) bson.M {
	return bson.M{
		"viewer":        viewer,
		"_id":           feedItemID,
		"off_screen_at": bson.M{"$exists": false},
	}
}

// SeenFeedItems reads previously seen rows for history mode, newest seen
// first. sinceID/untilID arrive pre-swapped by the caller.
func (m *Manager) SeenFeedItems(
	ctx context.Context,
	viewer primitive.ObjectID,
	sinceID, untilID string,
	limit int64,
) ([]models.FeedItem, error) {
	filter, err := CursorFilter(
		bson.M{"viewer": viewer, "seen_at": bson.M{"$exists": true}},
		sinceID, untilID,
	)
	if err != nil {
		return nil, err
	}

	cursor, err := m.dbConnection.Collection("feeditems").Find(
		ctx,
		filter,
		options.Find().SetSort(bson.D{{Key: "seen_at", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	var items []models.FeedItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// LatestFeedItems returns the viewer's most recently materialized rows.
// Served when another refresh already holds the viewer's lock.
func (m *Manager) LatestFeedItems(
	ctx context.Context,
	viewer primitive.ObjectID,
	limit int64,
) ([]models.FeedItem, error) {
	cursor, err := m.dbConnection.Collection("feeditems").Find(
		ctx,
		bson.M{"viewer": viewer},
		options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}).SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	var items []models.FeedItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// OverexposedContentIDs returns contents already materialized for the viewer
// at least max times. The candidate pipeline excludes them so a feed refresh
// does not keep re-serving the same content.
func (m *Manager) OverexposedContentIDs(
	ctx context.Context,
	viewer primitive.ObjectID,
	max int,
) ([]primitive.ObjectID, error) {
	cursor, err := m.dbConnection.Collection("feeditems").Aggregate(ctx, bson.A{
		bson.M{"$match": bson.M{"viewer": viewer}},
		bson.M{"$group": bson.M{"_id": "$content", "count": bson.M{"$sum": 1}}},
		bson.M{"$match": bson.M{"count": bson.M{"$gte": max}}},
	})
	if err != nil {
		return nil, err
	}
	var results []bson.M
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(results))
	for _, result := range results {
		if id, ok := result["_id"].(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GuestFeedItems pages the country-segmented anonymous feed, best score
// first, newest first within equal scores.
func (m *Manager) GuestFeedItems(
	ctx context.Context,
	countryCode string,
	exclude []primitive.ObjectID,
	sinceID, untilID string,
	limit int64,
) ([]models.GuestFeedItem, error) {
	base := bson.M{"country_code": countryCode}
	if len(exclude) > 0 {
		base["content"] = bson.M{"$nin": exclude}
	}
	filter, err := CursorFilter(base, sinceID, untilID)
	if err != nil {
		return nil, err
	}

	cursor, err := m.dbConnection.Collection("guestfeeditems").Find(
		ctx,
		filter,
		options.Find().
			SetSort(bson.D{{Key: "score", Value: -1}, {Key: "created_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	var items []models.GuestFeedItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DefaultContents returns the pinned prefix entries in pin order.
func (m *Manager) DefaultContents(ctx context.Context) ([]models.DefaultContent, error) {
	cursor, err := m.dbConnection.Collection("defaultcontents").Find(
		ctx,
		bson.M{"index": bson.M{"$gte": 0}},
		options.Find().SetSort(bson.D{{Key: "index", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var defaults []models.DefaultContent
	if err = cursor.All(ctx, &defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// UpsertGuestFeedItem refreshes a country ranking entry, keyed by
// (country, content) so recomputation never duplicates rows.
func (m *Manager) UpsertGuestFeedItem(ctx context.Context, item models.GuestFeedItem) error {
	_, err := m.dbConnection.Collection("guestfeeditems").UpdateOne(
		ctx,
		bson.M{"country_code": item.CountryCode, "content": item.Content},
		bson.M{
			"$set":         bson.M{"score": item.Score},
			"$setOnInsert": bson.M{"created_at": time.Now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		log.Errorf("Error upserting guest feed item '%s': %v", item.Content.Hex(), err)
	}
	return err
}

// DeleteOldGuestFeedItems prunes aged guest rankings.
func (m *Manager) DeleteOldGuestFeedItems(ctx context.Context, olderThan time.Time) error {
	_, err := m.dbConnection.Collection("guestfeeditems").DeleteMany(
		ctx,
		bson.M{"created_at": bson.M{"$lt": olderThan}},
	)
	if err != nil {
		log.Errorf("Error deleting old guest feed items: %v", err)
	}
	return err
}
