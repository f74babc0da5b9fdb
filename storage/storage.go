package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"castfeed/storage/cache"
	"castfeed/storage/models"
)

const usersCacheExpiration = 12 * time.Hour

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountNotFound = errors.New("account not found")
)

// Manager wraps the document store and the Redis caches in front of it.
type Manager struct {
	dbConnection *mongo.Database

	usersCache cache.UsersCache
}

func NewManager(dbConnection *mongo.Database, redisConnection *redis.Client) *Manager {
	return &Manager{
		dbConnection: dbConnection,
		usersCache:   cache.NewUsersCache(redisConnection, usersCacheExpiration),
	}
}

// GetUserByAccount resolves the person user owned by an account.
func (m *Manager) GetUserByAccount(ctx context.Context, accountID primitive.ObjectID) (models.User, error) {
	coll := m.dbConnection.Collection("users")

	if userID, ok := m.usersCache.UserForAccount(accountID.Hex()); ok {
		id, err := primitive.ObjectIDFromHex(userID)
		if err == nil {
			var user models.User
			if err = coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&user); err == nil {
				return user, nil
			}
		}
	}

	var user models.User
	err := coll.FindOne(
		ctx,
		bson.D{{Key: "owner_account", Value: accountID}, {Key: "type", Value: models.PeopleUser}},
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	m.usersCache.AddUser(accountID.Hex(), user.ID.Hex())
	return user, nil
}

func (m *Manager) GetAccount(ctx context.Context, accountID primitive.ObjectID) (models.Account, error) {
	var account models.Account
	err := m.dbConnection.Collection("accounts").
		FindOne(ctx, bson.D{{Key: "_id", Value: accountID}}).
		Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

func (m *Manager) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	cursor, err := m.dbConnection.Collection("users").Find(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
	)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// prepareContentInsert stamps timestamps and defaults a blank visibility
// to publish, so a freshly created content is immediately hydratable.
func prepareContentInsert(content *models.Content, now time.Time) {
	content.CreatedAt = now
	content.UpdatedAt = now
	if content.Visibility == "" {
		content.Visibility = models.VisibilityPublish
	}
}

// publishedContentFilter matches the published contents among ids; feed
// hydration and guest pages both read through it.
func publishedContentFilter(ids []primitive.ObjectID) bson.M {
	return bson.M{
		"_id":        bson.M{"$in": ids},
		"visibility": models.VisibilityPublish,
	}
}

func (m *Manager) CreateContent(ctx context.Context, content *models.Content) error {
	prepareContentInsert(content, time.Now())

	result, err := m.dbConnection.Collection("contents").InsertOne(ctx, content)
	if err != nil {
		log.Errorf("Error inserting content for author '%s': %v", content.Author.ID.Hex(), err)
		return err
	}
	content.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

// GetContentsByIDs returns the published contents among ids, in store order.
func (m *Manager) GetContentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Content, error) {
	cursor, err := m.dbConnection.Collection("contents").Find(
		ctx,
		publishedContentFilter(ids),
	)
	if err != nil {
		return nil, err
	}
	var contents []models.Content
	if err = cursor.All(ctx, &contents); err != nil {
		return nil, err
	}
	return contents, nil
}

// engagementFilter keys an interaction by (user, target, type) so a
// repeated like matches the existing row instead of inserting another.
func engagementFilter(engagement models.Engagement) bson.M {
	return bson.M{
		"user":            engagement.User,
		"target_ref.id":   engagement.TargetRef.ID,
		"target_ref.type": engagement.TargetRef.Type,
		"type":            engagement.Type,
	}
}

// engagementInsert writes the row only on first insert; a matched upsert
// leaves the existing row untouched.
func engagementInsert(engagement models.Engagement, now time.Time) bson.M {
	return bson.M{
		"$setOnInsert": bson.M{
			"user":       engagement.User,
			"target_ref": engagement.TargetRef,
			"type":       engagement.Type,
			"visibility": models.VisibilityPublish,
			"created_at": now,
		},
	}
}

// CreateEngagement records an interaction, insert-if-absent. A repeated
// like from the same user on the same target is a no-op rather than an
// error, and the target's like counter only moves on first insert.
func (m *Manager) CreateEngagement(ctx context.Context, engagement models.Engagement) error {
	contentsColl := m.dbConnection.Collection("contents")
	engagementsColl := m.dbConnection.Collection("engagements")

	return m.executeTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		opts := options.Update().SetUpsert(true)

		result, err := engagementsColl.UpdateOne(
			sessCtx,
			engagementFilter(engagement),
			engagementInsert(engagement, time.Now()),
			opts,
		)
		if err != nil {
			log.Errorf(
				"Error creating engagement '%s/%s': %v",
				engagement.User.Hex(), engagement.TargetRef.ID.Hex(), err,
			)
			return nil, err
		}

		if result.UpsertedCount > 0 && engagement.TargetRef.Type == models.ContentTarget {
			_, err = contentsColl.UpdateOne(
				sessCtx,
				bson.D{{Key: "_id", Value: engagement.TargetRef.ID}},
				bson.D{{Key: "$inc", Value: bson.D{{Key: "metrics.like_count", Value: 1}}}},
			)
		}
		return result, err
	})
}

func (m *Manager) RemoveEngagement(ctx context.Context, user primitive.ObjectID, target models.TargetRef) error {
	contentsColl := m.dbConnection.Collection("contents")
	engagementsColl := m.dbConnection.Collection("engagements")

	return m.executeTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		var engagement models.Engagement
		err := engagementsColl.FindOneAndDelete(
			sessCtx,
			bson.M{
				"user":            user,
				"target_ref.id":   target.ID,
				"target_ref.type": target.Type,
			},
		).Decode(&engagement)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, nil
			}
			log.Errorf("Error deleting engagement: %v", err)
			return nil, err
		}

		if target.Type == models.ContentTarget {
			return contentsColl.UpdateOne(
				sessCtx,
				bson.D{{Key: "_id", Value: target.ID}},
				bson.D{{Key: "$inc", Value: bson.D{{Key: "metrics.like_count", Value: -1}}}},
			)
		}
		return nil, nil
	})
}

// GetEngagements returns the viewer's interactions with the given contents,
// used to derive per-viewer "liked" flags during response shaping.
func (m *Manager) GetEngagements(
	ctx context.Context,
	userID primitive.ObjectID,
	contentIDs []primitive.ObjectID,
) ([]models.Engagement, error) {
	cursor, err := m.dbConnection.Collection("engagements").Find(
		ctx,
		bson.M{
			"user":            userID,
			"target_ref.type": models.ContentTarget,
			"target_ref.id":   bson.M{"$in": contentIDs},
			"visibility":      models.VisibilityPublish,
		},
	)
	if err != nil {
		return nil, err
	}
	var engagements []models.Engagement
	if err = cursor.All(ctx, &engagements); err != nil {
		return nil, err
	}
	return engagements, nil
}

// followUpdate turns an edge into a follow, creating it when absent. An
// edge created here starts unblocked.
func followUpdate(userID, targetID primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"following":  true,
			"visibility": models.VisibilityPublish,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user":          userID,
			"followed_user": targetID,
			"blocking":      false,
			"created_at":    now,
		},
	}
}

// followCountersMove reports whether a follow write actually changed the
// edge: counters move on a new edge or a re-follow, never on a repeat.
func followCountersMove(created bool, before models.Relationship) bool {
	return created || !before.Following
}

// Follow upserts a follow edge and maintains both users' counters. Following
// an already-followed user leaves the counters alone.
func (m *Manager) Follow(ctx context.Context, userID, targetID primitive.ObjectID) error {
	usersColl := m.dbConnection.Collection("users")
	relationshipsColl := m.dbConnection.Collection("relationships")

	return m.executeTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		var before models.Relationship
		err := relationshipsColl.FindOneAndUpdate(
			sessCtx,
			bson.M{"user": userID, "followed_user": targetID},
			followUpdate(userID, targetID, time.Now()),
			options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before),
		).Decode(&before)

		created := errors.Is(err, mongo.ErrNoDocuments)
		if err != nil && !created {
			log.Errorf("Error creating follow '%s/%s': %v", userID.Hex(), targetID.Hex(), err)
			return nil, err
		}

		if followCountersMove(created, before) {
			if _, err = usersColl.UpdateOne(
				sessCtx,
				bson.D{{Key: "_id", Value: userID}},
				bson.D{{Key: "$inc", Value: bson.D{{Key: "followed_count", Value: 1}}}},
			); err != nil {
				return nil, err
			}
			if _, err = usersColl.UpdateOne(
				sessCtx,
				bson.D{{Key: "_id", Value: targetID}},
				bson.D{{Key: "$inc", Value: bson.D{{Key: "follower_count", Value: 1}}}},
			); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

func (m *Manager) Unfollow(ctx context.Context, userID, targetID primitive.ObjectID) error {
	usersColl := m.dbConnection.Collection("users")
	relationshipsColl := m.dbConnection.Collection("relationships")

	return m.executeTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		var before models.Relationship
		err := relationshipsColl.FindOneAndUpdate(
			sessCtx,
			bson.M{"user": userID, "followed_user": targetID, "following": true},
			bson.M{"$set": bson.M{"following": false, "updated_at": time.Now()}},
		).Decode(&before)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, nil
			}
			log.Errorf("Error deleting follow: %v", err)
			return nil, err
		}

		if _, err = usersColl.UpdateOne(
			sessCtx,
			bson.D{{Key: "_id", Value: userID}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: "followed_count", Value: -1}}}},
		); err != nil {
			return nil, err
		}
		_, err = usersColl.UpdateOne(
			sessCtx,
			bson.D{{Key: "_id", Value: targetID}},
			bson.D{{Key: "$inc", Value: bson.D{{Key: "follower_count", Value: -1}}}},
		)
		return nil, err
	})
}

// blockUpdate marks an edge blocking and drops any follow on it, creating
// the edge when absent.
func blockUpdate(userID, targetID primitive.ObjectID, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"blocking":   true,
			"following":  false,
			"visibility": models.VisibilityPublish,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user":          userID,
			"followed_user": targetID,
			"created_at":    now,
		},
	}
}

// BlockUser marks a directed block edge. Blocking also drops the follow.
func (m *Manager) BlockUser(ctx context.Context, userID, targetID primitive.ObjectID) error {
	_, err := m.dbConnection.Collection("relationships").UpdateOne(
		ctx,
		bson.M{"user": userID, "followed_user": targetID},
		blockUpdate(userID, targetID, time.Now()),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		log.Errorf("Error blocking user '%s/%s': %v", userID.Hex(), targetID.Hex(), err)
	}
	return err
}

func (m *Manager) UnblockUser(ctx context.Context, userID, targetID primitive.ObjectID) error {
	_, err := m.dbConnection.Collection("relationships").UpdateOne(
		ctx,
		bson.M{"user": userID, "followed_user": targetID, "blocking": true},
		bson.M{"$set": bson.M{"blocking": false, "updated_at": time.Now()}},
	)
	if err != nil {
		log.Errorf("Error unblocking user '%s/%s': %v", userID.Hex(), targetID.Hex(), err)
	}
	return err
}

// GetRelationships returns published edges between the viewer and the given
// users, in both directions, for relationship expansion.
func (m *Manager) GetRelationships(
	ctx context.Context,
	viewerID primitive.ObjectID,
	userIDs []primitive.ObjectID,
) ([]models.Relationship, error) {
	cursor, err := m.dbConnection.Collection("relationships").Find(
		ctx,
		bson.M{
			"$or": bson.A{
				bson.M{"user": viewerID, "followed_user": bson.M{"$in": userIDs}},
				bson.M{"user": bson.M{"$in": userIDs}, "followed_user": viewerID},
			},
			"visibility": models.VisibilityPublish,
		},
	)
	if err != nil {
		return nil, err
	}
	var relationships []models.Relationship
	if err = cursor.All(ctx, &relationships); err != nil {
		return nil, err
	}
	return relationships, nil
}

// GetFollowedUserIDs returns ids of users the viewer follows.
func (m *Manager) GetFollowedUserIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return m.relationshipTargets(ctx, bson.M{"user": userID, "following": true, "blocking": false})
}

// GetBlockedUserIDs returns ids of users the viewer blocks.
func (m *Manager) GetBlockedUserIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return m.relationshipTargets(ctx, bson.M{"user": userID, "blocking": true})
}

func (m *Manager) relationshipTargets(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	cursor, err := m.dbConnection.Collection("relationships").Find(
		ctx,
		filter,
		options.Find().SetProjection(bson.D{{Key: "followed_user", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	var results []bson.M
	if err = cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(results))
	for _, result := range results {
		if id, ok := result["followed_user"].(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ContentScore pairs a content id with its aggregation-computed weight.
type ContentScore struct {
	ID    primitive.ObjectID `bson:"_id"`
	Score float64            `bson:"decayed_weight"`
}

// AggregateContentScores runs a scoring aggregation over the contents
// collection and returns id/weight pairs in pipeline order.
func (m *Manager) AggregateContentScores(ctx context.Context, pipeline mongo.Pipeline) ([]ContentScore, error) {
	cursor, err := m.dbConnection.Collection("contents").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var scores []ContentScore
	if err = cursor.All(ctx, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// AggregateContentIDs runs an aggregation over the contents collection and
// collects the _id of every resulting document.
func (m *Manager) AggregateContentIDs(ctx context.Context, pipeline mongo.Pipeline) ([]primitive.ObjectID, error) {
	cursor, err := m.dbConnection.Collection("contents").Aggregate(ctx, pipeline)
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

func (m *Manager) executeTransaction(
	ctx context.Context,
	operation func(sessCtx mongo.SessionContext) (interface{}, error),
) error {
	client := m.dbConnection.Client()
	wc := writeconcern.Majority()
	txnOptions := options.Transaction().SetWriteConcern(wc)

	session, err := client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, operation, txnOptions)
	if err != nil {
		if !strings.Contains(err.Error(), "E11000 duplicate key error collection") {
			log.Warningf("Error committing transaction: %v", err)
		}
	}
	return err
}
