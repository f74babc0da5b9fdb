package storage

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CursorFilter applies sinceId/untilId pagination bounds to a base filter.
// Cursors map onto the collection's own _id ordering: sinceId becomes a
// greater-than bound, untilId a less-than bound. The base map is mutated
// and returned.
func CursorFilter(base bson.M, sinceID, untilID string) (bson.M, error) {
	bounds := bson.M{}
	if sinceID != "" {
		id, err := primitive.ObjectIDFromHex(sinceID)
		if err != nil {
			return nil, fmt.Errorf("malformed sinceId %q: %w", sinceID, err)
		}
		bounds["$gt"] = id
	}
	if untilID != "" {
		id, err := primitive.ObjectIDFromHex(untilID)
		if err != nil {
			return nil, fmt.Errorf("malformed untilId %q: %w", untilID, err)
		}
		bounds["$lt"] = id
	}
	if len(bounds) > 0 {
		base["_id"] = bounds
	}
	return base, nil
}
