package storage

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCursorFilterSinceMapsToGreaterThan(t *testing.T) {
	since := primitive.NewObjectID()

	filter, err := CursorFilter(bson.M{"viewer": "x"}, since.Hex(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bounds, ok := filter["_id"].(bson.M)
	if !ok {
		t.Fatalf("no _id bounds in %v", filter)
	}
	if bounds["$gt"] != since {
		t.Errorf("sinceId must become a $gt bound, got %v", bounds)
	}
	if filter["viewer"] != "x" {
		t.Errorf("base filter fields must survive")
	}
}

func TestCursorFilterUntilMapsToLessThan(t *testing.T) {
	until := primitive.NewObjectID()

	filter, err := CursorFilter(bson.M{}, "", until.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bounds := filter["_id"].(bson.M)
	if bounds["$lt"] != until {
		t.Errorf("untilId must become a $lt bound, got %v", bounds)
	}
}

func TestCursorFilterBothBounds(t *testing.T) {
	since := primitive.NewObjectID()
	until := primitive.NewObjectID()

	filter, err := CursorFilter(bson.M{}, since.Hex(), until.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bounds := filter["_id"].(bson.M)
	if bounds["$gt"] != since || bounds["$lt"] != until {
		t.Errorf("both cursor bounds must apply, got %v", bounds)
	}
}

func TestCursorFilterNoCursor(t *testing.T) {
	filter, err := CursorFilter(bson.M{"country_code": "th"}, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := filter["_id"]; ok {
		t.Errorf("no cursor must mean no _id bounds: %v", filter)
	}
}

func TestCursorFilterMalformedCursor(t *testing.T) {
	if _, err := CursorFilter(bson.M{}, "not-an-id", ""); err == nil {
		t.Errorf("malformed sinceId must be rejected")
	}
	if _, err := CursorFilter(bson.M{}, "", "not-an-id"); err == nil {
		t.Errorf("malformed untilId must be rejected")
	}
}

func TestMarkFiltersGuardUnsetFields(t *testing.T) {
	viewer := primitive.NewObjectID()
	feedItemID := primitive.NewObjectID()

	seen := markSeenFilter(viewer, feedItemID)
	if seen["viewer"] != viewer || seen["_id"] != feedItemID {
		t.Errorf("seen filter must scope to the viewer's row: %v", seen)
	}
	guard, ok := seen["seen_at"].(bson.M)
	if !ok || guard["$exists"] != false {
		t.Errorf("seen filter must require seen_at unset, got %v", seen["seen_at"])
	}

	offScreen := markOffScreenFilter(viewer, feedItemID)
	guard, ok = offScreen["off_screen_at"].(bson.M)
	if !ok || guard["$exists"] != false {
		t.Errorf("off-screen filter must require off_screen_at unset, got %v", offScreen["off_screen_at"])
	}
}
