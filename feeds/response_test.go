package feeds

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/storage/models"
)

func makeContent(author models.Author) *models.Content {
	now := time.Now()
	return &models.Content{
		ID:         primitive.NewObjectID(),
		Author:     author,
		Type:       models.ShortContent,
		Payload:    models.ContentPayload{Message: "hello"},
		Visibility: models.VisibilityPublish,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func makeAuthor() models.Author {
	return models.Author{
		ID:          primitive.NewObjectID(),
		CastcleID:   "someone",
		DisplayName: "Someone",
		Type:        models.PeopleUser,
	}
}

func TestCollectAuthorsDeduplicates(t *testing.T) {
	author := makeAuthor()
	originalAuthor := makeAuthor()

	recast := makeContent(author)
	recast.OriginalPost = makeContent(originalAuthor)

	contents := []*models.Content{
		makeContent(author),
		recast,
	}

	authors := collectAuthors(contents)
	if len(authors) != 2 {
		t.Fatalf("got %d authors, want 2", len(authors))
	}
	if authors[0].ID != author.ID {
		t.Errorf("direct authors should come before embedded ones")
	}
	if authors[1].ID != originalAuthor.ID {
		t.Errorf("original post author missing from includes")
	}
}

func TestCollectCasts(t *testing.T) {
	original := makeContent(makeAuthor())

	first := makeContent(makeAuthor())
	first.OriginalPost = original
	second := makeContent(makeAuthor())
	second.OriginalPost = original

	casts := collectCasts([]*models.Content{first, second, makeContent(makeAuthor())}, nil)
	if len(casts) != 1 {
		t.Fatalf("got %d casts, want 1 deduplicated original", len(casts))
	}
	if casts[0].ID != original.ID.Hex() {
		t.Errorf("got cast %q, want the original post", casts[0].ID)
	}
}

func TestIncludeUsersRelationshipFlags(t *testing.T) {
	viewer := primitive.NewObjectID()
	followedAuthor := makeAuthor()
	blockingAuthor := makeAuthor()

	relationships := []models.Relationship{
		{
			User:         viewer,
			FollowedUser: followedAuthor.ID,
			Following:    true,
			Visibility:   models.VisibilityPublish,
		},
		{
			User:         blockingAuthor.ID,
			FollowedUser: viewer,
			Blocking:     true,
			Visibility:   models.VisibilityPublish,
		},
	}

	users := includeUsers(
		[]models.Author{followedAuthor, blockingAuthor},
		viewer,
		relationships,
		true,
	)

	if users[0].Relationships == nil || !users[0].Relationships.Followed {
		t.Errorf("followed author should carry followed=true")
	}
	if users[1].Relationships == nil || !users[1].Relationships.Blocking {
		t.Errorf("author blocking the viewer should carry blocking=true")
	}
	if users[1].Relationships.Followed {
		t.Errorf("unfollowed author should not carry followed=true")
	}
}

func TestIncludeUsersWithoutExpansion(t *testing.T) {
	users := includeUsers([]models.Author{makeAuthor()}, primitive.NewObjectID(), nil, false)
	if users[0].Relationships != nil {
		t.Errorf("relationship flags must only appear when expansion is requested")
	}
}

func TestToContentItemParticipation(t *testing.T) {
	content := makeContent(makeAuthor())

	item := toContentItem(content, nil)
	if item.Participate != nil {
		t.Errorf("anonymous viewers must not get participation data")
	}

	item = toContentItem(content, map[primitive.ObjectID]bool{content.ID: true})
	if item.Participate == nil || !item.Participate.Liked {
		t.Errorf("viewer's like should surface as participate.liked")
	}
	if item.AuthorID != content.Author.ID.Hex() {
		t.Errorf("content item must keep its author reference")
	}
}

func TestLikedContents(t *testing.T) {
	contentID := primitive.NewObjectID()
	engagements := []models.Engagement{
		{
			Type:      models.LikeEngagement,
			TargetRef: models.TargetRef{Type: models.ContentTarget, ID: contentID},
		},
		{
			Type:      models.LikeEngagement,
			TargetRef: models.TargetRef{Type: models.CommentTarget, ID: primitive.NewObjectID()},
		},
	}

	liked := likedContents(engagements)
	if !liked[contentID] {
		t.Errorf("content like missing")
	}
	if len(liked) != 1 {
		t.Errorf("comment engagements must not count as content likes")
	}
}
