package feeds

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/storage/models"
)

type Feature struct {
	Slug string `json:"slug"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type Circle struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

var (
	feedFeature  = Feature{Slug: "feed", Key: "feature.feed", Name: "Feed"}
	forYouCircle = Circle{ID: "for-you", Key: "circle.forYou", Name: "For You", Slug: "forYou"}
)

// DefaultPayloadID marks pinned entries, which have no feed item row and
// therefore no cursor-bearing id.
const DefaultPayloadID = "default"

type Participation struct {
	Liked bool `json:"liked"`
}

// ContentItem is the response form of a content document.
type ContentItem struct {
	ID             string                `json:"id"`
	Type           models.ContentType    `json:"type"`
	Message        string                `json:"message,omitempty"`
	Photos         []string              `json:"photo,omitempty"`
	Link           string                `json:"link,omitempty"`
	Hashtags       []string              `json:"hashtags,omitempty"`
	Metrics        models.ContentMetrics `json:"metrics"`
	Participate    *Participation        `json:"participate,omitempty"`
	AuthorID       string                `json:"authorId"`
	ReferencedCast string                `json:"referencedCastId,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

type PayloadItem struct {
	ID      string      `json:"id"`
	Feature Feature     `json:"feature"`
	Circle  Circle      `json:"circle"`
	Type    string      `json:"type"`
	Payload ContentItem `json:"payload"`
}

type RelationshipFlags struct {
	Followed bool `json:"followed"`
	Blocked  bool `json:"blocked"`
	Blocking bool `json:"blocking"`
}

type IncludeUser struct {
	ID            string             `json:"id"`
	CastcleID     string             `json:"castcleId"`
	DisplayName   string             `json:"displayName"`
	Type          models.UserType    `json:"type"`
	Avatar        string             `json:"avatar,omitempty"`
	Verified      bool               `json:"verified"`
	Relationships *RelationshipFlags `json:"relationships,omitempty"`
}

type Includes struct {
	Users []IncludeUser `json:"users"`
	Casts []ContentItem `json:"casts"`
}

type Meta struct {
	OldestID    string `json:"oldestId,omitempty"`
	NewestID    string `json:"newestId,omitempty"`
	ResultCount int    `json:"resultCount"`
}

type FeedResponse struct {
	Payload  []PayloadItem `json:"payload"`
	Includes Includes      `json:"includes"`
	Meta     Meta          `json:"meta"`
}

// toContentItem shapes a content document for a response. liked carries the
// viewer's engagements keyed by content id; nil means an anonymous viewer
// and omits participation entirely.
func toContentItem(content *models.Content, liked map[primitive.ObjectID]bool) ContentItem {
	item := ContentItem{
		ID:        content.ID.Hex(),
		Type:      content.Type,
		Message:   content.Payload.Message,
		Photos:    content.Payload.Photos,
		Link:      content.Payload.Link,
		Hashtags:  content.Hashtags,
		Metrics:   content.Metrics,
		AuthorID:  content.Author.ID.Hex(),
		CreatedAt: content.CreatedAt,
		UpdatedAt: content.UpdatedAt,
	}
	if content.OriginalPost != nil {
		item.ReferencedCast = content.OriginalPost.ID.Hex()
	}
	if liked != nil {
		item.Participate = &Participation{Liked: liked[content.ID]}
	}
	return item
}

// feedPayloadItem wraps a content in the feed envelope under a feed item id.
func feedPayloadItem(id string, content *models.Content, liked map[primitive.ObjectID]bool) PayloadItem {
	return PayloadItem{
		ID:      id,
		Feature: feedFeature,
		Circle:  forYouCircle,
		Type:    "content",
		Payload: toContentItem(content, liked),
	}
}

// likedContents indexes the viewer's like engagements by content id.
func likedContents(engagements []models.Engagement) map[primitive.ObjectID]bool {
	liked := make(map[primitive.ObjectID]bool, len(engagements))
	for _, engagement := range engagements {
		if engagement.Type == models.LikeEngagement && engagement.TargetRef.Type == models.ContentTarget {
			liked[engagement.TargetRef.ID] = true
		}
	}
	return liked
}

// collectAuthors gathers deduplicated authors across the returned contents
// and any embedded original posts, in first-seen order.
func collectAuthors(contents []*models.Content) []models.Author {
	seen := make(map[primitive.ObjectID]bool)
	authors := make([]models.Author, 0, len(contents))
	add := func(author models.Author) {
		if !seen[author.ID] {
			seen[author.ID] = true
			authors = append(authors, author)
		}
	}
	for _, content := range contents {
		add(content.Author)
	}
	for _, content := range contents {
		if content.OriginalPost != nil {
			add(content.OriginalPost.Author)
		}
	}
	return authors
}

// collectCasts gathers the embedded original posts of the returned page.
func collectCasts(contents []*models.Content, liked map[primitive.ObjectID]bool) []ContentItem {
	casts := make([]ContentItem, 0)
	seen := make(map[primitive.ObjectID]bool)
	for _, content := range contents {
		original := content.OriginalPost
		if original == nil || seen[original.ID] {
			continue
		}
		seen[original.ID] = true
		casts = append(casts, toContentItem(original, liked))
	}
	return casts
}

// includeUsers annotates authors with follow/block flags relative to the
// viewer. Relationship flags are attached only when expansion was requested;
// relationships then holds both edge directions.
func includeUsers(
	authors []models.Author,
	viewerUserID primitive.ObjectID,
	relationships []models.Relationship,
	hasRelationshipExpansion bool,
) []IncludeUser {
	users := make([]IncludeUser, len(authors))
	for i, author := range authors {
		user := IncludeUser{
			ID:          author.ID.Hex(),
			CastcleID:   author.CastcleID,
			DisplayName: author.DisplayName,
			Type:        author.Type,
			Avatar:      author.AvatarURL,
			Verified:    author.Verified,
		}
		if hasRelationshipExpansion {
			flags := RelationshipFlags{}
			for _, rel := range relationships {
				if rel.User == viewerUserID && rel.FollowedUser == author.ID {
					flags.Followed = rel.Following
					flags.Blocked = rel.Blocking
				}
				if rel.User == author.ID && rel.FollowedUser == viewerUserID {
					flags.Blocking = rel.Blocking
				}
			}
			user.Relationships = &flags
		}
		users[i] = user
	}
	return users
}

// buildMeta derives the pagination block from the materialized page, newest
// entry first.
func buildMeta(ids []primitive.ObjectID) Meta {
	meta := Meta{ResultCount: len(ids)}
	if len(ids) > 0 {
		meta.NewestID = ids[0].Hex()
		meta.OldestID = ids[len(ids)-1].Hex()
	}
	return meta
}
