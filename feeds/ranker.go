package feeds

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/config"
	"castfeed/monitoring"
	"castfeed/storage"
	"castfeed/storage/cache"
	"castfeed/storage/models"
)

const refreshLockTTL = 30 * time.Second

// Ranker assembles member and guest feeds: candidate generation,
// personalization scoring, feed row materialization, cursor pagination and
// response shaping.
type Ranker struct {
	storageManager *storage.Manager
	personalizer   Personalizer
	pipeline       *CandidatePipeline
	locks          cache.RefreshLocks
	cfg            config.FeedConfig
}

func NewRanker(
	storageManager *storage.Manager,
	personalizer Personalizer,
	redisConnection *redis.Client,
	cfg config.FeedConfig,
) *Ranker {
	return &Ranker{
		storageManager: storageManager,
		personalizer:   personalizer,
		pipeline:       NewCandidatePipeline(storageManager, cfg),
		locks:          cache.NewRefreshLocks(redisConnection, refreshLockTTL),
		cfg:            cfg,
	}
}

// GetMemberFeedItems is the member feed entry point. History mode reads
// back previously seen rows; the default mode runs a scoring run and
// materializes a fresh page.
func (r *Ranker) GetMemberFeedItems(
	ctx context.Context,
	viewer models.Account,
	query FeedQuery,
) (*FeedResponse, error) {
	if query.Mode == FeedModeHistory {
		return r.memberFeedHistory(ctx, viewer, query)
	}

	user, err := r.storageManager.GetUserByAccount(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	maxResults := r.maxResults(query)

	runID := uuid.NewString()
	if !r.locks.Acquire(ctx, viewer.ID.Hex(), runID) {
		// Another refresh for this viewer is already materializing; serve
		// its rows instead of inserting a competing run.
		items, err := r.storageManager.LatestFeedItems(ctx, viewer.ID, maxResults)
		if err != nil {
			return nil, err
		}
		return r.shapeMemberPage(ctx, user, items, query)
	}
	defer r.locks.Release(ctx, viewer.ID.Hex(), runID)

	candidates, err := r.pipeline.GetFeedContents(ctx, CandidateParams{
		AccountID:       viewer.ID,
		UserID:          user.ID,
		CountryCode:     viewer.CountryCode(),
		PreferLanguages: viewer.Preferences.Languages,
		MaxResult:       maxResults,
	})
	if err != nil {
		return nil, err
	}

	candidateIDs := make([]string, len(candidates))
	for i, id := range candidates {
		candidateIDs[i] = id.Hex()
	}
	scores, err := r.personalizer.PersonalizeContents(ctx, viewer.ID.Hex(), candidateIDs)
	if err != nil || scores == nil {
		// Degrade to candidate order; a scoring outage never fails the feed.
		log.Warningf("Serving unscored feed for account '%s'", viewer.ID.Hex())
		monitoring.PersonalizeFallbacksTotal.Inc()
		scores = nil
	}
	sortedIDs := sortCandidates(candidateIDs, scores)

	now := time.Now()
	items := make([]models.FeedItem, 0, len(sortedIDs))
	for _, idHex := range sortedIDs {
		contentID, err := primitive.ObjectIDFromHex(idHex)
		if err != nil {
			continue
		}
		items = append(items, models.FeedItem{
			Viewer:   viewer.ID,
			Content:  contentID,
			CalledAt: now,
			Aggregator: models.ContentAggregator{
				RunID:      runID,
				CreateTime: now,
			},
		})
	}
	items, err = r.storageManager.InsertFeedItems(ctx, items)
	if err != nil {
		return nil, err
	}
	monitoring.FeedRefreshesTotal.WithLabelValues("foryou").Inc()
	monitoring.FeedItemsMaterialized.Add(float64(len(items)))

	return r.shapeMemberPage(ctx, user, items, query)
}

// memberFeedHistory reads previously seen rows, newest seen first. The
// since/until bounds swap direction here: paging "since" in history walks
// backwards through the feed collection. UI paging depends on the swap.
func (r *Ranker) memberFeedHistory(
	ctx context.Context,
	viewer models.Account,
	query FeedQuery,
) (*FeedResponse, error) {
	user, err := r.storageManager.GetUserByAccount(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}

	items, err := r.storageManager.SeenFeedItems(
		ctx, viewer.ID,
		query.UntilID, query.SinceID,
		r.maxResults(query),
	)
	if err != nil {
		return nil, err
	}
	monitoring.FeedRefreshesTotal.WithLabelValues(FeedModeHistory).Inc()

	return r.shapeMemberPage(ctx, user, items, query)
}

// shapeMemberPage hydrates feed rows with their contents and builds the
// response payload, includes and meta.
func (r *Ranker) shapeMemberPage(
	ctx context.Context,
	user models.User,
	items []models.FeedItem,
	query FeedQuery,
) (*FeedResponse, error) {
	contentIDs := make([]primitive.ObjectID, len(items))
	for i, item := range items {
		contentIDs[i] = item.Content
	}
	contents, err := r.storageManager.GetContentsByIDs(ctx, contentIDs)
	if err != nil {
		return nil, err
	}
	contentByID := make(map[primitive.ObjectID]*models.Content, len(contents))
	for i := range contents {
		contentByID[contents[i].ID] = &contents[i]
	}

	engagements, err := r.storageManager.GetEngagements(ctx, user.ID, contentIDs)
	if err != nil {
		return nil, err
	}
	liked := likedContents(engagements)

	// Rows without a published content hydrate to nothing and drop out.
	payload := make([]PayloadItem, 0, len(items))
	pageIDs := make([]primitive.ObjectID, 0, len(items))
	pageContents := make([]*models.Content, 0, len(items))
	for _, item := range items {
		content, ok := contentByID[item.Content]
		if !ok {
			continue
		}
		payload = append(payload, feedPayloadItem(item.ID.Hex(), content, liked))
		pageIDs = append(pageIDs, item.ID)
		pageContents = append(pageContents, content)
	}

	includes, err := r.buildIncludes(ctx, user.ID, pageContents, liked, query)
	if err != nil {
		return nil, err
	}

	return &FeedResponse{
		Payload:  payload,
		Includes: includes,
		Meta:     buildMeta(pageIDs),
	}, nil
}

// GetGuestFeedItems serves the anonymous feed for the viewer's country.
// The first page (no cursor) is prefixed with the pinned default contents.
func (r *Ranker) GetGuestFeedItems(
	ctx context.Context,
	query FeedQuery,
	viewer models.Account,
	excludeContents []primitive.ObjectID,
) (*FeedResponse, error) {
	monitoring.GuestFeedRequestsTotal.Inc()

	var prefixContents []*models.Content
	if query.SinceID == "" && query.UntilID == "" {
		defaults, err := r.storageManager.DefaultContents(ctx)
		if err != nil {
			return nil, err
		}
		prefixContents, err = r.hydrateOrdered(ctx, defaultContentIDs(defaults))
		if err != nil {
			return nil, err
		}
	}

	items, err := r.storageManager.GuestFeedItems(
		ctx,
		viewer.CountryCode(),
		excludeContents,
		query.UntilID, query.SinceID,
		r.maxResults(query),
	)
	if err != nil {
		return nil, err
	}

	pageContentIDs := make([]primitive.ObjectID, len(items))
	for i, item := range items {
		pageContentIDs[i] = item.Content
	}
	pageContents, err := r.hydrateOrdered(ctx, pageContentIDs)
	if err != nil {
		return nil, err
	}
	contentByID := make(map[primitive.ObjectID]*models.Content, len(pageContents))
	for _, content := range pageContents {
		contentByID[content.ID] = content
	}

	payload, pageIDs := guestPayload(prefixContents, items, contentByID)

	// Guests have no user document, so no relationship flags are computed
	// even when expansion is requested.
	allContents := append(append([]*models.Content{}, prefixContents...), pageContents...)
	includes := Includes{
		Users: includeUsers(collectAuthors(allContents), primitive.NilObjectID, nil, false),
		Casts: collectCasts(allContents, nil),
	}

	return &FeedResponse{
		Payload:  payload,
		Includes: includes,
		Meta:     buildMeta(pageIDs),
	}, nil
}

// SeenFeedItem marks a feed row viewed. Repeated calls keep the first
// timestamp.
func (r *Ranker) SeenFeedItem(
	ctx context.Context,
	viewer models.Account,
	feedItemID primitive.ObjectID,
	credentialID primitive.ObjectID,
) error {
	return r.storageManager.MarkSeen(ctx, viewer.ID, feedItemID, credentialID)
}

// OffScreenFeedItem marks a feed row scrolled past, same one-way semantics.
func (r *Ranker) OffScreenFeedItem(
	ctx context.Context,
	viewer models.Account,
	feedItemID primitive.ObjectID,
) error {
	return r.storageManager.MarkOffScreen(ctx, viewer.ID, feedItemID)
}

// SortContentsByScore reorders already-fetched contents by their
// personalization scores, best first. Unscored calls return the input
// order unchanged.
func (r *Ranker) SortContentsByScore(
	ctx context.Context,
	accountID string,
	contents []models.Content,
) ([]models.Content, error) {
	contentIDs := make([]string, len(contents))
	for i, content := range contents {
		contentIDs[i] = content.ID.Hex()
	}
	scores, err := r.personalizer.PersonalizeContents(ctx, accountID, contentIDs)
	if err != nil || scores == nil {
		return contents, nil
	}

	sort.SliceStable(contents, func(i, j int) bool {
		return scores[contents[i].ID.Hex()] > scores[contents[j].ID.Hex()]
	})
	return contents, nil
}

func (r *Ranker) buildIncludes(
	ctx context.Context,
	viewerUserID primitive.ObjectID,
	contents []*models.Content,
	liked map[primitive.ObjectID]bool,
	query FeedQuery,
) (Includes, error) {
	authors := collectAuthors(contents)

	var relationships []models.Relationship
	if query.HasRelationshipExpansion {
		authorIDs := make([]primitive.ObjectID, len(authors))
		for i, author := range authors {
			authorIDs[i] = author.ID
		}
		var err error
		relationships, err = r.storageManager.GetRelationships(ctx, viewerUserID, authorIDs)
		if err != nil {
			return Includes{}, err
		}
	}

	return Includes{
		Users: includeUsers(authors, viewerUserID, relationships, query.HasRelationshipExpansion),
		Casts: collectCasts(contents, liked),
	}, nil
}

// hydrateOrdered fetches published contents and returns them in the order
// of ids, dropping unpublished ones.
func (r *Ranker) hydrateOrdered(ctx context.Context, ids []primitive.ObjectID) ([]*models.Content, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	contents, err := r.storageManager.GetContentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	contentByID := make(map[primitive.ObjectID]*models.Content, len(contents))
	for i := range contents {
		contentByID[contents[i].ID] = &contents[i]
	}
	ordered := make([]*models.Content, 0, len(ids))
	for _, id := range ids {
		if content, ok := contentByID[id]; ok {
			ordered = append(ordered, content)
		}
	}
	return ordered, nil
}

// maxResults resolves the page size: the default when the caller sends
// none, clamped to the configured ceiling otherwise.
func (r *Ranker) maxResults(query FeedQuery) int64 {
	if query.MaxResults <= 0 {
		return int64(r.cfg.MaxResultsDefault)
	}
	if limit := int64(r.cfg.MaxResultsLimit); limit > 0 && query.MaxResults > limit {
		return limit
	}
	return query.MaxResults
}

// guestPayload lays out a guest page: the pinned prefix first, then the
// ranked items that hydrated to a published content. The returned ids cover
// the ranked page only; pinned entries never move the pagination cursor.
func guestPayload(
	prefixContents []*models.Content,
	items []models.GuestFeedItem,
	contentByID map[primitive.ObjectID]*models.Content,
) ([]PayloadItem, []primitive.ObjectID) {
	payload := make([]PayloadItem, 0, len(prefixContents)+len(items))
	for _, content := range prefixContents {
		payload = append(payload, feedPayloadItem(DefaultPayloadID, content, nil))
	}
	pageIDs := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		content, ok := contentByID[item.Content]
		if !ok {
			continue
		}
		payload = append(payload, feedPayloadItem(item.ID.Hex(), content, nil))
		pageIDs = append(pageIDs, item.ID)
	}
	return payload, pageIDs
}

func defaultContentIDs(defaults []models.DefaultContent) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, len(defaults))
	for i, d := range defaults {
		ids[i] = d.Content
	}
	return ids
}

// sortCandidates orders candidate ids by descending score. Ties keep a
// deterministic order: lexical content id. A nil score map leaves the
// candidate pipeline's order untouched.
func sortCandidates(candidateIDs []string, scores map[string]float64) []string {
	sorted := make([]string, len(candidateIDs))
	copy(sorted, candidateIDs)
	if scores == nil {
		return sorted
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := scores[sorted[i]], scores[sorted[j]]
		if si != sj {
			return si > sj
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
