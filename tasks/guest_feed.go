package tasks

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"castfeed/config"
	"castfeed/feeds"
	"castfeed/storage"
	"castfeed/storage/models"
)

const guestFeedItemsPerCountry = 200

// GuestFeedBuilder periodically recomputes the country-segmented guest
// rankings from recent engagement, so anonymous viewers always have a
// precomputed feed to page through.
type GuestFeedBuilder struct {
	storageManager *storage.Manager
	cfg            config.FeedConfig
}

func NewGuestFeedBuilder(storageManager *storage.Manager, cfg config.FeedConfig) *GuestFeedBuilder {
	return &GuestFeedBuilder{
		storageManager: storageManager,
		cfg:            cfg,
	}
}

func (b *GuestFeedBuilder) Run() {
	for {
		b.buildOnce()
		time.Sleep(b.cfg.GuestFeedInterval)
	}
}

func (b *GuestFeedBuilder) buildOnce() {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -b.cfg.DecayDays)

	for _, countryCode := range b.cfg.GuestFeedCountries {
		scores, err := b.storageManager.AggregateContentScores(
			ctx,
			feeds.TrendingPipeline(countryCode, cutoff, b.cfg.DecayDays, guestFeedItemsPerCountry),
		)
		if err != nil {
			log.Errorf("Error scoring guest feed for country '%s': %v", countryCode, err)
			continue
		}

		for _, score := range scores {
			err = b.storageManager.UpsertGuestFeedItem(ctx, models.GuestFeedItem{
				CountryCode: countryCode,
				Content:     score.ID,
				Score:       score.Score,
			})
			if err != nil {
				break
			}
		}
		log.Infof("Refreshed %d guest feed items for country '%s'", len(scores), countryCode)
	}
}
