package tasks

import (
	"context"
	"time"

	"castfeed/storage"
)

// CleanOldData prunes guest feed rankings past their maximum age. Member
// feed items are never hard-deleted; visibility filtering handles those.
func CleanOldData(storageManager *storage.Manager, maxAge time.Duration) {
	for {
		select {
		case <-time.After(1 * time.Hour):
			storageManager.DeleteOldGuestFeedItems(
				context.Background(),
				time.Now().Add(-maxAge),
			)
		}
	}
}
