package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const AccountToUserRedisKey = "accounts_user_id"

// UsersCache keeps the account-to-user id mapping so feed requests do not
// hit the users collection on every call.
type UsersCache struct {
	redisClient *redis.Client
	expiration  time.Duration
}

func NewUsersCache(redisConnection *redis.Client, expiration time.Duration) UsersCache {
	return UsersCache{
		redisClient: redisConnection,
		expiration:  expiration,
	}
}

func (c *UsersCache) AddUser(accountID string, userID string) {
	ctx := context.Background()
	c.redisClient.HSet(ctx, AccountToUserRedisKey, accountID, userID)
	c.redisClient.HExpire(ctx, AccountToUserRedisKey, c.expiration, accountID)
}

func (c *UsersCache) DeleteUser(accountID string) {
	c.redisClient.HDel(context.Background(), AccountToUserRedisKey, accountID)
}

func (c *UsersCache) UserForAccount(accountID string) (string, bool) {
	userID, err := c.redisClient.HGet(context.Background(), AccountToUserRedisKey, accountID).Result()
	if err != nil {
		return "", false
	}
	return userID, true
}
