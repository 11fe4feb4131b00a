package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc                         *redis.Client
	expireDuration             time.Duration
	sessionDuration            time.Duration
	chatLimit                  int
	maxScoreScript             string
	consumeSessionScript       string
	expireKeysWithPrefixScript string
	deleteKeysWithPrefixScript string
}

type Config struct {
	ExpireDuration  time.Duration
	SessionDuration time.Duration
	ChatLimit       int
}

func NewRepo(rc *redis.Client, cfg *Config) *repo {
	return &repo{
		rc:              rc,
		expireDuration:  cfg.ExpireDuration,
		sessionDuration: cfg.SessionDuration,
		chatLimit:       cfg.ChatLimit,
		maxScoreScript: rc.ScriptLoad(context.Background(), `
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`).Val(),
		consumeSessionScript: rc.ScriptLoad(context.Background(), `
			local data = redis.call('HGETALL', KEYS[1])
			if #data == 0 then
				return nil
			end
			redis.call('DEL', KEYS[1])
			return data
		`).Val(),
		expireKeysWithPrefixScript: rc.ScriptLoad(context.Background(), `
			local pattern = ARGV[1]
			local timestamp = ARGV[2]
			local cursor = "0"
			local count = 0

			repeat
				local result = redis.call('SCAN', cursor, 'MATCH', pattern)
				cursor = result[1]
				local keys = result[2]

				for i, key in ipairs(keys) do
					redis.call('EXPIREAT', key, timestamp)
					count = count + 1
				end
			until cursor == "0"

			return count
		`).Val(),
		deleteKeysWithPrefixScript: rc.ScriptLoad(context.Background(), `
			local pattern = ARGV[1]
			local cursor = "0"
			local count = 0

			repeat
				local result = redis.call('SCAN', cursor, 'MATCH', pattern)
				cursor = result[1]
				local keys = result[2]

				for i, key in ipairs(keys) do
					redis.call('DEL', key)
					count = count + 1
				end
			until cursor == "0"

			return count
		`).Val(),
	}
}
