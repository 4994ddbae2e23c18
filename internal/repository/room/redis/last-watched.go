package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/engine/internal/repository/room"
)

func (r repo) getLastWatchedKey(userID, roomCode string) string {
	return "lastwatched:" + userID + ":" + roomCode
}

func (r repo) getLastWatchedListKey(userID string) string {
	return "lastwatched:" + userID
}

func (r repo) UpsertLastWatched(ctx context.Context, params *room.UpsertLastWatchedParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	lastWatchedKey := r.getLastWatchedKey(params.UserID, params.RoomCode)
	listKey := r.getLastWatchedListKey(params.UserID)

	pipe := r.rc.TxPipeline()

	record := room.LastWatched{
		RoomCode:  params.RoomCode,
		VideoTime: params.VideoTime,
		VideoName: params.VideoName,
		VideoPath: params.VideoPath,
		UpdatedAt: params.UpdatedAt,
	}
	pipe.HSet(ctx, lastWatchedKey, record)
	pipe.Expire(ctx, lastWatchedKey, r.expireDuration)

	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(params.UpdatedAt), Member: params.RoomCode})
	pipe.Expire(ctx, listKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to upsert last watched: %w", err)
	}

	return nil
}

// GetLastWatched returns the user's rows most recently updated first.
func (r repo) GetLastWatched(ctx context.Context, userID string) ([]room.LastWatched, error) {
	roomCodes, err := r.rc.ZRevRange(ctx, r.getLastWatchedListKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get last watched: %w", err)
	}

	records := make([]room.LastWatched, 0, len(roomCodes))
	for _, roomCode := range roomCodes {
		var record room.LastWatched
		if err := r.rc.HGetAll(ctx, r.getLastWatchedKey(userID, roomCode)).Scan(&record); err != nil {
			return nil, fmt.Errorf("failed to get last watched: %w", err)
		}

		if record.RoomCode == "" {
			continue
		}

		records = append(records, record)
	}

	return records, nil
}
